package services

import (
	"context"
	"errors"
	"net/http"

	"mnas/models"
	"mnas/repositories"

	"gorm.io/gorm"
)

type CreateProjectInput struct {
	Name        string
	Description string
}

type ProjectService interface {
	CreateProject(ctx context.Context, userID uint, in CreateProjectInput) (models.Project, error)
	ListProjects(ctx context.Context, userID uint) ([]models.Project, error)
	GetProject(ctx context.Context, userID uint, projectID uint) (models.Project, error)
	DeleteProject(ctx context.Context, userID uint, projectID uint) error
}

type projectService struct {
	txManager TxManager
	projects  repositories.ProjectRepository
}

func NewProjectService(txManager TxManager, projects repositories.ProjectRepository) ProjectService {
	return &projectService{txManager: txManager, projects: projects}
}

func (s *projectService) CreateProject(ctx context.Context, userID uint, in CreateProjectInput) (models.Project, error) {
	if in.Name == "" {
		return models.Project{}, newAppError(http.StatusBadRequest, "项目名称不能为空", nil)
	}

	count, err := s.projects.CountByNameAndUser(ctx, nil, in.Name, userID)
	if err != nil {
		return models.Project{}, newAppError(http.StatusInternalServerError, "查询项目失败", err)
	}
	if count > 0 {
		return models.Project{}, newAppError(http.StatusBadRequest, "同名项目已存在", nil)
	}

	project := models.Project{Name: in.Name, Description: in.Description, UserID: userID}
	if err := s.projects.Create(ctx, nil, &project); err != nil {
		return models.Project{}, newAppError(http.StatusInternalServerError, "创建项目失败", err)
	}
	return project, nil
}

func (s *projectService) ListProjects(ctx context.Context, userID uint) ([]models.Project, error) {
	projects, err := s.projects.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, newAppError(http.StatusInternalServerError, "查询项目列表失败", err)
	}
	return projects, nil
}

func (s *projectService) GetProject(ctx context.Context, userID uint, projectID uint) (models.Project, error) {
	project, err := s.projects.GetByIDAndUser(ctx, nil, projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Project{}, newAppError(http.StatusNotFound, "项目不存在", nil)
		}
		return models.Project{}, newAppError(http.StatusInternalServerError, "查询项目失败", err)
	}
	return project, nil
}

func (s *projectService) DeleteProject(ctx context.Context, userID uint, projectID uint) error {
	if _, err := s.projects.GetByIDAndUser(ctx, nil, projectID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newAppError(http.StatusNotFound, "项目不存在", nil)
		}
		return newAppError(http.StatusInternalServerError, "查询项目失败", err)
	}
	if err := s.projects.SoftDeleteByIDAndUser(ctx, nil, projectID, userID); err != nil {
		return newAppError(http.StatusInternalServerError, "删除项目失败", err)
	}
	return nil
}
