package services

import (
	"context"
	"errors"
	"net/http"
	"path"

	"mnas/models"
	"mnas/repositories"

	"gorm.io/gorm"
)

type CreateFolderInput struct {
	Name      string
	ProjectID uint
	ParentID  *uint
}

type FolderService interface {
	CreateFolder(ctx context.Context, userID uint, in CreateFolderInput) (models.Folder, error)
	ListFolders(ctx context.Context, userID uint, projectID uint, parentID *uint) ([]models.Folder, error)
	DeleteFolder(ctx context.Context, userID uint, folderID uint) error
}

type folderService struct {
	txManager TxManager
	projects  repositories.ProjectRepository
	folders   repositories.FolderRepository
	files     repositories.FileRepository
}

func NewFolderService(txManager TxManager, projects repositories.ProjectRepository, folders repositories.FolderRepository, files repositories.FileRepository) FolderService {
	return &folderService{txManager: txManager, projects: projects, folders: folders, files: files}
}

func (s *folderService) CreateFolder(ctx context.Context, userID uint, in CreateFolderInput) (models.Folder, error) {
	if in.Name == "" {
		return models.Folder{}, newAppError(http.StatusBadRequest, "文件夹名称不能为空", nil)
	}
	name := sanitizeFilename(in.Name)

	if _, err := s.projects.GetByIDAndUser(ctx, nil, in.ProjectID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Folder{}, newAppError(http.StatusNotFound, "项目不存在", nil)
		}
		return models.Folder{}, newAppError(http.StatusInternalServerError, "查询项目失败", err)
	}

	parentPath := "/"
	if in.ParentID != nil {
		parent, err := s.folders.GetByIDAndUser(ctx, nil, *in.ParentID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Folder{}, newAppError(http.StatusNotFound, "父文件夹不存在", nil)
			}
			return models.Folder{}, newAppError(http.StatusInternalServerError, "查询父文件夹失败", err)
		}
		if parent.ProjectID != in.ProjectID {
			return models.Folder{}, newAppError(http.StatusBadRequest, "父文件夹不属于该项目", nil)
		}
		parentPath = parent.Path
	}

	count, err := s.folders.CountByParentAndName(ctx, nil, in.ProjectID, in.ParentID, name, userID)
	if err != nil {
		return models.Folder{}, newAppError(http.StatusInternalServerError, "查询文件夹失败", err)
	}
	if count > 0 {
		return models.Folder{}, newAppError(http.StatusBadRequest, "同名文件夹已存在", nil)
	}

	folder := models.Folder{
		Name:      name,
		ParentID:  in.ParentID,
		ProjectID: in.ProjectID,
		UserID:    userID,
		Path:      path.Join(parentPath, name),
	}
	if err := s.folders.Create(ctx, nil, &folder); err != nil {
		return models.Folder{}, newAppError(http.StatusInternalServerError, "创建文件夹失败", err)
	}
	return folder, nil
}

func (s *folderService) ListFolders(ctx context.Context, userID uint, projectID uint, parentID *uint) ([]models.Folder, error) {
	if _, err := s.projects.GetByIDAndUser(ctx, nil, projectID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newAppError(http.StatusNotFound, "项目不存在", nil)
		}
		return nil, newAppError(http.StatusInternalServerError, "查询项目失败", err)
	}

	folders, err := s.folders.ListByProjectAndParent(ctx, nil, projectID, parentID, userID)
	if err != nil {
		return nil, newAppError(http.StatusInternalServerError, "查询文件夹列表失败", err)
	}
	return folders, nil
}

func (s *folderService) DeleteFolder(ctx context.Context, userID uint, folderID uint) error {
	folder, err := s.folders.GetByIDAndUser(ctx, nil, folderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newAppError(http.StatusNotFound, "文件夹不存在", nil)
		}
		return newAppError(http.StatusInternalServerError, "查询文件夹失败", err)
	}

	count, err := s.files.CountByFolder(ctx, nil, userID, folder.ProjectID, folder.ID)
	if err != nil {
		return newAppError(http.StatusInternalServerError, "查询文件夹内容失败", err)
	}
	if count > 0 {
		return newAppError(http.StatusBadRequest, "文件夹不为空", nil)
	}

	if err := s.folders.SoftDeleteByIDAndUser(ctx, nil, folderID, userID); err != nil {
		return newAppError(http.StatusInternalServerError, "删除文件夹失败", err)
	}
	return nil
}
