package repositories

import (
	"context"

	"mnas/models"

	"gorm.io/gorm"
)

type GormProjectRepository struct {
	db *gorm.DB
}

func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	return &GormProjectRepository{db: db}
}

func (r *GormProjectRepository) Create(_ context.Context, tx *gorm.DB, project *models.Project) error {
	return useTx(r.db, tx).Create(project).Error
}

func (r *GormProjectRepository) GetByIDAndUser(_ context.Context, tx *gorm.DB, projectID uint, userID uint) (models.Project, error) {
	var project models.Project
	err := useTx(r.db, tx).Where("id = ? AND user_id = ?", projectID, userID).First(&project).Error
	return project, err
}

func (r *GormProjectRepository) GetByNameAndUser(_ context.Context, tx *gorm.DB, name string, userID uint) (models.Project, error) {
	var project models.Project
	err := useTx(r.db, tx).Where("name = ? AND user_id = ?", name, userID).First(&project).Error
	return project, err
}

func (r *GormProjectRepository) ListByUser(_ context.Context, tx *gorm.DB, userID uint) ([]models.Project, error) {
	var projects []models.Project
	err := useTx(r.db, tx).Where("user_id = ?", userID).Order("created_at DESC").Find(&projects).Error
	return projects, err
}

func (r *GormProjectRepository) CountByNameAndUser(_ context.Context, tx *gorm.DB, name string, userID uint) (int64, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.Project{}).
		Where("name = ? AND user_id = ?", name, userID).Count(&count).Error
	return count, err
}

func (r *GormProjectRepository) SoftDeleteByIDAndUser(_ context.Context, tx *gorm.DB, projectID uint, userID uint) error {
	return useTx(r.db, tx).Where("id = ? AND user_id = ?", projectID, userID).Delete(&models.Project{}).Error
}
