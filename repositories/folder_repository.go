package repositories

import (
	"context"

	"mnas/models"

	"gorm.io/gorm"
)

type GormFolderRepository struct {
	db *gorm.DB
}

func NewGormFolderRepository(db *gorm.DB) *GormFolderRepository {
	return &GormFolderRepository{db: db}
}

func (r *GormFolderRepository) Create(_ context.Context, tx *gorm.DB, folder *models.Folder) error {
	return useTx(r.db, tx).Create(folder).Error
}

func (r *GormFolderRepository) GetByIDAndUser(_ context.Context, tx *gorm.DB, folderID uint, userID uint) (models.Folder, error) {
	var folder models.Folder
	err := useTx(r.db, tx).Where("id = ? AND user_id = ?", folderID, userID).First(&folder).Error
	return folder, err
}

func (r *GormFolderRepository) ListByProjectAndParent(_ context.Context, tx *gorm.DB, projectID uint, parentID *uint, userID uint) ([]models.Folder, error) {
	var folders []models.Folder
	query := useTx(r.db, tx).Where("project_id = ? AND user_id = ?", projectID, userID)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	err := query.Order("name ASC").Find(&folders).Error
	return folders, err
}

func (r *GormFolderRepository) CountByParentAndName(_ context.Context, tx *gorm.DB, projectID uint, parentID *uint, name string, userID uint) (int64, error) {
	var count int64
	query := useTx(r.db, tx).Model(&models.Folder{}).
		Where("project_id = ? AND user_id = ? AND name = ?", projectID, userID, name)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *GormFolderRepository) SoftDeleteByIDAndUser(_ context.Context, tx *gorm.DB, folderID uint, userID uint) error {
	return useTx(r.db, tx).Where("id = ? AND user_id = ?", folderID, userID).Delete(&models.Folder{}).Error
}
