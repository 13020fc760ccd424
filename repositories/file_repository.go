package repositories

import (
	"context"
	"fmt"

	"mnas/models"

	"gorm.io/gorm"
)

type GormFileRepository struct {
	db *gorm.DB
}

func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	return &GormFileRepository{db: db}
}

func (r *GormFileRepository) Create(_ context.Context, tx *gorm.DB, file *models.File) error {
	return useTx(r.db, tx).Create(file).Error
}

func (r *GormFileRepository) GetByIDAndUser(_ context.Context, tx *gorm.DB, fileID uint, userID uint) (models.File, error) {
	var file models.File
	err := useTx(r.db, tx).Where("id = ? AND user_id = ?", fileID, userID).First(&file).Error
	return file, err
}

func (r *GormFileRepository) CountByFolder(_ context.Context, tx *gorm.DB, userID uint, projectID uint, folderID uint) (int64, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.File{}).
		Where("user_id = ? AND project_id = ? AND folder_id = ?", userID, projectID, folderID).
		Count(&count).Error
	return count, err
}

func (r *GormFileRepository) CountByFolderAndOriginalName(_ context.Context, tx *gorm.DB, userID uint, projectID uint, folderID uint, originalName string) (int64, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.File{}).
		Where("user_id = ? AND project_id = ? AND folder_id = ? AND original_name = ?",
			userID, projectID, folderID, originalName).
		Count(&count).Error
	return count, err
}

var fileSortColumns = map[string]bool{
	"created_at":    true,
	"original_name": true,
	"file_size":     true,
	"updated_at":    true,
}

func (r *GormFileRepository) ListByFolder(_ context.Context, tx *gorm.DB, in ListFilesInput) ([]models.File, error) {
	sortBy := in.SortBy
	if !fileSortColumns[sortBy] {
		sortBy = "created_at"
	}
	order := "DESC"
	if in.Order == "asc" {
		order = "ASC"
	}

	var files []models.File
	err := useTx(r.db, tx).
		Where("user_id = ? AND project_id = ? AND folder_id = ?", in.UserID, in.ProjectID, in.FolderID).
		Order(fmt.Sprintf("%s %s", sortBy, order)).
		Offset(in.Offset).
		Limit(in.Limit).
		Find(&files).Error
	return files, err
}

func (r *GormFileRepository) UpdateByIDAndUser(_ context.Context, tx *gorm.DB, fileID uint, userID uint, updates map[string]interface{}) error {
	return useTx(r.db, tx).Model(&models.File{}).
		Where("id = ? AND user_id = ?", fileID, userID).
		Updates(updates).Error
}

func (r *GormFileRepository) UpdateProcessingStatus(_ context.Context, tx *gorm.DB, fileID uint, status string) error {
	return useTx(r.db, tx).Model(&models.File{}).
		Where("id = ?", fileID).
		Update("processing_status", status).Error
}

func (r *GormFileRepository) SoftDeleteByIDAndUser(_ context.Context, tx *gorm.DB, fileID uint, userID uint) error {
	return useTx(r.db, tx).Where("id = ? AND user_id = ?", fileID, userID).Delete(&models.File{}).Error
}
