package repositories

import (
	"context"
	"time"

	"mnas/models"

	"gorm.io/gorm"
)

type GormChunkRepository struct {
	db *gorm.DB
}

func NewGormChunkRepository(db *gorm.DB) *GormChunkRepository {
	return &GormChunkRepository{db: db}
}

func (r *GormChunkRepository) Create(_ context.Context, tx *gorm.DB, chunk *models.ChunkUpload) error {
	return useTx(r.db, tx).Create(chunk).Error
}

func (r *GormChunkRepository) ListByUploadKey(_ context.Context, tx *gorm.DB, uploadKey string) ([]models.ChunkUpload, error) {
	var chunks []models.ChunkUpload
	err := useTx(r.db, tx).
		Where("upload_key = ?", uploadKey).
		Order("chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}

func (r *GormChunkRepository) CountByUploadKey(_ context.Context, tx *gorm.DB, uploadKey string) (int64, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.ChunkUpload{}).
		Where("upload_key = ?", uploadKey).Count(&count).Error
	return count, err
}

func (r *GormChunkRepository) GetByUploadKeyAndIndex(_ context.Context, tx *gorm.DB, uploadKey string, chunkIndex int) (models.ChunkUpload, error) {
	var chunk models.ChunkUpload
	err := useTx(r.db, tx).
		Where("upload_key = ? AND chunk_index = ?", uploadKey, chunkIndex).
		First(&chunk).Error
	return chunk, err
}

func (r *GormChunkRepository) DeleteByUploadKey(_ context.Context, tx *gorm.DB, uploadKey string) error {
	return useTx(r.db, tx).Where("upload_key = ?", uploadKey).Delete(&models.ChunkUpload{}).Error
}

func (r *GormChunkRepository) ListOlderThan(_ context.Context, tx *gorm.DB, cutoff time.Time) ([]models.ChunkUpload, error) {
	var chunks []models.ChunkUpload
	err := useTx(r.db, tx).Where("created_at < ?", cutoff).Find(&chunks).Error
	return chunks, err
}

func (r *GormChunkRepository) DeleteByIDs(_ context.Context, tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return useTx(r.db, tx).Delete(&models.ChunkUpload{}, ids).Error
}
