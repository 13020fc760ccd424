package repositories

import (
	"context"
	"time"

	"mnas/models"

	"gorm.io/gorm"
)

type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type UserRepository interface {
	CountByUsername(ctx context.Context, username string) (int64, error)
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (models.User, error)
	GetByID(ctx context.Context, tx *gorm.DB, userID uint) (models.User, error)
	AddStorageUsed(ctx context.Context, tx *gorm.DB, userID uint, delta int64) error
	SubStorageUsed(ctx context.Context, tx *gorm.DB, userID uint, delta int64) error
}

type ProjectRepository interface {
	Create(ctx context.Context, tx *gorm.DB, project *models.Project) error
	GetByIDAndUser(ctx context.Context, tx *gorm.DB, projectID uint, userID uint) (models.Project, error)
	GetByNameAndUser(ctx context.Context, tx *gorm.DB, name string, userID uint) (models.Project, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]models.Project, error)
	CountByNameAndUser(ctx context.Context, tx *gorm.DB, name string, userID uint) (int64, error)
	SoftDeleteByIDAndUser(ctx context.Context, tx *gorm.DB, projectID uint, userID uint) error
}

type FolderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, folder *models.Folder) error
	GetByIDAndUser(ctx context.Context, tx *gorm.DB, folderID uint, userID uint) (models.Folder, error)
	ListByProjectAndParent(ctx context.Context, tx *gorm.DB, projectID uint, parentID *uint, userID uint) ([]models.Folder, error)
	CountByParentAndName(ctx context.Context, tx *gorm.DB, projectID uint, parentID *uint, name string, userID uint) (int64, error)
	SoftDeleteByIDAndUser(ctx context.Context, tx *gorm.DB, folderID uint, userID uint) error
}

type ListFilesInput struct {
	UserID    uint
	ProjectID uint
	FolderID  uint
	SortBy    string
	Order     string
	Offset    int
	Limit     int
}

type FileRepository interface {
	Create(ctx context.Context, tx *gorm.DB, file *models.File) error
	GetByIDAndUser(ctx context.Context, tx *gorm.DB, fileID uint, userID uint) (models.File, error)
	CountByFolder(ctx context.Context, tx *gorm.DB, userID uint, projectID uint, folderID uint) (int64, error)
	CountByFolderAndOriginalName(ctx context.Context, tx *gorm.DB, userID uint, projectID uint, folderID uint, originalName string) (int64, error)
	ListByFolder(ctx context.Context, tx *gorm.DB, in ListFilesInput) ([]models.File, error)
	UpdateByIDAndUser(ctx context.Context, tx *gorm.DB, fileID uint, userID uint, updates map[string]interface{}) error
	UpdateProcessingStatus(ctx context.Context, tx *gorm.DB, fileID uint, status string) error
	SoftDeleteByIDAndUser(ctx context.Context, tx *gorm.DB, fileID uint, userID uint) error
}

type ChunkRepository interface {
	Create(ctx context.Context, tx *gorm.DB, chunk *models.ChunkUpload) error
	ListByUploadKey(ctx context.Context, tx *gorm.DB, uploadKey string) ([]models.ChunkUpload, error)
	CountByUploadKey(ctx context.Context, tx *gorm.DB, uploadKey string) (int64, error)
	GetByUploadKeyAndIndex(ctx context.Context, tx *gorm.DB, uploadKey string, chunkIndex int) (models.ChunkUpload, error)
	DeleteByUploadKey(ctx context.Context, tx *gorm.DB, uploadKey string) error
	ListOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]models.ChunkUpload, error)
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uint) error
}

type ProcessingStatusRepository interface {
	SetStatus(ctx context.Context, fileID uint, status string, expireSeconds int) error
	GetStatus(ctx context.Context, fileID uint) (string, error)
	Clear(ctx context.Context, fileID uint) error
}

type Container struct {
	TxManager        TxManager
	Users            UserRepository
	Projects         ProjectRepository
	Folders          FolderRepository
	Files            FileRepository
	Chunks           ChunkRepository
	ProcessingStatus ProcessingStatusRepository
}
