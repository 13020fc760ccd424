package models

import (
	"time"

	"gorm.io/gorm"
)

// 视频转码状态
const (
	ProcessingPending    = "pending"
	ProcessingInProgress = "processing"
	ProcessingCompleted  = "completed"
	ProcessingFailed     = "failed"
)

type File struct {
	ID               uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string         `gorm:"type:varchar(255);not null" json:"name"`
	OriginalName     string         `gorm:"type:varchar(255);not null" json:"original_name"`
	FilePath         string         `gorm:"type:varchar(1000);not null" json:"file_path"`
	ThumbnailPath    string         `gorm:"type:varchar(1000)" json:"thumbnail_path"`
	ProjectID        uint           `gorm:"not null;index" json:"project_id"`
	FolderID         uint           `gorm:"default:0;index" json:"folder_id"`
	UserID           uint           `gorm:"not null;index" json:"user_id"`
	FileSize         int64          `gorm:"not null" json:"file_size"`
	MimeType         string         `gorm:"type:varchar(100)" json:"mime_type"`
	IsImage          bool           `gorm:"default:false" json:"is_image"`
	IsVideo          bool           `gorm:"default:false" json:"is_video"`
	ProcessingStatus string         `gorm:"type:varchar(20);default:'';index" json:"processing_status"`
	Width            int            `json:"width"`
	Height           int            `json:"height"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
