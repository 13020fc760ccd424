package models

import "time"

// ChunkUpload 分片上传的持久化记录，按 upload_key + chunk_index 唯一。
// upload_key 由 (用户, 项目, 文件夹, 文件名) 推导，进程重启后仍可恢复进度。
type ChunkUpload struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UploadKey   string    `gorm:"type:varchar(500);not null;index:idx_key_chunk,unique" json:"upload_key"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ProjectID   uint      `gorm:"not null" json:"project_id"`
	FolderID    uint      `gorm:"default:0" json:"folder_id"`
	FileName    string    `gorm:"type:varchar(255);not null" json:"file_name"`
	ContentType string    `gorm:"type:varchar(100)" json:"content_type"`
	ChunkIndex  int       `gorm:"not null;index:idx_key_chunk,unique" json:"chunk_index"`
	ChunkSize   int64     `gorm:"not null" json:"chunk_size"`
	TotalChunks int       `gorm:"not null" json:"total_chunks"`
	TotalSize   int64     `gorm:"not null" json:"total_size"`
	FilePath    string    `gorm:"type:varchar(1000);not null" json:"file_path"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
