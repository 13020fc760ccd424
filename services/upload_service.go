package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mnas/config"
	"mnas/logger"
	"mnas/models"
	"mnas/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UploadChunkInput struct {
	FileName    string
	ChunkIndex  int
	TotalChunks int
	TotalSize   int64
	ProjectID   uint
	FolderID    uint
	ContentType string
	Chunk       multipart.File
}

type UploadChunkOutput struct {
	Status         string `json:"status"`
	ChunkIndex     int    `json:"chunk_index"`
	ChunksReceived int    `json:"chunks_received"`
	TotalChunks    int    `json:"total_chunks"`
	BytesWritten   int64  `json:"bytes_written"`
}

type UploadIdentityInput struct {
	FileName  string
	ProjectID uint
	FolderID  uint
}

type UploadStatusOutput struct {
	Status         string `json:"status"`
	FileName       string `json:"file_name"`
	ChunksReceived int    `json:"chunks_received"`
	TotalChunks    int    `json:"total_chunks"`
}

type UploadService interface {
	UploadChunk(ctx context.Context, userID uint, in UploadChunkInput) (UploadChunkOutput, error)
	CompleteUpload(ctx context.Context, userID uint, in UploadIdentityInput) (models.File, error)
	GetUploadStatus(ctx context.Context, userID uint, in UploadIdentityInput) (UploadStatusOutput, error)
	CancelUpload(ctx context.Context, userID uint, in UploadIdentityInput) error
}

// TranscodeQueue 供上传流程在合并出视频文件后投递后台转码任务。
type TranscodeQueue interface {
	Enqueue(file models.File)
}

type uploadService struct {
	txManager TxManager
	users     repositories.UserRepository
	projects  repositories.ProjectRepository
	folders   repositories.FolderRepository
	files     repositories.FileRepository
	chunks    repositories.ChunkRepository
	status    repositories.ProcessingStatusRepository
	tracker   *UploadTracker
	transcode TranscodeQueue
}

func NewUploadService(
	txManager TxManager,
	users repositories.UserRepository,
	projects repositories.ProjectRepository,
	folders repositories.FolderRepository,
	files repositories.FileRepository,
	chunks repositories.ChunkRepository,
	status repositories.ProcessingStatusRepository,
	tracker *UploadTracker,
	transcode TranscodeQueue,
) UploadService {
	return &uploadService{
		txManager: txManager,
		users:     users,
		projects:  projects,
		folders:   folders,
		files:     files,
		chunks:    chunks,
		status:    status,
		tracker:   tracker,
		transcode: transcode,
	}
}

func chunkDir(key string) string {
	return filepath.Join(config.AppConfig.Storage.BasePath, "chunks", key)
}

func chunkBlobPath(key string, index int) string {
	return filepath.Join(chunkDir(key), fmt.Sprintf("chunk_%06d", index))
}

func (s *uploadService) validateTarget(ctx context.Context, userID uint, projectID uint, folderID uint) (models.Project, models.Folder, error) {
	project, err := s.projects.GetByIDAndUser(ctx, nil, projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Project{}, models.Folder{}, newAppError(http.StatusNotFound, "项目不存在", nil)
		}
		return models.Project{}, models.Folder{}, newAppError(http.StatusInternalServerError, "查询项目失败", err)
	}

	var folder models.Folder
	if folderID != 0 {
		folder, err = s.folders.GetByIDAndUser(ctx, nil, folderID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Project{}, models.Folder{}, newAppError(http.StatusNotFound, "目标文件夹不存在", nil)
			}
			return models.Project{}, models.Folder{}, newAppError(http.StatusInternalServerError, "校验目标文件夹失败", err)
		}
		if folder.ProjectID != projectID {
			return models.Project{}, models.Folder{}, newAppError(http.StatusBadRequest, "文件夹不属于该项目", nil)
		}
	}
	return project, folder, nil
}

func (s *uploadService) UploadChunk(ctx context.Context, userID uint, in UploadChunkInput) (UploadChunkOutput, error) {
	if in.FileName == "" || in.TotalChunks <= 0 || in.TotalSize <= 0 {
		return UploadChunkOutput{}, newAppError(http.StatusBadRequest, "上传参数不完整", nil)
	}
	if in.ChunkIndex < 0 || in.ChunkIndex >= in.TotalChunks {
		return UploadChunkOutput{}, newAppError(http.StatusBadRequest, "分片序号超出范围", nil)
	}
	if in.TotalSize > config.AppConfig.Storage.MaxFileSize {
		return UploadChunkOutput{}, newAppError(http.StatusBadRequest, "文件大小超出限制", nil)
	}
	if !isFileExtensionAllowed(in.FileName) {
		return UploadChunkOutput{}, newAppError(http.StatusBadRequest, "不支持的文件类型", nil)
	}

	if _, _, err := s.validateTarget(ctx, userID, in.ProjectID, in.FolderID); err != nil {
		return UploadChunkOutput{}, err
	}

	key := uploadKey(userID, in.ProjectID, in.FolderID, in.FileName)

	session, err := s.admitChunk(ctx, userID, key, in)
	if err != nil {
		return UploadChunkOutput{}, err
	}

	// 落盘不占身份锁：不同下标写不同文件，同一文件的分片可以并行上传。
	blobPath := chunkBlobPath(key, in.ChunkIndex)
	dst, err := os.Create(blobPath)
	if err != nil {
		return UploadChunkOutput{}, newAppError(http.StatusInternalServerError, "保存分片失败", err)
	}
	buf := make([]byte, config.AppConfig.Storage.ChunkBufferSize)
	bytesWritten, err := io.CopyBuffer(dst, in.Chunk, buf)
	if err != nil {
		dst.Close()
		_ = os.Remove(blobPath)
		return UploadChunkOutput{}, newAppError(http.StatusInternalServerError, "写入分片失败", err)
	}
	_ = dst.Close()

	received, complete, err := s.recordChunk(ctx, userID, key, in, blobPath, bytesWritten)
	if err != nil {
		return UploadChunkOutput{}, err
	}

	status := "success"
	if complete {
		status = "ready_to_merge"
	}

	return UploadChunkOutput{
		Status:         status,
		ChunkIndex:     in.ChunkIndex,
		ChunksReceived: received,
		TotalChunks:    session.TotalChunks,
		BytesWritten:   bytesWritten,
	}, nil
}

// admitChunk 在身份锁内做接收前的计帐：重启判定、配额校验、取会话、建目录。
// 0 号分片只有在该标识已经收到过 0 号时才视为重新开始；乱序上传中
// 0 号晚到属于首次到达，不触发清理。
func (s *uploadService) admitChunk(ctx context.Context, userID uint, key string, in UploadChunkInput) (*UploadSession, error) {
	unlock := s.tracker.Acquire(key)
	defer unlock()

	existing, exists := s.tracker.Get(key)

	if in.ChunkIndex == 0 {
		_, restart := existing.Received[0]
		if !restart {
			if _, err := s.chunks.GetByUploadKeyAndIndex(ctx, nil, key, 0); err == nil {
				restart = true
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, newAppError(http.StatusInternalServerError, "查询分片记录失败", err)
			}
		}
		if restart {
			if err := s.purgeChunks(ctx, key); err != nil {
				return nil, newAppError(http.StatusInternalServerError, "清理旧分片失败", err)
			}
			s.tracker.Remove(key)
			exists = false
		}
	}

	if !exists {
		user, err := s.users.GetByID(ctx, nil, userID)
		if err != nil {
			return nil, newAppError(http.StatusInternalServerError, "查询用户失败", err)
		}
		if user.StorageUsed+in.TotalSize > user.StorageQuota {
			return nil, newAppErrorWithData(http.StatusBadRequest, "存储空间不足", map[string]interface{}{
				"storage_quota":   user.StorageQuota,
				"storage_used":    user.StorageUsed,
				"available_space": user.StorageQuota - user.StorageUsed,
				"required_space":  in.TotalSize,
			}, nil)
		}
	}

	session := s.tracker.BeginOrGet(key, in.TotalChunks, in.TotalSize)

	if err := os.MkdirAll(chunkDir(key), 0o755); err != nil {
		return nil, newAppError(http.StatusInternalServerError, "创建分片目录失败", err)
	}
	return session, nil
}

// recordChunk 回到身份锁内登记落盘结果：写入幂等的分片记录并更新会话计数。
func (s *uploadService) recordChunk(ctx context.Context, userID uint, key string, in UploadChunkInput, blobPath string, bytesWritten int64) (int, bool, error) {
	unlock := s.tracker.Acquire(key)
	defer unlock()

	_, err := s.chunks.GetByUploadKeyAndIndex(ctx, nil, key, in.ChunkIndex)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record := models.ChunkUpload{
			UploadKey:   key,
			UserID:      userID,
			ProjectID:   in.ProjectID,
			FolderID:    in.FolderID,
			FileName:    in.FileName,
			ContentType: in.ContentType,
			ChunkIndex:  in.ChunkIndex,
			ChunkSize:   bytesWritten,
			TotalChunks: in.TotalChunks,
			TotalSize:   in.TotalSize,
			FilePath:    blobPath,
		}
		if err := s.chunks.Create(ctx, nil, &record); err != nil {
			_ = os.Remove(blobPath)
			return 0, false, newAppError(http.StatusInternalServerError, "记录分片失败", err)
		}
	} else if err != nil {
		return 0, false, newAppError(http.StatusInternalServerError, "查询分片记录失败", err)
	}

	received, complete := s.tracker.MarkReceived(key, in.ChunkIndex)
	return received, complete, nil
}

func (s *uploadService) CompleteUpload(ctx context.Context, userID uint, in UploadIdentityInput) (models.File, error) {
	project, folder, err := s.validateTarget(ctx, userID, in.ProjectID, in.FolderID)
	if err != nil {
		return models.File{}, err
	}

	key := uploadKey(userID, in.ProjectID, in.FolderID, in.FileName)
	unlock := s.tracker.Acquire(key)
	defer unlock()

	// 以落盘记录为准做完整性校验，内存会话可能已随重启丢失。
	records, err := s.chunks.ListByUploadKey(ctx, nil, key)
	if err != nil {
		return models.File{}, newAppError(http.StatusInternalServerError, "查询分片记录失败", err)
	}
	if len(records) == 0 {
		return models.File{}, newAppError(http.StatusNotFound, "上传任务不存在", nil)
	}

	meta := records[0]
	if len(records) < meta.TotalChunks {
		return models.File{}, newAppErrorWithData(http.StatusBadRequest,
			fmt.Sprintf("分片未全部上传，已上传 %d/%d", len(records), meta.TotalChunks),
			map[string]interface{}{"uploaded": len(records), "total": meta.TotalChunks}, nil)
	}
	for i, record := range records {
		if record.ChunkIndex != i {
			return models.File{}, newAppErrorWithData(http.StatusBadRequest,
				fmt.Sprintf("缺少分片 %d", i),
				map[string]interface{}{"missing_chunk": i, "total": meta.TotalChunks}, nil)
		}
	}

	now := time.Now()
	fileUUID := uuid.New().String()
	storageName := fileUUID + "_" + sanitizeFilename(in.FileName)
	relDir := filepath.Join("files", fmt.Sprintf("%d", userID), fmt.Sprintf("%d", in.ProjectID))
	if folder.ID != 0 && folder.Path != "" {
		relDir = filepath.Join(relDir, strings.TrimPrefix(folder.Path, "/"))
	}
	absDir := filepath.Join(config.AppConfig.Storage.BasePath, relDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return models.File{}, newAppError(http.StatusInternalServerError, "创建存储目录失败", err)
	}

	finalPath := filepath.Join(absDir, storageName)
	tempPath := finalPath + ".merging"
	merged, err := os.Create(tempPath)
	if err != nil {
		return models.File{}, newAppError(http.StatusInternalServerError, "创建目标文件失败", err)
	}

	buf := make([]byte, config.AppConfig.Storage.ChunkBufferSize)
	var totalWritten int64
	for _, record := range records {
		src, err := os.Open(record.FilePath)
		if err != nil {
			merged.Close()
			_ = os.Remove(tempPath)
			return models.File{}, newAppError(http.StatusInternalServerError, fmt.Sprintf("读取分片 %d 失败", record.ChunkIndex), err)
		}
		n, err := io.CopyBuffer(merged, src, buf)
		src.Close()
		if err != nil {
			merged.Close()
			_ = os.Remove(tempPath)
			return models.File{}, newAppError(http.StatusInternalServerError, "合并文件失败", err)
		}
		totalWritten += n
	}
	_ = merged.Close()

	// 字节数与声明不符按损坏处理：丢弃合并结果，保留分片待客户端重传。
	if totalWritten != meta.TotalSize {
		_ = os.Remove(tempPath)
		return models.File{}, newAppErrorWithData(http.StatusBadRequest, "文件大小校验失败",
			map[string]interface{}{"expected": meta.TotalSize, "actual": totalWritten}, nil)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return models.File{}, newAppError(http.StatusInternalServerError, "落盘目标文件失败", err)
	}

	contentType := resolveContentType(meta.ContentType, in.FileName)
	isImage := isImageMime(contentType)
	isVideo := isVideoMime(contentType)

	var thumbnailPath string
	var width, height int
	if isImage {
		w, h, dimErr := GetImageDimensions(finalPath)
		if dimErr == nil {
			width, height = w, h
		}
		thumbName := fileUUID + "_thumb.jpg"
		thumbRelDir := filepath.Join("thumbnails", fmt.Sprintf("%d", userID))
		thumbAbsPath := filepath.Join(config.AppConfig.Storage.BasePath, thumbRelDir, thumbName)
		if err := GenerateThumbnail(finalPath, thumbAbsPath); err == nil {
			thumbnailPath = filepath.Join(thumbRelDir, thumbName)
		}
	}

	processingStatus := ""
	if isVideo && config.AppConfig.Transcode.Enabled {
		processingStatus = models.ProcessingPending
	}

	fileRecord := models.File{
		Name:             storageName,
		OriginalName:     in.FileName,
		FilePath:         filepath.Join(relDir, storageName),
		ThumbnailPath:    thumbnailPath,
		ProjectID:        project.ID,
		FolderID:         folder.ID,
		UserID:           userID,
		FileSize:         totalWritten,
		MimeType:         contentType,
		IsImage:          isImage,
		IsVideo:          isVideo,
		ProcessingStatus: processingStatus,
		Width:            width,
		Height:           height,
		CreatedAt:        now,
	}

	// 单事务内建档、计配额、删分片记录，保证合并恰好发生一次：
	// 并发或重复的 complete 查不到分片记录，只会得到 404。
	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.files.Create(ctx, tx, &fileRecord); err != nil {
			return err
		}
		if err := s.users.AddStorageUsed(ctx, tx, userID, totalWritten); err != nil {
			return err
		}
		return s.chunks.DeleteByUploadKey(ctx, tx, key)
	})
	if err != nil {
		_ = os.Remove(finalPath)
		if thumbnailPath != "" {
			_ = os.Remove(filepath.Join(config.AppConfig.Storage.BasePath, thumbnailPath))
		}
		return models.File{}, newAppError(http.StatusInternalServerError, "保存文件记录失败", err)
	}

	if err := os.RemoveAll(chunkDir(key)); err != nil {
		logger.Warnf("清理分片目录失败 key=%s: %v", key, err)
	}
	s.tracker.Remove(key)

	if processingStatus == models.ProcessingPending {
		if err := s.status.SetStatus(ctx, fileRecord.ID, models.ProcessingPending, config.AppConfig.Redis.ProcessingStatusTTL); err != nil {
			logger.Warnf("写入转码状态失败 file=%d: %v", fileRecord.ID, err)
		}
		if s.transcode != nil {
			s.transcode.Enqueue(fileRecord)
		}
	}

	return fileRecord, nil
}

func (s *uploadService) GetUploadStatus(ctx context.Context, userID uint, in UploadIdentityInput) (UploadStatusOutput, error) {
	key := uploadKey(userID, in.ProjectID, in.FolderID, in.FileName)

	if session, ok := s.tracker.Get(key); ok {
		return UploadStatusOutput{
			Status:         "in_progress",
			FileName:       in.FileName,
			ChunksReceived: len(session.Received),
			TotalChunks:    session.TotalChunks,
		}, nil
	}

	records, err := s.chunks.ListByUploadKey(ctx, nil, key)
	if err != nil {
		return UploadStatusOutput{}, newAppError(http.StatusInternalServerError, "查询分片记录失败", err)
	}
	if len(records) > 0 {
		return UploadStatusOutput{
			Status:         "unknown",
			FileName:       in.FileName,
			ChunksReceived: len(records),
			TotalChunks:    records[0].TotalChunks,
		}, nil
	}

	return UploadStatusOutput{}, newAppError(http.StatusNotFound, "上传任务不存在", nil)
}

func (s *uploadService) CancelUpload(ctx context.Context, userID uint, in UploadIdentityInput) error {
	key := uploadKey(userID, in.ProjectID, in.FolderID, in.FileName)
	unlock := s.tracker.Acquire(key)
	defer unlock()

	_, tracked := s.tracker.Get(key)
	count, err := s.chunks.CountByUploadKey(ctx, nil, key)
	if err != nil {
		return newAppError(http.StatusInternalServerError, "查询分片记录失败", err)
	}
	if !tracked && count == 0 {
		return newAppError(http.StatusNotFound, "上传任务不存在", nil)
	}

	if err := s.purgeChunks(ctx, key); err != nil {
		return newAppError(http.StatusInternalServerError, "取消上传失败", err)
	}
	s.tracker.Remove(key)
	return nil
}

// purgeChunks 删除某个上传标识的全部分片记录，目录删除失败只记日志，
// 留给周期清扫兜底。
func (s *uploadService) purgeChunks(ctx context.Context, key string) error {
	if err := s.chunks.DeleteByUploadKey(ctx, nil, key); err != nil {
		return err
	}
	if err := os.RemoveAll(chunkDir(key)); err != nil {
		logger.Warnf("删除分片目录失败 key=%s: %v", key, err)
	}
	return nil
}
