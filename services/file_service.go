package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"mnas/config"
	"mnas/logger"
	"mnas/models"
	"mnas/repositories"
	"mnas/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileListOutput struct {
	Files      []models.File        `json:"files"`
	Pagination utils.PaginationData `json:"pagination"`
}

type FileAccessOutput struct {
	File         models.File
	AbsPath      string
	ContentType  string
	DownloadName string
}

type FileService interface {
	ListFiles(ctx context.Context, userID uint, projectID uint, folderID uint, page int, pageSize int, sortBy string, order string) (FileListOutput, error)
	UploadFile(ctx context.Context, userID uint, projectID uint, folderID uint, file multipart.File, header *multipart.FileHeader) (models.File, error)
	GetDownloadInfo(ctx context.Context, userID uint, fileID uint) (FileAccessOutput, error)
	GetThumbnailInfo(ctx context.Context, userID uint, fileID uint) (FileAccessOutput, error)
	DeleteFile(ctx context.Context, userID uint, fileID uint) error
}

type fileService struct {
	txManager TxManager
	users     repositories.UserRepository
	projects  repositories.ProjectRepository
	folders   repositories.FolderRepository
	files     repositories.FileRepository
	transcode TranscodeQueue
	status    repositories.ProcessingStatusRepository
}

func NewFileService(
	txManager TxManager,
	users repositories.UserRepository,
	projects repositories.ProjectRepository,
	folders repositories.FolderRepository,
	files repositories.FileRepository,
	status repositories.ProcessingStatusRepository,
	transcode TranscodeQueue,
) FileService {
	return &fileService{
		txManager: txManager,
		users:     users,
		projects:  projects,
		folders:   folders,
		files:     files,
		status:    status,
		transcode: transcode,
	}
}

func (s *fileService) ListFiles(ctx context.Context, userID uint, projectID uint, folderID uint, page int, pageSize int, sortBy string, order string) (FileListOutput, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > config.AppConfig.Pagination.MaxPageSize {
		pageSize = config.AppConfig.Pagination.DefaultPageSize
	}
	if order != "asc" && order != "desc" {
		order = config.AppConfig.Pagination.DefaultOrder
	}

	if _, err := s.projects.GetByIDAndUser(ctx, nil, projectID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FileListOutput{}, newAppError(http.StatusNotFound, "项目不存在", nil)
		}
		return FileListOutput{}, newAppError(http.StatusInternalServerError, "查询项目失败", err)
	}

	total, err := s.files.CountByFolder(ctx, nil, userID, projectID, folderID)
	if err != nil {
		return FileListOutput{}, newAppError(http.StatusInternalServerError, "查询文件总数失败", err)
	}

	list, err := s.files.ListByFolder(ctx, nil, repositories.ListFilesInput{
		UserID:    userID,
		ProjectID: projectID,
		FolderID:  folderID,
		SortBy:    sortBy,
		Order:     order,
		Offset:    (page - 1) * pageSize,
		Limit:     pageSize,
	})
	if err != nil {
		return FileListOutput{}, newAppError(http.StatusInternalServerError, "查询文件列表失败", err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	if totalPages == 0 {
		totalPages = 1
	}

	return FileListOutput{
		Files: list,
		Pagination: utils.PaginationData{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	}, nil
}

// UploadFile 小文件直传，不走分片协议。
func (s *fileService) UploadFile(ctx context.Context, userID uint, projectID uint, folderID uint, file multipart.File, header *multipart.FileHeader) (models.File, error) {
	if header.Size > config.AppConfig.Storage.MaxFileSize {
		return models.File{}, newAppError(http.StatusBadRequest, "文件大小超出限制", nil)
	}
	if !isFileExtensionAllowed(header.Filename) {
		return models.File{}, newAppError(http.StatusBadRequest, "不支持的文件类型", nil)
	}

	project, err := s.projects.GetByIDAndUser(ctx, nil, projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.File{}, newAppError(http.StatusNotFound, "项目不存在", nil)
		}
		return models.File{}, newAppError(http.StatusInternalServerError, "查询项目失败", err)
	}

	var folder models.Folder
	if folderID != 0 {
		folder, err = s.folders.GetByIDAndUser(ctx, nil, folderID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.File{}, newAppError(http.StatusNotFound, "目标文件夹不存在", nil)
			}
			return models.File{}, newAppError(http.StatusInternalServerError, "校验目标文件夹失败", err)
		}
		if folder.ProjectID != projectID {
			return models.File{}, newAppError(http.StatusBadRequest, "文件夹不属于该项目", nil)
		}
	}

	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return models.File{}, newAppError(http.StatusInternalServerError, "查询用户失败", err)
	}
	if user.StorageUsed+header.Size > user.StorageQuota {
		return models.File{}, newAppErrorWithData(http.StatusBadRequest, "存储空间不足", map[string]interface{}{
			"storage_quota":   user.StorageQuota,
			"storage_used":    user.StorageUsed,
			"available_space": user.StorageQuota - user.StorageUsed,
			"required_space":  header.Size,
		}, nil)
	}

	fileUUID := uuid.New().String()
	storageName := fileUUID + "_" + sanitizeFilename(header.Filename)
	relDir := filepath.Join("files", fmt.Sprintf("%d", userID), fmt.Sprintf("%d", projectID))
	if folder.ID != 0 && folder.Path != "" {
		relDir = filepath.Join(relDir, folder.Path[1:])
	}
	absDir := filepath.Join(config.AppConfig.Storage.BasePath, relDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return models.File{}, newAppError(http.StatusInternalServerError, "创建存储目录失败", err)
	}

	absPath := filepath.Join(absDir, storageName)
	dst, err := os.Create(absPath)
	if err != nil {
		return models.File{}, newAppError(http.StatusInternalServerError, "创建文件失败", err)
	}
	buf := make([]byte, config.AppConfig.Storage.ChunkBufferSize)
	written, err := io.CopyBuffer(dst, file, buf)
	if err != nil {
		dst.Close()
		_ = os.Remove(absPath)
		return models.File{}, newAppError(http.StatusInternalServerError, "保存文件失败", err)
	}
	_ = dst.Close()

	contentType := resolveContentType(header.Header.Get("Content-Type"), header.Filename)
	isImage := isImageMime(contentType)
	isVideo := isVideoMime(contentType)

	var thumbnailPath string
	var width, height int
	if isImage {
		w, h, dimErr := GetImageDimensions(absPath)
		if dimErr == nil {
			width, height = w, h
		}
		thumbName := fileUUID + "_thumb.jpg"
		thumbRelDir := filepath.Join("thumbnails", fmt.Sprintf("%d", userID))
		thumbAbsPath := filepath.Join(config.AppConfig.Storage.BasePath, thumbRelDir, thumbName)
		if err := GenerateThumbnail(absPath, thumbAbsPath); err == nil {
			thumbnailPath = filepath.Join(thumbRelDir, thumbName)
		}
	}

	processingStatus := ""
	if isVideo && config.AppConfig.Transcode.Enabled {
		processingStatus = models.ProcessingPending
	}

	fileRecord := models.File{
		Name:             storageName,
		OriginalName:     header.Filename,
		FilePath:         filepath.Join(relDir, storageName),
		ThumbnailPath:    thumbnailPath,
		ProjectID:        project.ID,
		FolderID:         folder.ID,
		UserID:           userID,
		FileSize:         written,
		MimeType:         contentType,
		IsImage:          isImage,
		IsVideo:          isVideo,
		ProcessingStatus: processingStatus,
		Width:            width,
		Height:           height,
		CreatedAt:        time.Now(),
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.files.Create(ctx, tx, &fileRecord); err != nil {
			return err
		}
		return s.users.AddStorageUsed(ctx, tx, userID, written)
	})
	if err != nil {
		_ = os.Remove(absPath)
		if thumbnailPath != "" {
			_ = os.Remove(filepath.Join(config.AppConfig.Storage.BasePath, thumbnailPath))
		}
		return models.File{}, newAppError(http.StatusInternalServerError, "保存文件记录失败", err)
	}

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

func (s *fileService) GetDownloadInfo(ctx context.Context, userID uint, fileID uint) (FileAccessOutput, error) {
	file, err := s.files.GetByIDAndUser(ctx, nil, fileID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FileAccessOutput{}, newAppError(http.StatusNotFound, "文件不存在", nil)
		}
		return FileAccessOutput{}, newAppError(http.StatusInternalServerError, "查询文件失败", err)
	}

	absPath := filepath.Join(config.AppConfig.Storage.BasePath, file.FilePath)
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return FileAccessOutput{}, newAppError(http.StatusNotFound, "文件不存在于存储中", nil)
	}

	return FileAccessOutput{File: file, AbsPath: absPath, ContentType: file.MimeType, DownloadName: file.OriginalName}, nil
}

func (s *fileService) GetThumbnailInfo(ctx context.Context, userID uint, fileID uint) (FileAccessOutput, error) {
	file, err := s.files.GetByIDAndUser(ctx, nil, fileID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FileAccessOutput{}, newAppError(http.StatusNotFound, "文件不存在", nil)
		}
		return FileAccessOutput{}, newAppError(http.StatusInternalServerError, "查询文件失败", err)
	}
	if file.ThumbnailPath == "" {
		return FileAccessOutput{}, newAppError(http.StatusNotFound, "缩略图不存在", nil)
	}
	absPath := filepath.Join(config.AppConfig.Storage.BasePath, file.ThumbnailPath)
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return FileAccessOutput{}, newAppError(http.StatusNotFound, "缩略图文件不存在", nil)
	}
	return FileAccessOutput{File: file, AbsPath: absPath, ContentType: "image/jpeg"}, nil
}

func (s *fileService) DeleteFile(ctx context.Context, userID uint, fileID uint) error {
	file, err := s.files.GetByIDAndUser(ctx, nil, fileID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newAppError(http.StatusNotFound, "文件不存在", nil)
		}
		return newAppError(http.StatusInternalServerError, "查询文件失败", err)
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.files.SoftDeleteByIDAndUser(ctx, tx, file.ID, userID); err != nil {
			return err
		}
		return s.users.SubStorageUsed(ctx, tx, userID, file.FileSize)
	})
	if err != nil {
		return newAppError(http.StatusInternalServerError, "删除文件失败", err)
	}

	absPath := filepath.Join(config.AppConfig.Storage.BasePath, file.FilePath)
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		logger.Warnf("删除物理文件失败 file=%d: %v", file.ID, err)
	}
	if file.ThumbnailPath != "" {
		_ = os.Remove(filepath.Join(config.AppConfig.Storage.BasePath, file.ThumbnailPath))
	}
	_ = s.status.Clear(ctx, file.ID)
	return nil
}
