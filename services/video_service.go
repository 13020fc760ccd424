package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mnas/config"
	"mnas/logger"
	"mnas/models"
	"mnas/repositories"

	"gorm.io/gorm"
)

type ProcessingStatusOutput struct {
	FileID           uint   `json:"file_id"`
	ProcessingStatus string `json:"processing_status"`
	InFlight         bool   `json:"in_flight"`
}

type VideoService interface {
	TranscodeQueue
	StartWorkers(ctx context.Context)
	GetProcessingStatus(ctx context.Context, userID uint, fileID uint) (ProcessingStatusOutput, error)
}

type videoService struct {
	txManager TxManager
	users     repositories.UserRepository
	files     repositories.FileRepository
	status    repositories.ProcessingStatusRepository
	inspector MediaInspector
	encoder   Encoder
	monitor   ResourceMonitor
	jobs      chan models.File
}

func NewVideoService(
	txManager TxManager,
	users repositories.UserRepository,
	files repositories.FileRepository,
	status repositories.ProcessingStatusRepository,
	inspector MediaInspector,
	encoder Encoder,
	monitor ResourceMonitor,
) VideoService {
	return &videoService{
		txManager: txManager,
		users:     users,
		files:     files,
		status:    status,
		inspector: inspector,
		encoder:   encoder,
		monitor:   monitor,
		jobs:      make(chan models.File, config.AppConfig.Transcode.QueueSize),
	}
}

// Enqueue 非阻塞投递：队列满时标记失败而不是拖住上传响应。
func (s *videoService) Enqueue(file models.File) {
	select {
	case s.jobs <- file:
	default:
		logger.Warnf("转码队列已满，放弃任务 file=%d", file.ID)
		s.markStatus(context.Background(), file.ID, models.ProcessingFailed)
	}
}

// StartWorkers 启动有界的后台编码池，编码不占用请求线程。
func (s *videoService) StartWorkers(ctx context.Context) {
	for i := 0; i < config.AppConfig.Transcode.WorkerCount; i++ {
		go s.worker(ctx)
	}
}

func (s *videoService) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case file := <-s.jobs:
			s.process(ctx, file)
		}
	}
}

func (s *videoService) process(ctx context.Context, file models.File) {
	s.markStatus(ctx, file.ID, models.ProcessingInProgress)

	srcAbs := filepath.Join(config.AppConfig.Storage.BasePath, file.FilePath)

	info, err := s.inspector.Probe(ctx, srcAbs)
	if err != nil {
		logger.Warnf("探测视频失败 file=%d: %v", file.ID, err)
		info = fallbackMediaInfo()
	}

	strategy := decideStrategy(info, s.monitor.CurrentUtilization(ctx))
	logger.Infof("转码策略 file=%d codec=%s %dx%d -> %s", file.ID, info.Codec, info.Width, info.Height, strategy)

	if strategy.Kind == "skip" {
		s.markStatus(ctx, file.ID, models.ProcessingCompleted)
		return
	}

	dst := srcAbs + ".transcoding.mp4"
	if err := s.encoder.Encode(ctx, strategy, info, srcAbs, dst); err != nil {
		logger.Errorf("编码失败 file=%d strategy=%s: %v", file.ID, strategy, err)
		_ = os.Remove(dst)
		// GPU 失败降级到 CPU 再试一次
		if strategy.Kind == "gpu" {
			strategy = EncodeStrategy{Kind: "cpu"}
			if err := s.encoder.Encode(ctx, strategy, info, srcAbs, dst); err != nil {
				logger.Errorf("CPU 重试失败 file=%d: %v", file.ID, err)
				_ = os.Remove(dst)
				s.markStatus(ctx, file.ID, models.ProcessingFailed)
				return
			}
		} else {
			s.markStatus(ctx, file.ID, models.ProcessingFailed)
			return
		}
	}

	if err := s.swap(ctx, file, srcAbs, dst); err != nil {
		logger.Errorf("替换转码结果失败 file=%d: %v", file.ID, err)
		_ = os.Remove(dst)
		s.markStatus(ctx, file.ID, models.ProcessingFailed)
		return
	}

	s.markStatus(ctx, file.ID, models.ProcessingCompleted)
}

// swap 把编码产物替换为正式文件，任何一步失败都让原件保持可用：
// 路径不变（源本来就是 .mp4）时先提交事务、成功后才原子覆盖原件；
// 路径改变时先落新文件、提交事务，最后才删旧文件。
func (s *videoService) swap(ctx context.Context, file models.File, srcAbs string, dst string) error {
	stat, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("stat encoded output: %w", err)
	}
	newSize := stat.Size()
	sizeDelta := newSize - file.FileSize

	ext := filepath.Ext(file.Name)
	newName := strings.TrimSuffix(file.Name, ext) + ".mp4"
	newRel := filepath.Join(filepath.Dir(file.FilePath), newName)
	newAbs := filepath.Join(config.AppConfig.Storage.BasePath, newRel)
	samePath := newAbs == srcAbs

	if !samePath {
		if err := os.Rename(dst, newAbs); err != nil {
			return fmt.Errorf("move encoded output: %w", err)
		}
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"name":              newName,
			"file_path":         newRel,
			"file_size":         newSize,
			"mime_type":         "video/mp4",
			"processing_status": models.ProcessingCompleted,
		}
		if err := s.files.UpdateByIDAndUser(ctx, tx, file.ID, file.UserID, updates); err != nil {
			return err
		}
		if sizeDelta > 0 {
			return s.users.AddStorageUsed(ctx, tx, file.UserID, sizeDelta)
		}
		return s.users.SubStorageUsed(ctx, tx, file.UserID, -sizeDelta)
	})
	if err != nil {
		if !samePath {
			_ = os.Remove(newAbs)
		}
		return err
	}

	if samePath {
		if err := os.Rename(dst, newAbs); err != nil {
			return fmt.Errorf("move encoded output: %w", err)
		}
		return nil
	}

	if err := os.Remove(srcAbs); err != nil {
		logger.Warnf("删除原始文件失败 file=%d: %v", file.ID, err)
	}
	return nil
}

func (s *videoService) markStatus(ctx context.Context, fileID uint, status string) {
	if err := s.files.UpdateProcessingStatus(ctx, nil, fileID, status); err != nil {
		logger.Warnf("更新转码状态失败 file=%d: %v", fileID, err)
	}
	if err := s.status.SetStatus(ctx, fileID, status, config.AppConfig.Redis.ProcessingStatusTTL); err != nil {
		logger.Warnf("写入转码状态缓存失败 file=%d: %v", fileID, err)
	}
}

// decideStrategy 已是目标编码直接跳过；否则选第一块利用率低于阈值、
// 空闲显存够用的 GPU，都不满足时回落 CPU。
func decideStrategy(info MediaInfo, gpus []GPUStat) EncodeStrategy {
	if strings.EqualFold(info.Codec, config.AppConfig.Transcode.TargetCodec) {
		return EncodeStrategy{Kind: "skip"}
	}

	threshold := config.AppConfig.Transcode.GPUUtilThreshold
	need := estimateVRAMMB(info.Width, info.Height)
	for _, gpu := range gpus {
		if gpu.Utilization >= threshold {
			continue
		}
		if gpu.MemoryTotalMB-gpu.MemoryUsedMB < need {
			continue
		}
		return EncodeStrategy{Kind: "gpu", GPUIndex: gpu.Index}
	}
	return EncodeStrategy{Kind: "cpu"}
}

func (s *videoService) GetProcessingStatus(ctx context.Context, userID uint, fileID uint) (ProcessingStatusOutput, error) {
	status, err := s.status.GetStatus(ctx, fileID)
	if err != nil {
		logger.Debugf("读取转码状态缓存失败 file=%d: %v", fileID, err)
	}

	if status == "" {
		file, err := s.files.GetByIDAndUser(ctx, nil, fileID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ProcessingStatusOutput{}, newAppError(http.StatusNotFound, "文件不存在", nil)
			}
			return ProcessingStatusOutput{}, newAppError(http.StatusInternalServerError, "查询文件失败", err)
		}
		status = file.ProcessingStatus
	}

	inFlight := status == models.ProcessingPending || status == models.ProcessingInProgress
	return ProcessingStatusOutput{FileID: fileID, ProcessingStatus: status, InFlight: inFlight}, nil
}
