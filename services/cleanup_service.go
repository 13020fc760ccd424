package services

import (
	"context"
	"os"
	"time"

	"mnas/config"
	"mnas/logger"
	"mnas/repositories"
)

// CleanupService 周期回收超过保留窗口的分片记录、磁盘分片和空闲会话，
// 不论客户端是否调用过取消，兜住被放弃上传的磁盘增长。
type CleanupService interface {
	Start(ctx context.Context)
	SweepExpiredChunks(ctx context.Context) int
}

type cleanupService struct {
	chunks  repositories.ChunkRepository
	tracker *UploadTracker
}

func NewCleanupService(chunks repositories.ChunkRepository, tracker *UploadTracker) CleanupService {
	return &cleanupService{chunks: chunks, tracker: tracker}
}

func (s *cleanupService) Start(ctx context.Context) {
	interval := time.Duration(config.AppConfig.Storage.CleanupInterval) * time.Second
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepExpiredChunks(ctx)
			}
		}
	}()
}

// SweepExpiredChunks 删除早于保留窗口的分片，返回清除的记录数。
// 单个文件删不掉只记日志，下一轮再试。
func (s *cleanupService) SweepExpiredChunks(ctx context.Context) int {
	retention := time.Duration(config.AppConfig.Storage.ChunkRetentionHours) * time.Hour
	cutoff := time.Now().Add(-retention)

	records, err := s.chunks.ListOlderThan(ctx, nil, cutoff)
	if err != nil {
		logger.Errorf("查询过期分片失败: %v", err)
		return 0
	}
	if len(records) == 0 {
		s.tracker.RemoveIdleBefore(cutoff)
		return 0
	}

	ids := make([]uint, 0, len(records))
	dirs := make(map[string]struct{})
	for _, record := range records {
		ids = append(ids, record.ID)
		dirs[chunkDir(record.UploadKey)] = struct{}{}
		if err := os.Remove(record.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warnf("删除过期分片文件失败 %s: %v", record.FilePath, err)
		}
	}

	if err := s.chunks.DeleteByIDs(ctx, nil, ids); err != nil {
		logger.Errorf("删除过期分片记录失败: %v", err)
		return 0
	}

	// 目录里的残留文件由下一轮兜底，空目录直接摘掉
	for dir := range dirs {
		_ = os.Remove(dir)
	}

	idle := s.tracker.RemoveIdleBefore(cutoff)
	logger.Infof("清理过期分片 %d 条，空闲会话 %d 个", len(records), idle)
	return len(records)
}
