package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mnas/config"
	"mnas/models"
)

func seedChunkOnDisk(t *testing.T, chunks *fakeChunkRepo, key string, index int, age time.Duration) models.ChunkUpload {
	t.Helper()
	if err := os.MkdirAll(chunkDir(key), 0o755); err != nil {
		t.Fatalf("建分片目录失败: %v", err)
	}
	blobPath := chunkBlobPath(key, index)
	if err := os.WriteFile(blobPath, []byte("data"), 0o644); err != nil {
		t.Fatalf("写分片文件失败: %v", err)
	}
	record := models.ChunkUpload{
		UploadKey:  key,
		UserID:     1,
		ProjectID:  1,
		FileName:   "x.bin",
		ChunkIndex: index,
		ChunkSize:  4,
		FilePath:   blobPath,
		CreatedAt:  time.Now().Add(-age),
	}
	if err := chunks.Create(context.Background(), nil, &record); err != nil {
		t.Fatalf("登记分片失败: %v", err)
	}
	return record
}

func TestSweepExpiredChunks(t *testing.T) {
	config.AppConfig = &config.Config{
		Storage: config.StorageConfig{
			BasePath:            t.TempDir(),
			ChunkRetentionHours: 24,
		},
	}
	chunks := newFakeChunkRepo()
	tracker := NewUploadTracker()
	svc := NewCleanupService(chunks, tracker)

	stale := seedChunkOnDisk(t, chunks, "1_1_0_stale.bin", 0, 48*time.Hour)
	seedChunkOnDisk(t, chunks, "1_1_0_stale.bin", 1, 48*time.Hour)
	fresh := seedChunkOnDisk(t, chunks, "1_1_0_fresh.bin", 0, time.Hour)

	staleSession := tracker.BeginOrGet("1_1_0_stale.bin", 2, 8)
	staleSession.CreatedAt = time.Now().Add(-48 * time.Hour)
	tracker.BeginOrGet("1_1_0_fresh.bin", 2, 8)

	removed := svc.SweepExpiredChunks(context.Background())
	if removed != 2 {
		t.Fatalf("removed = %d, 期望 2", removed)
	}

	if _, err := os.Stat(stale.FilePath); !os.IsNotExist(err) {
		t.Fatalf("过期分片文件未删除")
	}
	if _, err := os.Stat(filepath.Dir(stale.FilePath)); !os.IsNotExist(err) {
		t.Fatalf("过期分片目录未摘除")
	}
	if n, _ := chunks.CountByUploadKey(context.Background(), nil, "1_1_0_stale.bin"); n != 0 {
		t.Fatalf("过期分片记录残留 %d 条", n)
	}

	// 保留窗口内的上传不受影响。
	if _, err := os.Stat(fresh.FilePath); err != nil {
		t.Fatalf("未过期分片被误删: %v", err)
	}
	if n, _ := chunks.CountByUploadKey(context.Background(), nil, "1_1_0_fresh.bin"); n != 1 {
		t.Fatalf("未过期分片记录 = %d 条, 期望 1", n)
	}

	if _, ok := tracker.Get("1_1_0_stale.bin"); ok {
		t.Fatalf("过期会话未清除")
	}
	if _, ok := tracker.Get("1_1_0_fresh.bin"); !ok {
		t.Fatalf("未过期会话被误删")
	}
}

func TestSweepExpiredChunksNothingToDo(t *testing.T) {
	config.AppConfig = &config.Config{
		Storage: config.StorageConfig{
			BasePath:            t.TempDir(),
			ChunkRetentionHours: 24,
		},
	}
	chunks := newFakeChunkRepo()
	tracker := NewUploadTracker()
	svc := NewCleanupService(chunks, tracker)

	seedChunkOnDisk(t, chunks, "1_1_0_fresh.bin", 0, time.Hour)

	if removed := svc.SweepExpiredChunks(context.Background()); removed != 0 {
		t.Fatalf("removed = %d, 期望 0", removed)
	}
}
