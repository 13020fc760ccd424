package services

import (
	"fmt"
	"sync"
	"time"
)

// uploadKey 由 (用户, 项目, 文件夹, 文件名) 推导出确定性标识，
// 同一逻辑上传的所有分片通过它关联。
func uploadKey(userID uint, projectID uint, folderID uint, fileName string) string {
	return fmt.Sprintf("%d_%d_%d_%s", userID, projectID, folderID, sanitizeFilename(fileName))
}

type UploadSession struct {
	Key         string
	TotalChunks int
	TotalSize   int64
	Received    map[int]struct{}
	CreatedAt   time.Time
}

// keyLock 带引用计数的身份锁条目，最后一个持有者释放时自动回收，
// 等待中的 Acquire 始终排在同一把锁上。
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// UploadTracker 维护进行中上传的内存会话。会话随进程消亡，
// 重启后状态查询返回 unknown，磁盘分片记录不受影响。
type UploadTracker struct {
	mu       sync.Mutex
	locks    map[string]*keyLock
	sessions map[string]*UploadSession
}

func NewUploadTracker() *UploadTracker {
	return &UploadTracker{
		locks:    make(map[string]*keyLock),
		sessions: make(map[string]*UploadSession),
	}
}

// Acquire 拿到某个上传标识的互斥锁，返回解锁函数。
// 同一标识的收包计帐与合并串行执行，不同标识完全并行。
func (t *UploadTracker) Acquire(key string) func() {
	t.mu.Lock()
	lock, ok := t.locks[key]
	if !ok {
		lock = &keyLock{}
		t.locks[key] = lock
	}
	lock.refs++
	t.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		t.mu.Lock()
		lock.refs--
		if lock.refs == 0 && t.locks[key] == lock {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}

// BeginOrGet 幂等获取会话；totalChunks 不一致时视为新的上传，替换旧会话。
func (t *UploadTracker) BeginOrGet(key string, totalChunks int, totalSize int64) *UploadSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[key]
	if ok && session.TotalChunks == totalChunks {
		return session
	}

	session = &UploadSession{
		Key:         key,
		TotalChunks: totalChunks,
		TotalSize:   totalSize,
		Received:    make(map[int]struct{}),
		CreatedAt:   time.Now(),
	}
	t.sessions[key] = session
	return session
}

// MarkReceived 记录一个分片，重复上传同一下标不重复计数。
func (t *UploadTracker) MarkReceived(key string, index int) (received int, complete bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[key]
	if !ok {
		return 0, false
	}
	session.Received[index] = struct{}{}
	received = len(session.Received)
	return received, received == session.TotalChunks
}

func (t *UploadTracker) Get(key string) (UploadSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[key]
	if !ok {
		return UploadSession{}, false
	}

	snapshot := UploadSession{
		Key:         session.Key,
		TotalChunks: session.TotalChunks,
		TotalSize:   session.TotalSize,
		Received:    make(map[int]struct{}, len(session.Received)),
		CreatedAt:   session.CreatedAt,
	}
	for idx := range session.Received {
		snapshot.Received[idx] = struct{}{}
	}
	return snapshot, true
}

// Remove 丢弃会话。锁条目由引用计数自行回收，正在排队的
// Acquire 不受影响。
func (t *UploadTracker) Remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, key)
}

// RemoveIdleBefore 清除在 cutoff 之前创建且仍未完成的会话，返回清除数量。
func (t *UploadTracker) RemoveIdleBefore(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, session := range t.sessions {
		if session.CreatedAt.Before(cutoff) {
			delete(t.sessions, key)
			removed++
		}
	}
	return removed
}
