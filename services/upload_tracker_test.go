package services

import (
	"sync"
	"testing"
	"time"
)

func TestUploadKeyDeterministic(t *testing.T) {
	a := uploadKey(1, 2, 3, "我的 视频.mp4")
	b := uploadKey(1, 2, 3, "我的 视频.mp4")
	if a != b {
		t.Fatalf("同一标识两次求值不同: %q vs %q", a, b)
	}
	if a == uploadKey(1, 2, 4, "我的 视频.mp4") {
		t.Fatalf("不同文件夹的标识不应相同")
	}
}

func TestUploadTrackerBeginOrGet(t *testing.T) {
	tracker := NewUploadTracker()

	first := tracker.BeginOrGet("k", 3, 12)
	tracker.MarkReceived("k", 0)

	same := tracker.BeginOrGet("k", 3, 12)
	if same != first {
		t.Fatalf("相同参数的 BeginOrGet 不幂等")
	}
	if len(same.Received) != 1 {
		t.Fatalf("received = %d, 期望保留 1", len(same.Received))
	}

	// totalChunks 变化意味着新的上传，旧进度作废。
	replaced := tracker.BeginOrGet("k", 5, 20)
	if replaced == first {
		t.Fatalf("totalChunks 变化后应替换会话")
	}
	if len(replaced.Received) != 0 {
		t.Fatalf("新会话 received = %d, 期望 0", len(replaced.Received))
	}
}

func TestUploadTrackerMarkReceivedSetSemantics(t *testing.T) {
	tracker := NewUploadTracker()
	tracker.BeginOrGet("k", 3, 12)

	if n, done := tracker.MarkReceived("k", 0); n != 1 || done {
		t.Fatalf("第一片: n=%d done=%v", n, done)
	}
	if n, done := tracker.MarkReceived("k", 0); n != 1 || done {
		t.Fatalf("重复片: n=%d done=%v, 期望计数不变", n, done)
	}
	tracker.MarkReceived("k", 2)
	if n, done := tracker.MarkReceived("k", 1); n != 3 || !done {
		t.Fatalf("最后一片: n=%d done=%v, 期望 3 true", n, done)
	}

	if n, done := tracker.MarkReceived("missing", 0); n != 0 || done {
		t.Fatalf("无会话标记: n=%d done=%v, 期望 0 false", n, done)
	}
}

func TestUploadTrackerAcquireSerializes(t *testing.T) {
	tracker := NewUploadTracker()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := tracker.Acquire("k")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d, 期望 50", counter)
	}
}

func TestUploadTrackerAcquireSerializesAcrossRemove(t *testing.T) {
	tracker := NewUploadTracker()
	tracker.BeginOrGet("k", 1, 4)

	unlock := tracker.Acquire("k")
	tracker.Remove("k")

	// 持有期间发生 Remove，后来的 Acquire 仍要排在同一把锁上。
	entered := make(chan struct{})
	go func() {
		u := tracker.Acquire("k")
		close(entered)
		u()
	}()

	select {
	case <-entered:
		t.Fatalf("锁仍被持有时第二个 Acquire 提前返回")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-entered
}

func TestUploadTrackerRemoveIdleBefore(t *testing.T) {
	tracker := NewUploadTracker()
	old := tracker.BeginOrGet("old", 2, 8)
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	tracker.BeginOrGet("fresh", 2, 8)

	removed := tracker.RemoveIdleBefore(time.Now().Add(-time.Hour))
	if removed != 1 {
		t.Fatalf("removed = %d, 期望 1", removed)
	}
	if _, ok := tracker.Get("old"); ok {
		t.Fatalf("过期会话未被清除")
	}
	if _, ok := tracker.Get("fresh"); !ok {
		t.Fatalf("未过期会话被误删")
	}
}
