package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockDeleter struct {
	mu      sync.Mutex
	calls   int
	deleted int
	err     error
}

func (m *mockDeleter) DeleteExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.deleted, m.err
}

func (m *mockDeleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRecorder struct {
	total int
}

func (m *mockRecorder) RecordRevokedTokensPurged(count int) {
	m.total += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// 削除件数がログとメトリクスに反映されることを検証
func TestCleanupJob_Run(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockDeleter{deleted: 7}
	recorder := &mockRecorder{}
	job := NewCleanupJob(deleter, recorder, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if deleter.calls != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", deleter.calls)
	}
	if recorder.total != 7 {
		t.Errorf("recorded purge count = %d, want 7", recorder.total)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["deleted_count"] != float64(7) {
		t.Errorf("deleted_count = %v, want 7", entry["deleted_count"])
	}
}

// 削除対象ゼロでもエラーにならないことを検証
func TestCleanupJob_Run_NothingToDelete(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockDeleter{deleted: 0}, &mockRecorder{}, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

// DBエラーがラップされて返ることを検証
func TestCleanupJob_Run_DeleteError(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockDeleter{err: errors.New("connection reset")}
	job := NewCleanupJob(deleter, &mockRecorder{}, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "failed to purge expired revoked tokens") {
		t.Errorf("unexpected error message: %v", err)
	}
	if !strings.Contains(buf.String(), "revoked token cleanup failed") {
		t.Error("expected error log entry")
	}
}

// collectorがnilでもRunがパニックしないことを検証
func TestCleanupJob_Run_NilCollector(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockDeleter{deleted: 3}, nil, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

// Startがctxキャンセルで停止し、起動直後に1回実行されることを検証
func TestCleanupJob_Start_RunsImmediatelyAndStops(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockDeleter{deleted: 1}
	job := NewCleanupJob(deleter, &mockRecorder{}, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の実行を待つ
	deadline := time.After(2 * time.Second)
	for deleter.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial run did not happen")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not stop after context cancellation")
	}
}
