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

// mockPurger はTokenPurgerのモック実装。
type mockPurger struct {
	mu       sync.Mutex
	calls    int
	before   time.Time
	deleted  int64
	err      error
	calledCh chan struct{}
}

func (m *mockPurger) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	m.calls++
	m.before = before
	m.mu.Unlock()
	if m.calledCh != nil {
		select {
		case m.calledCh <- struct{}{}:
		default:
		}
	}
	return m.deleted, m.err
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockCollector struct {
	purged int64
}

func (m *mockCollector) RecordHTTPRequest(string, int, time.Duration) {}
func (m *mockCollector) RecordLogin(bool)                             {}
func (m *mockCollector) RecordOrder(int, float64)                     {}
func (m *mockCollector) RecordFactoryCall(string, time.Duration)      {}
func (m *mockCollector) RecordTokensPurged(count int64)               { m.purged += count }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestCleanupJob_Run_DeletesExpiredBeforeNow(t *testing.T) {
	var buf bytes.Buffer
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	purger := &mockPurger{deleted: 5}
	collector := &mockCollector{}
	job := NewCleanupJob(purger, newTestLogger(&buf), collector)
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if !purger.before.Equal(fixed) {
		t.Errorf("before = %v, want %v", purger.before, fixed)
	}
	if collector.purged != 5 {
		t.Errorf("purged = %d, want 5", collector.purged)
	}
}

func TestCleanupJob_Run_AppliesGrace(t *testing.T) {
	var buf bytes.Buffer
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	purger := &mockPurger{}
	job := NewCleanupJob(purger, newTestLogger(&buf), nil)
	job.now = func() time.Time { return fixed }
	job.Grace = time.Hour

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	if want := fixed.Add(-time.Hour); !purger.before.Equal(want) {
		t.Errorf("before = %v, want %v", purger.before, want)
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{deleted: 42}, newTestLogger(&buf), nil)

	_ = job.Run(context.Background())

	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["deleted_count"] == float64(42) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	collector := &mockCollector{}
	job := NewCleanupJob(&mockPurger{err: errors.New("connection refused")}, newTestLogger(&buf), collector)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("エラー時は Run() がエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("元のエラーがラップされていない: %v", err)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("エラーログが出力されていない: %s", buf.String())
	}
	if collector.purged != 0 {
		t.Errorf("失敗時は件数を記録しない: purged = %d", collector.purged)
	}
}

// 削除対象がなくても冪等に成功する
func TestCleanupJob_Run_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{deleted: 0}, newTestLogger(&buf), nil)

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{calledCh: make(chan struct{}, 1)}
	job := NewCleanupJob(purger, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	select {
	case <-purger.calledCh:
	case <-time.After(2 * time.Second):
		t.Fatal("起動直後に Run が実行されなかった")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後に Start が終了しなかった")
	}

	if purger.callCount() != 1 {
		t.Errorf("calls = %d, want 1", purger.callCount())
	}
}

// 0以下の間隔でもパニックせず、DefaultIntervalで動作する
func TestCleanupJob_Start_NonPositiveIntervalUsesDefault(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		t.Run(interval.String(), func(t *testing.T) {
			var buf bytes.Buffer
			purger := &mockPurger{calledCh: make(chan struct{}, 1)}
			job := NewCleanupJob(purger, newTestLogger(&buf), nil)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				job.Start(ctx, interval)
				close(done)
			}()

			select {
			case <-purger.calledCh:
			case <-time.After(2 * time.Second):
				t.Fatal("起動直後に Run が実行されなかった")
			}
			cancel()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("キャンセル後に Start が終了しなかった")
			}

			if !strings.Contains(buf.String(), `"interval":3600000000000`) {
				t.Errorf("start log should report the default interval: %s", buf.String())
			}
		})
	}
}
