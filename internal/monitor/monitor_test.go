package monitor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/akorchagin/hostsentry/internal/model"
	"github.com/akorchagin/hostsentry/internal/storage"
)

// mockCollector emits a fixed pair of process events on its first
// round and nothing afterwards.
type mockCollector struct {
	mu       sync.Mutex
	rounds   int
	netCalls int
}

func (m *mockCollector) CollectProcessEvents(context.Context) ([]model.UnifiedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds++
	if m.rounds > 1 {
		return nil, nil
	}
	return []model.UnifiedEvent{
		model.NewEvent(model.EventProcess, model.ProcessEvent{PID: 1, Name: "init"}, nil),
		model.NewEvent(model.EventProcess, model.ProcessEvent{PID: 2, Name: "sshd"}, nil),
	}, nil
}

func (m *mockCollector) CollectServiceEvents(context.Context, int) ([]model.UnifiedEvent, error) {
	return nil, nil
}

func (m *mockCollector) CollectNetworkEvents(ctx context.Context) (<-chan model.UnifiedEvent, error) {
	m.mu.Lock()
	m.netCalls++
	m.mu.Unlock()

	out := make(chan model.UnifiedEvent)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (m *mockCollector) CollectHardwareEvents(context.Context, float64, float64) ([]model.UnifiedEvent, error) {
	return nil, nil
}

func (m *mockCollector) CollectMalwareEvents(context.Context) ([]model.UnifiedEvent, error) {
	return nil, nil
}

// countingSink records how many documents reached the vector side.
type countingSink struct {
	mu   sync.Mutex
	docs int
}

func (s *countingSink) AddDocuments(_ context.Context, docs []model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs += len(docs)
	return nil
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs
}

func TestSupervisor_EndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	sink := &countingSink{}

	w, err := storage.Open(storage.Options{
		Path:      path,
		BatchSize: 1,
		Sink:      sink,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}

	col := &mockCollector{}
	sup := New(Options{
		Collector: col,
		Sink:      w,
		Logger:    zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop after cancel")
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := w.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err := storage.Open(storage.Options{Path: path, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reader.Close(context.Background())

	rows, err := reader.GetRecentEvents("process", 10)
	if err != nil {
		t.Fatalf("GetRecentEvents: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d process rows, want 2", len(rows))
	}
	if sink.count() < 2 {
		t.Errorf("vector sink received %d docs, want at least 2", sink.count())
	}
	if col.netCalls == 0 {
		t.Error("network monitor never opened the stream")
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(Options{})
	if s.opts.Intervals.Process != 10*time.Second {
		t.Errorf("Process interval = %v", s.opts.Intervals.Process)
	}
	if s.opts.ServiceLimit != 50 {
		t.Errorf("ServiceLimit = %d", s.opts.ServiceLimit)
	}
	if s.opts.CPUThreshold != 40 || s.opts.MemThreshold != 40 {
		t.Errorf("thresholds = %v/%v", s.opts.CPUThreshold, s.opts.MemThreshold)
	}
}
