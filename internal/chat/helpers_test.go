package chat

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/shiftlog/internal/report"
)

// memPersister records appended rows.
type memPersister struct {
	mu   sync.Mutex
	rows [][]string
}

func (p *memPersister) Append(_ context.Context, row []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(p.rows, row)
	return nil
}

func (p *memPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rows)
}

// memUploader returns a fake link for every upload.
type memUploader struct{}

func (memUploader) Upload(_ context.Context, _, name string) (string, error) {
	return "https://drive.example/" + name, nil
}

func newTestController(t *testing.T, flow report.Flow, p report.Persister) *report.Controller {
	t.Helper()
	ctrl, err := report.NewController(report.ControllerOpts{
		Flow:      flow,
		Persister: p,
		Uploader:  memUploader{},
		PhotoDir:  t.TempDir(),
		Location:  time.UTC,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return ctrl
}

// syncBuffer is a bytes.Buffer safe for one writer and one polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitFor polls cond until it returns true or the timeout elapses.
func waitFor(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}
