package pipeline

import (
	"errors"
	"sync"
	"testing"

	"github.com/aluiziolira/go-scrape-poems/models"
)

type mockWriter struct {
	mu        sync.Mutex
	batches   [][]*models.Poem
	committed bool
	closed    bool
	writeErr  error
}

func (mw *mockWriter) Write(poems []*models.Poem) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	copyBatch := make([]*models.Poem, len(poems))
	copy(copyBatch, poems)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Commit() error {
	mw.mu.Lock()
	mw.committed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return nil
}

func samplePoem(title string) *models.Poem {
	return &models.Poem{Title: title, Era: "李白〔唐代〕", Body: "床前明月光。"}
}

func TestPipelineFlushWritesOnceInOrder(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)

	poems := []*models.Poem{samplePoem("一"), samplePoem("二"), samplePoem("一")}
	if err := p.Flush(poems); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(writer.batches) != 1 {
		t.Fatalf("write calls = %d, want 1", len(writer.batches))
	}
	got := writer.batches[0]
	if len(got) != 3 || got[0].Title != "一" || got[1].Title != "二" || got[2].Title != "一" {
		t.Fatalf("unexpected batch order or dedup: %v", got)
	}
	if !writer.committed {
		t.Fatalf("output should be committed")
	}

	if processed := p.GetMetrics()["processed_poems"].(int64); processed != 3 {
		t.Fatalf("processed = %d, want 3", processed)
	}
}

func TestPipelineFlushTwice(t *testing.T) {
	p := NewPipeline(&mockWriter{})
	if err := p.Flush(nil); err != nil {
		t.Fatalf("first flush: %v", err)
	}
	if err := p.Flush(nil); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("second flush error = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineFlushRejectsInvalidPoem(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)

	err := p.Flush([]*models.Poem{samplePoem("一"), {Title: "二"}})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if len(writer.batches) != 0 || writer.committed {
		t.Fatalf("invalid result set must not reach the writer")
	}

	validation := p.GetMetrics()["validation_errors"].(map[string]int)
	if validation["invalid_record"] != 1 {
		t.Fatalf("invalid_record = %d, want 1", validation["invalid_record"])
	}
}

func TestPipelineFlushWriteError(t *testing.T) {
	writer := &mockWriter{writeErr: errors.New("disk full")}
	p := NewPipeline(writer)

	if err := p.Flush([]*models.Poem{samplePoem("一")}); err == nil {
		t.Fatalf("expected write error")
	}
	if writer.committed {
		t.Fatalf("failed write must not be committed")
	}
}
