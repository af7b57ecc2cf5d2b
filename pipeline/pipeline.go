package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-poems/models"
	"github.com/aluiziolira/go-scrape-poems/parser"
)

var (
	// ErrPipelineClosed is returned when Flush is called more than once.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output. Nothing reaches the
// destination until Commit; Close discards whatever was not committed.
type OutputWriter interface {
	Write(poems []*models.Poem) error
	Commit() error
	Close() error
	Validate() error
}

// Pipeline validates the final result set and hands it to the writer once.
type Pipeline struct {
	writer OutputWriter

	metrics metrics

	mu      sync.Mutex // guards flushed
	flushed bool
}

// NewPipeline builds a pipeline around writer.
func NewPipeline(writer OutputWriter) *Pipeline {
	return &Pipeline{
		writer:  writer,
		metrics: newMetrics(),
	}
}

// Flush validates every poem, writes them in order and commits the output.
// Any invalid poem aborts the flush before the destination is touched.
func (p *Pipeline) Flush(poems []*models.Poem) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.flushed {
		return ErrPipelineClosed
	}
	p.flushed = true

	for i, poem := range poems {
		if err := parser.ValidatePoem(poem); err != nil {
			p.metrics.addValidation("invalid_record")
			return fmt.Errorf("poem %d: %w", i, err)
		}
	}

	if err := p.writer.Write(poems); err != nil {
		return fmt.Errorf("write poems: %w", err)
	}
	if err := p.writer.Commit(); err != nil {
		return fmt.Errorf("commit output: %w", err)
	}
	p.metrics.addProcessed(len(poems))
	return nil
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addProcessed(n int) {
	m.mu.Lock()
	m.processed += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_poems":   m.processed,
		"validation_errors": copyValidation,
	}
}
