// Package pipeline serializes the final poem list to disk.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-poems/models"
)

// DualWriter outputs the text layout and JSON lines side by side.
type DualWriter struct {
	textWriter *TextWriter
	jsonWriter *JSONWriter
	mu         sync.Mutex
}

// NewDualWriter creates a writer for both the text and JSON outputs.
func NewDualWriter(textFilename, jsonFilename string) (*DualWriter, error) {
	textWriter, err := NewTextWriter(textFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create text writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		textWriter.Close()
		return nil, fmt.Errorf("failed to create JSON writer: %w", err)
	}

	return &DualWriter{
		textWriter: textWriter,
		jsonWriter: jsonWriter,
	}, nil
}

// Write writes poems to both outputs.
func (dw *DualWriter) Write(poems []*models.Poem) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.textWriter.Write(poems); err != nil {
		return fmt.Errorf("text write failed: %w", err)
	}
	if err := dw.jsonWriter.Write(poems); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}
	return nil
}

// Commit replaces both destinations. The text output is committed last so a
// JSON failure leaves the primary output untouched.
func (dw *DualWriter) Commit() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.jsonWriter.Commit(); err != nil {
		return fmt.Errorf("JSON commit failed: %w", err)
	}
	if err := dw.textWriter.Commit(); err != nil {
		return fmt.Errorf("text commit failed: %w", err)
	}
	return nil
}

// Close closes both writers.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.textWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("text close failed: %w", err))
	}
	if err := dw.jsonWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("JSON close failed: %w", err))
	}
	return errors.Join(errs...)
}

// Validate validates both output files.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.textWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("text validation failed: %w", err))
	}
	if err := dw.jsonWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("JSON validation failed: %w", err))
	}
	return errors.Join(errs...)
}
