package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-poems/models"
	"github.com/google/renameio/v2"
)

// SentenceTerminator is followed by a line break in the text layout.
const SentenceTerminator = "。"

// FormatPoem renders one poem in the text layout: title line, era line, the
// body broken after every sentence terminator, then a blank separator line.
func FormatPoem(p *models.Poem) string {
	var b strings.Builder
	b.WriteString(p.Title)
	b.WriteByte('\n')
	b.WriteString(p.Era)
	b.WriteByte('\n')
	body := strings.ReplaceAll(p.Body, SentenceTerminator, SentenceTerminator+"\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// stagedFile buffers output in a pending file next to the destination. The
// destination is replaced only on commit.
type stagedFile struct {
	path    string
	pending *renameio.PendingFile
	buf     *bufio.Writer
	written int64
	done    bool
}

func newStagedFile(filename string) (*stagedFile, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	pending, err := renameio.NewPendingFile(filename, renameio.WithPermissions(0o644))
	if err != nil {
		return nil, fmt.Errorf("create pending file for %q: %w", filename, err)
	}
	sf := &stagedFile{path: filename, pending: pending}
	sf.buf = bufio.NewWriter(countingWriter{sf})
	return sf, nil
}

type countingWriter struct{ sf *stagedFile }

func (cw countingWriter) Write(b []byte) (int, error) {
	n, err := cw.sf.pending.Write(b)
	cw.sf.written += int64(n)
	return n, err
}

func (sf *stagedFile) commit() error {
	if sf.done {
		return nil
	}
	if err := sf.buf.Flush(); err != nil {
		return fmt.Errorf("flush %q: %w", sf.path, err)
	}
	if err := sf.pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %q: %w", sf.path, err)
	}
	sf.done = true
	return nil
}

// close discards uncommitted output. It is a no-op after commit.
func (sf *stagedFile) close() error {
	if sf.done {
		return nil
	}
	sf.done = true
	return sf.pending.Cleanup()
}

func (sf *stagedFile) validate() error {
	if !sf.done {
		return fmt.Errorf("%s: output not committed", sf.path)
	}
	info, err := os.Stat(sf.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", sf.path, err)
	}
	if info.Size() != sf.written {
		return fmt.Errorf("%s: size %d, wrote %d bytes", sf.path, info.Size(), sf.written)
	}
	return nil
}

// TextWriter writes poems in the plain text layout.
type TextWriter struct {
	file *stagedFile
	mu   sync.Mutex
}

// NewTextWriter stages output for filename without touching it.
func NewTextWriter(filename string) (*TextWriter, error) {
	sf, err := newStagedFile(filename)
	if err != nil {
		return nil, err
	}
	return &TextWriter{file: sf}, nil
}

// Write appends poems to the staged output.
func (tw *TextWriter) Write(poems []*models.Poem) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	for _, poem := range poems {
		if _, err := tw.file.buf.WriteString(FormatPoem(poem)); err != nil {
			return fmt.Errorf("write text record: %w", err)
		}
	}
	return nil
}

// Commit replaces the destination with the staged output.
func (tw *TextWriter) Commit() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.file.commit()
}

// Close discards the staged output unless it was committed.
func (tw *TextWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.file.close()
}

// Validate checks the destination holds everything that was written.
func (tw *TextWriter) Validate() error {
	return tw.file.validate()
}

// CSVWriter writes records to CSV.
type CSVWriter struct {
	file   *stagedFile
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter stages a CSV file and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	sf, err := newStagedFile(filename)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(sf.buf)
	header := []string{"title", "era", "body", "url", "scraped_at"}
	if err := writer.Write(header); err != nil {
		sf.close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	return &CSVWriter{
		file:   sf,
		writer: writer,
	}, nil
}

// Write appends poems to the CSV output.
func (cw *CSVWriter) Write(poems []*models.Poem) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, poem := range poems {
		scrapedAt := ""
		if !poem.ScrapedAt.IsZero() {
			scrapedAt = poem.ScrapedAt.Format(time.RFC3339)
		}
		record := []string{
			poem.Title,
			poem.Era,
			poem.Body,
			poem.URL,
			scrapedAt,
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Commit flushes the CSV writer and replaces the destination.
func (cw *CSVWriter) Commit() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.commit()
}

// Close discards the staged output unless it was committed.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.file.close()
}

// Validate checks the destination holds everything that was written.
func (cw *CSVWriter) Validate() error {
	return cw.file.validate()
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	file    *stagedFile
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter stages a JSON lines file.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	sf, err := newStagedFile(filename)
	if err != nil {
		return nil, err
	}

	encoder := json.NewEncoder(sf.buf)
	encoder.SetEscapeHTML(false)
	return &JSONWriter{
		file:    sf,
		encoder: encoder,
	}, nil
}

// Write appends poems in JSONL format.
func (jw *JSONWriter) Write(poems []*models.Poem) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, poem := range poems {
		if err := jw.encoder.Encode(poem); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	return nil
}

// Commit replaces the destination with the staged output.
func (jw *JSONWriter) Commit() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.file.commit()
}

// Close discards the staged output unless it was committed.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.file.close()
}

// Validate checks the destination holds everything that was written.
func (jw *JSONWriter) Validate() error {
	return jw.file.validate()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
