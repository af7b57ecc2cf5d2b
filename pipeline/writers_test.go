package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-poems/models"
)

func testPoem() *models.Poem {
	return &models.Poem{
		Title:     "静夜思",
		Era:       "李白〔唐代〕",
		Body:      "床前明月光，疑是地上霜。举头望明月，低头思故乡。",
		URL:       "http://example.test/shiwenv_1.aspx",
		ScrapedAt: time.Date(2024, 9, 12, 8, 0, 0, 0, time.UTC),
	}
}

func TestFormatPoem(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "two sentences",
			body: "床前明月光，疑是地上霜。举头望明月，低头思故乡。",
			want: "T\nE\n床前明月光，疑是地上霜。\n举头望明月，低头思故乡。\n\n",
		},
		{
			name: "no terminator",
			body: "关关雎鸠，在河之洲",
			want: "T\nE\n关关雎鸠，在河之洲\n\n",
		},
		{
			name: "terminator mid body",
			body: "甲。乙",
			want: "T\nE\n甲。\n乙\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatPoem(&models.Poem{Title: "T", Era: "E", Body: tt.body})
			if got != tt.want {
				t.Fatalf("FormatPoem() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatPoemBreakCount(t *testing.T) {
	body := "一。二。三。四"
	got := FormatPoem(&models.Poem{Title: "T", Era: "E", Body: body})
	lines := strings.Split(got, "\n")
	if lines[0] != "T" || lines[1] != "E" {
		t.Fatalf("title and era lines must be verbatim: %q", got)
	}
	if n := strings.Count(got, SentenceTerminator+"\n"); n != strings.Count(body, SentenceTerminator) {
		t.Fatalf("breaks after terminator = %d, want %d", n, strings.Count(body, SentenceTerminator))
	}
}

func TestTextWriterCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "poems.txt")

	writer, err := NewTextWriter(path)
	if err != nil {
		t.Fatalf("create text writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write([]*models.Poem{testPoem()}); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("destination must not exist before commit, stat err = %v", err)
	}
	if err := writer.Commit(); err != nil {
		t.Fatalf("commit text: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate text: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	want := "静夜思\n李白〔唐代〕\n床前明月光，疑是地上霜。\n举头望明月，低头思故乡。\n\n"
	if string(data) != want {
		t.Fatalf("text output = %q, want %q", data, want)
	}
}

func TestTextWriterCloseWithoutCommitLeavesDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poems.txt")
	if err := os.WriteFile(path, []byte("previous run\n"), 0o644); err != nil {
		t.Fatalf("seed destination: %v", err)
	}

	writer, err := NewTextWriter(path)
	if err != nil {
		t.Fatalf("create text writer: %v", err)
	}
	if err := writer.Write([]*models.Poem{testPoem()}); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close text: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != "previous run\n" {
		t.Fatalf("destination changed: %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("pending file left behind: %d entries", len(entries))
	}
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poems.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write([]*models.Poem{testPoem()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Commit(); err != nil {
		t.Fatalf("commit csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "title" || records[0][1] != "era" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][0] != "静夜思" {
		t.Fatalf("unexpected title: %v", records[1])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poems.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write([]*models.Poem{testPoem(), testPoem()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Commit(); err != nil {
		t.Fatalf("commit json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded models.Poem
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded.Era != "李白〔唐代〕" {
			t.Fatalf("era=%q", decoded.Era)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 2 {
		t.Fatalf("json lines=%d, want 2", count)
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "poems.txt")
	jsonPath := filepath.Join(dir, "poems.jsonl")

	writer, err := NewDualWriter(textPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write([]*models.Poem{testPoem()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Commit(); err != nil {
		t.Fatalf("commit dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}

	if info, err := os.Stat(textPath); err != nil || info.Size() == 0 {
		t.Fatalf("text file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}
