package paper

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"peeler-go/internal/execution"
	"peeler-go/internal/fixed"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "fills.jsonl")

	recorder, err := NewJSONLRecorder(path, "demo")
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	fill := fillOf("o1", execution.Buy, "1", "1.1050")
	recorder.Record(fill)
	recorder.Record(fillOf("o2", execution.Sell, "1", "1.1060"))

	// Lines are flushed as they are recorded.
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		t.Fatalf("expected journal content before close, err=%v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	recorder.Record(fill)

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("json decode: %v", err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["account"] != "demo" || lines[0]["order_id"] != "o1" || lines[0]["price"] != "1.105" {
		t.Fatalf("unexpected first line %v", lines[0])
	}

	var decoded execution.Fill
	raw, _ := json.Marshal(lines[1])
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode fill: %v", err)
	}
	if decoded.Side != execution.Sell || decoded.Price != fixed.MustParse("1.106") {
		t.Fatalf("unexpected decoded fill %+v", decoded)
	}
}
