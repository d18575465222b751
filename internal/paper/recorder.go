package paper

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"peeler-go/internal/execution"
)

// journalLine is one JSONL record: the fill plus the session account it was booked to.
type journalLine struct {
	Account string `json:"account,omitempty"`
	execution.Fill
}

// JSONLRecorder appends fills to a JSON-lines journal. Each line is flushed as it is written so the
// file stays readable while the engine runs; the first write error is kept and returned by Close.
type JSONLRecorder struct {
	mu      sync.Mutex
	account string
	file    *os.File
	buf     *bufio.Writer
	enc     *json.Encoder
	err     error
}

// NewJSONLRecorder opens path for appending, creating parent directories as needed.
func NewJSONLRecorder(path, account string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	buf := bufio.NewWriter(file)
	return &JSONLRecorder{account: account, file: file, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Record appends one fill. Writes after Close or after a failed write are dropped.
func (r *JSONLRecorder) Record(fill execution.Fill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil || r.err != nil {
		return
	}
	if err := r.enc.Encode(journalLine{Account: r.account, Fill: fill}); err != nil {
		r.err = err
		return
	}
	r.err = r.buf.Flush()
}

// Err reports the first write failure, if any.
func (r *JSONLRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close flushes and closes the journal, returning the first error seen.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return r.err
	}
	if err := r.buf.Flush(); err != nil && r.err == nil {
		r.err = err
	}
	if err := r.file.Close(); err != nil && r.err == nil {
		r.err = err
	}
	r.file = nil
	return r.err
}

type multiRecorder []FillRecorder

func (m multiRecorder) Record(fill execution.Fill) {
	for _, r := range m {
		r.Record(fill)
	}
}

// Tee fans every fill out to each non-nil recorder.
func Tee(recorders ...FillRecorder) FillRecorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
