package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// TranscriptWriter appends JSONL records to a zstd-compressed session file.
// One file per session, named by start time.
type TranscriptWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewTranscriptWriter creates baseDir/aibook-<timestamp>.jsonl.zst.
func NewTranscriptWriter(baseDir string) (*TranscriptWriter, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("aibook-%s.jsonl.zst", time.Now().UTC().Format("2006-01-02-150405"))
	f, err := os.Create(filepath.Join(baseDir, name))
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &TranscriptWriter{f: f, enc: enc, w: bufio.NewWriter(enc)}, nil
}

// Write appends one record.
func (t *TranscriptWriter) Write(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := t.w.Write(b); err != nil {
		return err
	}
	return t.w.WriteByte('\n')
}

// Close flushes and closes the transcript.
func (t *TranscriptWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.w.Flush(); err != nil {
		return err
	}
	if err := t.enc.Close(); err != nil {
		return err
	}
	return t.f.Close()
}
