package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

// JSONLZstdWriter appends JSON lines to hour-rotated zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst. Each rotation starts a new zstd frame, so
// reopening an existing hour appends a frame rather than corrupting it.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	// OnClose is called with the path of every file the writer finished.
	OnClose func(path string)

	mu      sync.Mutex
	curHour string
	curPath string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	w.curPath = path
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
		if w.OnClose != nil && w.curPath != "" {
			w.OnClose(w.curPath)
		}
	}
	w.w = nil
	w.curHour = ""
	w.curPath = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadJSONL decodes every line of a file produced by JSONLZstdWriter, calling
// fn with the raw line. Iteration stops at the first error fn returns.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 128*1024)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 1 {
			if ferr := fn(line[:len(line)-1]); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// AlertLogger writes one JSONL entry per fired alert (compressed). It
// satisfies the watchboard sink contract; samples are not logged.
type AlertLogger struct{ w *JSONLZstdWriter }

func NewAlertLogger(dataDir string) *AlertLogger {
	return &AlertLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "alerts"), "alerts")}
}

func (l *AlertLogger) WriteAlert(a watch.Alert) error { return l.w.Write(a) }

func (l *AlertLogger) Emit(a watch.Alert) error { return l.WriteAlert(a) }

func (l *AlertLogger) Sample(watch.Pin, watch.Result, int64, int) error { return nil }

func (l *AlertLogger) Close() error { return l.w.Close() }

// ReadAlerts loads every alert stored in one hour file.
func ReadAlerts(path string) ([]watch.Alert, error) {
	var out []watch.Alert
	err := ReadJSONL(path, func(line []byte) error {
		var a watch.Alert
		if err := json.Unmarshal(line, &a); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		out = append(out, a)
		return nil
	})
	return out, err
}
