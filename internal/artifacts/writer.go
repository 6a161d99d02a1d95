package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Well-known artifact names.
const (
	PRDFile       = "PRD.md"
	QALogFile     = "qa_log.json"
	MetricsFile   = "metrics.json"
	RawCoderFile  = "_debug_raw_coder_output.txt"
	RawQAFile     = "_debug_raw_qa_output.txt"
	DebugErrsFile = "_debug_errors.txt"
	DebugLogFile  = "_debug.log"
	IndexFile     = "index.html"
)

// coreFiles are removed by a selective Clear.
var coreFiles = []string{
	PRDFile, "file_breakdown.json", IndexFile, "style.css", "script.js",
	QALogFile, MetricsFile, RawCoderFile, RawQAFile, DebugErrsFile, DebugLogFile,
}

const timestampLayout = "2006-01-02T15:04:05Z"

// QALog is the persisted shape of qa_log.json.
type QALog struct {
	TestsPassed bool   `json:"tests_passed"`
	Feedback    string `json:"feedback"`
	Timestamp   string `json:"timestamp"`
}

// RunMetrics summarises one finished run.
type RunMetrics struct {
	Iterations     int      `json:"iterations"`
	TestsPassed    bool     `json:"tests_passed"`
	GeneratedFiles []string `json:"generated_files"`
}

// MetricsDoc is the persisted shape of metrics.json.
type MetricsDoc struct {
	Timestamp string     `json:"timestamp"`
	Latest    RunMetrics `json:"latest"`
}

// Entry describes one file in the output directory.
type Entry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Writer persists named artifacts inside a single output directory.
type Writer struct {
	guard  *PathGuard
	logger *zap.Logger
	now    func() time.Time

	debugMu sync.Mutex
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	guard, err := NewPathGuard(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(guard.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{guard: guard, logger: logger, now: time.Now}, nil
}

// Dir returns the absolute output directory.
func (w *Writer) Dir() string {
	return w.guard.BaseDir
}

// Path resolves name inside the output directory.
func (w *Writer) Path(name string) (string, error) {
	return w.guard.Resolve(name)
}

// Safe reports whether name may be written.
func (w *Writer) Safe(name string) bool {
	return w.guard.Safe(name)
}

// Write coerces content to text and writes it atomically under name.
func (w *Writer) Write(name string, content any) error {
	path, err := w.guard.Resolve(name)
	if err != nil {
		return err
	}
	if err := WriteAtomic(path, []byte(Coerce(content))); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.logger.Debug("artifact written", zap.String("name", name))
	return nil
}

// Coerce turns any value into the text that Write persists. It never fails:
// structured values become indented JSON and anything JSON cannot encode
// falls back to its %v form.
func Coerce(content any) string {
	if isNilPointer(content) {
		return ""
	}
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	case error:
		return callText(v.Error, content)
	case fmt.Stringer:
		return callText(v.String, content)
	}

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	if string(data) == "null" {
		return ""
	}
	return string(data)
}

func isNilPointer(content any) bool {
	v := reflect.ValueOf(content)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// callText runs a String or Error method, falling back to fmt's %v when the
// method panics.
func callText(text func() string, content any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("%v", content)
		}
	}()
	return text()
}

// WriteFiles writes every entry of files and returns the written names in
// sorted order. Unsafe names are skipped and logged.
func (w *Writer) WriteFiles(files map[string]string) ([]string, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	written := make([]string, 0, len(names))
	for _, name := range names {
		if err := w.Write(name, files[name]); err != nil {
			if errors.Is(err, ErrUnsafePath) {
				w.logger.Warn("skipping unsafe artifact name", zap.String("name", name))
				continue
			}
			return written, err
		}
		written = append(written, name)
	}
	return written, nil
}

// WritePRD persists the plan text.
func (w *Writer) WritePRD(prd string) error {
	return w.Write(PRDFile, prd)
}

// WriteQALog replaces qa_log.json with the latest verdict.
func (w *Writer) WriteQALog(passed bool, feedback string) error {
	return w.Write(QALogFile, QALog{
		TestsPassed: passed,
		Feedback:    feedback,
		Timestamp:   w.timestamp(),
	})
}

// WriteMetrics replaces metrics.json with the latest run summary.
func (w *Writer) WriteMetrics(m RunMetrics) error {
	if m.GeneratedFiles == nil {
		m.GeneratedFiles = []string{}
	}
	return w.Write(MetricsFile, MetricsDoc{Timestamp: w.timestamp(), Latest: m})
}

// ReadMetrics loads metrics.json.
func (w *Writer) ReadMetrics() (MetricsDoc, error) {
	var doc MetricsDoc
	data, err := w.Read(MetricsFile)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", MetricsFile, err)
	}
	return doc, nil
}

// ReadQALog loads qa_log.json.
func (w *Writer) ReadQALog() (QALog, error) {
	var log QALog
	data, err := w.Read(QALogFile)
	if err != nil {
		return log, err
	}
	if err := json.Unmarshal(data, &log); err != nil {
		return log, fmt.Errorf("decode %s: %w", QALogFile, err)
	}
	return log, nil
}

// AppendDebug appends a timestamped line to the debug error log.
func (w *Writer) AppendDebug(format string, args ...any) error {
	w.debugMu.Lock()
	defer w.debugMu.Unlock()

	path, err := w.guard.Resolve(DebugErrsFile)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer f.Close()

	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	if _, err := fmt.Fprintf(f, "[%s] %s\n", w.timestamp(), line); err != nil {
		return fmt.Errorf("append debug log: %w", err)
	}
	return nil
}

// RecordFailure appends a failed model attempt to the debug log.
func (w *Writer) RecordFailure(role string, err error) {
	if appendErr := w.AppendDebug("%s: %v", role, err); appendErr != nil {
		w.logger.Warn("debug log append failed", zap.Error(appendErr))
	}
}

// Clear removes artifacts of previous runs. With all set, every entry in the
// output directory goes; otherwise the core files plus whatever the previous
// metrics.json listed as generated.
func (w *Writer) Clear(all bool) error {
	if all {
		entries, err := os.ReadDir(w.guard.BaseDir)
		if err != nil {
			return fmt.Errorf("read output dir: %w", err)
		}
		var errs []error
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(w.guard.BaseDir, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	names := append([]string(nil), coreFiles...)
	if doc, err := w.ReadMetrics(); err == nil {
		names = append(names, doc.Latest.GeneratedFiles...)
	}

	var errs []error
	for _, name := range names {
		path, err := w.guard.Resolve(name)
		if err != nil {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns every regular file under the output directory, sorted by name.
// Names use forward slashes.
func (w *Writer) List() ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(w.guard.BaseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || isTemp(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.guard.BaseDir, path)
		if err != nil {
			return err
		}
		out = append(out, Entry{Name: filepath.ToSlash(rel), Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Read returns the content of one artifact.
func (w *Writer) Read(name string) ([]byte, error) {
	path, err := w.guard.Resolve(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (w *Writer) timestamp() string {
	return w.now().UTC().Format(timestampLayout)
}
