package artifacts

import (
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(filepath.Join(t.TempDir(), "outputs"), nil)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

type label string

func (l label) String() string { return "label:" + string(l) }

func TestCoerce(t *testing.T) {
	require.Equal(t, "", Coerce(nil))
	require.Equal(t, "plain", Coerce("plain"))
	require.Equal(t, "bytes", Coerce([]byte("bytes")))
	require.Equal(t, "boom", Coerce(errors.New("boom")))
	require.Equal(t, "label:x", Coerce(label("x")))
	require.Equal(t, "{\n  \"a\": 1\n}", Coerce(map[string]int{"a": 1}))
	require.Equal(t, "42", Coerce(42))

	var nilMap map[string]string
	require.Equal(t, "", Coerce(nilMap))

	// JSON cannot encode NaN; %v is used instead.
	require.Equal(t, "NaN", Coerce(math.NaN()))
	require.NotPanics(t, func() { Coerce(make(chan int)) })

	var u *url.URL
	require.NotPanics(t, func() { require.Equal(t, "", Coerce(u)) })
	var e *fs.PathError
	require.NotPanics(t, func() { require.Equal(t, "", Coerce(e)) })
	require.NotPanics(t, func() { Coerce(panicky{}) })
}

type panicky struct{}

func (panicky) String() string { panic("no text") }

func TestWriteCreatesNestedFiles(t *testing.T) {
	w := newTestWriter(t)

	require.NoError(t, w.Write("assets/app.js", "console.log(1)"))
	data, err := os.ReadFile(filepath.Join(w.Dir(), "assets", "app.js"))
	require.NoError(t, err)
	require.Equal(t, "console.log(1)", string(data))

	entries, err := os.ReadDir(filepath.Join(w.Dir(), "assets"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteRejectsEscapingNames(t *testing.T) {
	w := newTestWriter(t)

	for _, name := range []string{"../evil.html", "/etc/passwd", "a/../../b", "", "."} {
		err := w.Write(name, "x")
		require.ErrorIs(t, err, ErrUnsafePath, name)
	}
}

func TestWriteFilesSkipsUnsafeNames(t *testing.T) {
	w := newTestWriter(t)

	written, err := w.WriteFiles(map[string]string{
		"index.html": "<html></html>",
		"style.css":  "body{}",
		"../x.js":    "bad",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"index.html", "style.css"}, written)
}

func TestQALogAndMetricsShape(t *testing.T) {
	w := newTestWriter(t)

	require.NoError(t, w.WriteQALog(true, "looks good"))
	raw, err := w.Read(QALogFile)
	require.NoError(t, err)

	var qa map[string]any
	require.NoError(t, json.Unmarshal(raw, &qa))
	require.Equal(t, true, qa["tests_passed"])
	require.Equal(t, "looks good", qa["feedback"])
	require.Equal(t, "2026-03-01T12:00:00Z", qa["timestamp"])

	require.NoError(t, w.WriteMetrics(RunMetrics{Iterations: 2, TestsPassed: false}))
	doc, err := w.ReadMetrics()
	require.NoError(t, err)
	require.Equal(t, 2, doc.Latest.Iterations)
	require.NotNil(t, doc.Latest.GeneratedFiles)

	raw, err = w.Read(MetricsFile)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"generated_files": []`)
}

func TestAppendDebugAccumulates(t *testing.T) {
	w := newTestWriter(t)

	require.NoError(t, w.AppendDebug("plan: %s", "first"))
	w.RecordFailure("code", errors.New("second"))

	raw, err := w.Read(DebugErrsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Equal(t, []string{
		"[2026-03-01T12:00:00Z] plan: first",
		"[2026-03-01T12:00:00Z] code: second",
	}, lines)
}

func TestClearSelectiveKeepsBackups(t *testing.T) {
	w := newTestWriter(t)

	require.NoError(t, w.Write("index.html", "x"))
	require.NoError(t, w.Write("app/main.js", "x"))
	require.NoError(t, w.Write(DebugLogFile, "previous run log"))
	require.NoError(t, w.Write("user_product_request_20260301.txt", "old request"))
	require.NoError(t, w.WriteMetrics(RunMetrics{Iterations: 1, GeneratedFiles: []string{"index.html", "app/main.js", "../outside"}}))

	require.NoError(t, w.Clear(false))

	entries, err := w.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "user_product_request_20260301.txt", entries[0].Name)
}

func TestClearAll(t *testing.T) {
	w := newTestWriter(t)

	require.NoError(t, w.Write("index.html", "x"))
	require.NoError(t, w.Write("sub/keep.txt", "x"))
	require.NoError(t, w.Write("user_product_request_1.txt", "x"))

	require.NoError(t, w.Clear(true))

	entries, err := w.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestListSortedWithSlashes(t *testing.T) {
	w := newTestWriter(t)

	require.NoError(t, w.Write("style.css", "b"))
	require.NoError(t, w.Write("assets/logo.svg", "<svg/>"))
	require.NoError(t, w.Write("index.html", "a"))

	entries, err := w.List()
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	require.Equal(t, []string{"assets/logo.svg", "index.html", "style.css"}, names)
	require.EqualValues(t, 6, entries[0].Size)
}
