package generate

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnolang/matchall/internal"
	tt "github.com/gnolang/matchall/internal/types"
)

func TestWriter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	out := filepath.Join(dir, "a_matchall.go")

	results := []*internal.Result{
		{Source: "a.go", Output: out, Content: []byte("package a\n"), Expanded: 1},
		{Source: "b.go", Skipped: true},
		{Source: "c.go", Output: filepath.Join(dir, "c_matchall.go"), Cached: true},
		{Source: "d.go", Issues: []tt.Issue{{Rule: "break-in-group"}}},
		nil,
	}

	w := &Writer{Logger: zap.NewNop()}
	written, err := w.Write(results)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(content))
	assert.NoFileExists(t, filepath.Join(dir, "c_matchall.go"))

	// unchanged content is not rewritten
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(out, past, past))
	written, err = w.Write(results)
	require.NoError(t, err)
	assert.Equal(t, 0, written)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.WithinDuration(t, past, info.ModTime(), time.Second)
}

func TestWriterStdout(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	out := filepath.Join(dir, "a_matchall.go")

	var buf bytes.Buffer
	w := &Writer{Stdout: &buf}
	written, err := w.Write([]*internal.Result{{Source: "a.go", Output: out, Content: []byte("package a\n")}})

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.Equal(t, "// ---- "+out+" ----\npackage a\n", buf.String())
	assert.NoFileExists(t, out)
}

func TestWriterDryRun(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "a_matchall.go")

	w := &Writer{DryRun: true}
	written, err := w.Write([]*internal.Result{{Source: "a.go", Output: out, Content: []byte("package a\n")}})

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.NoFileExists(t, out)
}

func TestWriterError(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "missing", "a_matchall.go")

	w := &Writer{}
	_, err := w.Write([]*internal.Result{{Source: "a.go", Output: out, Content: []byte("package a\n")}})
	assert.Error(t, err)
}

func TestIssues(t *testing.T) {
	t.Parallel()
	issues := Issues([]*internal.Result{
		{Issues: []tt.Issue{{Rule: "a"}, {Rule: "b"}}},
		nil,
		{Issues: []tt.Issue{{Rule: "c"}}},
	})
	assert.Len(t, issues, 3)
	assert.Equal(t, "c", issues[2].Rule)
}
