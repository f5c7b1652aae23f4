package generate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnolang/matchall/internal"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Run(filePath string) (*internal.Result, error) {
	args := m.Called(filePath)
	result, _ := args.Get(0).(*internal.Result)
	return result, args.Error(1)
}

func (m *mockEngine) RunSource(filename string, source []byte) (*internal.Result, error) {
	args := m.Called(filename, source)
	result, _ := args.Get(0).(*internal.Result)
	return result, args.Error(1)
}

func (m *mockEngine) IgnoreRule(rule string) {
	m.Called(rule)
}

func (m *mockEngine) IgnorePath(path string) {
	m.Called(path)
}

func (m *mockEngine) BuildTag() string {
	return "matchall"
}

func createTempFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("package p\n"), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func TestProcessFile(t *testing.T) {
	t.Parallel()
	expected := &internal.Result{Source: "test.go", Output: "test_matchall.go", Expanded: 2}
	engine := new(mockEngine)
	engine.On("Run", "test.go").Return(expected, nil)

	result, err := ProcessFile(engine, "test.go")

	assert.NoError(t, err)
	assert.Equal(t, expected, result)
	engine.AssertExpectations(t)
}

func TestProcessSources(t *testing.T) {
	t.Parallel()
	logger, _ := zap.NewProduction()
	engine := new(mockEngine)
	engine.On("RunSource", "a.go", []byte("package a")).Return(&internal.Result{Source: "a.go"}, nil)
	engine.On("RunSource", "b.go", []byte("package b")).Return(&internal.Result{Source: "b.go"}, nil)

	results, err := ProcessSources(context.Background(), logger, engine, []Source{
		{Name: "a.go", Content: []byte("package a")},
		{Name: "b.go", Content: []byte("package b")},
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.go", results[0].Source)
	assert.Equal(t, "b.go", results[1].Source)
	engine.AssertExpectations(t)
}

func TestProcessSourcesStopsOnError(t *testing.T) {
	t.Parallel()
	engine := new(mockEngine)
	engine.On("RunSource", "bad.go", []byte("x")).Return(nil, errors.New("parse error"))

	_, err := ProcessSources(context.Background(), zap.NewNop(), engine, []Source{
		{Name: "bad.go", Content: []byte("x")},
		{Name: "never.go", Content: []byte("y")},
	})

	assert.EqualError(t, err, "parse error")
	engine.AssertNotCalled(t, "RunSource", "never.go", []byte("y"))
}

func TestProcessPath(t *testing.T) {
	t.Parallel()
	logger, _ := zap.NewProduction()
	tempDir := t.TempDir()

	paths := createTempFiles(t, tempDir, "b.go", "a.go", "sub/c.go")
	createTempFiles(t, tempDir, "testdata/skip.go", "vendor/skip.go", ".hidden/skip.go", "_build/skip.go", "notes.txt")

	engine := new(mockEngine)
	for _, path := range paths {
		engine.On("Run", path).Return(&internal.Result{Source: path}, nil)
	}

	results, err := ProcessPath(context.Background(), logger, engine, tempDir, ProcessFile)

	require.NoError(t, err)
	require.Len(t, results, 3)
	// results are sorted by source
	assert.Equal(t, filepath.Join(tempDir, "a.go"), results[0].Source)
	assert.Equal(t, filepath.Join(tempDir, "b.go"), results[1].Source)
	assert.Equal(t, filepath.Join(tempDir, "sub", "c.go"), results[2].Source)
	engine.AssertExpectations(t)
	engine.AssertNumberOfCalls(t, "Run", 3)
}

func TestProcessPathSingleFile(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	paths := createTempFiles(t, tempDir, "one.go", "readme.md")

	engine := new(mockEngine)
	engine.On("Run", paths[0]).Return(&internal.Result{Source: paths[0]}, nil)

	results, err := ProcessPath(context.Background(), zap.NewNop(), engine, paths[0], ProcessFile)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = ProcessPath(context.Background(), zap.NewNop(), engine, paths[1], ProcessFile)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = ProcessPath(context.Background(), zap.NewNop(), engine, filepath.Join(tempDir, "missing.go"), ProcessFile)
	assert.Error(t, err)
}

func TestProcessFiles(t *testing.T) {
	t.Parallel()
	logger, _ := zap.NewProduction()
	tempDir := t.TempDir()

	paths := createTempFiles(t, tempDir, "test1.go", "test2.go")

	engine := new(mockEngine)
	engine.On("Run", paths[0]).Return(&internal.Result{Source: paths[0], Expanded: 1}, nil)
	engine.On("Run", paths[1]).Return(nil, errors.New("boom"))

	results, err := ProcessFiles(context.Background(), logger, engine, append(paths, filepath.Join(tempDir, "missing.go")), ProcessFile)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "missing.go")
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Expanded)
	engine.AssertExpectations(t)
}

func TestProcessFilesCanceled(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	createTempFiles(t, tempDir, "a.go", "b.go")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := ProcessFiles(ctx, zap.NewNop(), new(mockEngine), []string{tempDir}, ProcessFile)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestIsPackagePattern(t *testing.T) {
	t.Parallel()
	assert.True(t, isPackagePattern("./..."))
	assert.True(t, isPackagePattern("github.com/gnolang/matchall/..."))
	assert.False(t, isPackagePattern("./pkg"))
	assert.False(t, isPackagePattern("file.go"))
}

func TestNewWithEngine(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("name: test\nbuild_tag: multi\n"), 0o644))

	engine, config, err := New(dir, configPath)
	require.NoError(t, err)
	assert.Equal(t, "test", config.Name)
	assert.Equal(t, "multi", engine.BuildTag())

	_, _, err = New(dir, filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
