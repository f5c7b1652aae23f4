// Package generate drives the matchall engine over files, directories and
// Go package patterns, and writes the generated files.
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/gnolang/matchall/internal"
)

type Engine interface {
	Run(filePath string) (*internal.Result, error)
	RunSource(filename string, source []byte) (*internal.Result, error)
	IgnoreRule(rule string)
	IgnorePath(path string)
	BuildTag() string
}

// Processor handles a single file path.
type Processor func(Engine, string) (*internal.Result, error)

// New creates an engine configured from the file at configurationPath.
func New(rootDir string, configurationPath string) (*internal.Engine, Config, error) {
	config, err := LoadConfig(configurationPath)
	if err != nil {
		return nil, config, err
	}

	engine, err := internal.NewEngine(rootDir, config.Options())
	if err != nil {
		return nil, config, err
	}
	return engine, config, nil
}

func ProcessFile(engine Engine, filePath string) (*internal.Result, error) {
	return engine.Run(filePath)
}

// Source is an in-memory file.
type Source struct {
	Name    string
	Content []byte
}

// ProcessSources runs in-memory files through the engine, as read from
// stdin by gen --stdin.
func ProcessSources(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	sources []Source,
) ([]*internal.Result, error) {
	results := make([]*internal.Result, 0, len(sources))
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := engine.RunSource(source.Name, source.Content)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing source", zap.String("source", source.Name), zap.Error(err))
			}
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// ProcessFiles processes every path in order. A path may be a file, a
// directory (walked recursively) or a Go package pattern such as ./...
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	paths []string,
	processor Processor,
) ([]*internal.Result, error) {
	var all []*internal.Result
	var errs []error
	for _, path := range paths {
		results, err := ProcessPath(ctx, logger, engine, path, processor)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			errs = append(errs, err)
		}
		all = append(all, results...)
	}
	return all, errors.Join(errs...)
}

func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	path string,
	processor Processor,
) ([]*internal.Result, error) {
	if isPackagePattern(path) {
		files, err := ExpandPattern(ctx, path, engine.BuildTag())
		if err != nil {
			return nil, err
		}
		return processConcurrently(ctx, logger, engine, path, files, processor)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	if !info.IsDir() {
		if !hasDesiredExtension(path) {
			return nil, nil
		}
		result, err := processor(engine, path)
		if err != nil {
			return nil, err
		}
		return []*internal.Result{result}, nil
	}

	var files []string
	err = filepath.Walk(path, func(filePath string, fileInfo os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fileInfo.IsDir() && filePath != path && skipDir(fileInfo.Name()) {
			return filepath.SkipDir
		}
		if !fileInfo.IsDir() && hasDesiredExtension(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", path, err)
	}

	return processConcurrently(ctx, logger, engine, path, files, processor)
}

type fileResult struct {
	result *internal.Result
	err    error
}

func processConcurrently(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	description string,
	files []string,
	processor Processor,
) ([]*internal.Result, error) {
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(isatty.IsTerminal(os.Stderr.Fd())),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	resultChan := make(chan fileResult, len(files))

	// limit the number of workers
	sem := make(chan struct{}, runtime.NumCPU())

	// drain what was already started before giving up
	abort := func(started int) ([]*internal.Result, error) {
		for range started {
			<-resultChan
		}
		return nil, ctx.Err()
	}

	started := 0
	for _, filePath := range files {
		if ctx.Err() != nil {
			return abort(started)
		}
		select {
		case <-ctx.Done():
			return abort(started)
		case sem <- struct{}{}:
		}
		started++
		go func(fp string) {
			defer func() { <-sem }()

			result, err := processor(engine, fp)
			if err != nil {
				if logger != nil {
					logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
				}
				err = fmt.Errorf("%s: %w", fp, err)
			}
			resultChan <- fileResult{result: result, err: err}
			_ = bar.Add(1)
		}(filePath)
	}

	var results []*internal.Result
	var errs []error
	for range started {
		r := <-resultChan
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if r.result != nil {
			results = append(results, r.result)
		}
	}
	_ = bar.Finish()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Source < results[j].Source
	})
	return results, errors.Join(errs...)
}

// ExpandPattern resolves a Go package pattern to the template files of the
// matching packages. Packages are loaded with the matchall build tag so
// that templates are part of the file set.
func ExpandPattern(ctx context.Context, pattern, buildTag string) ([]string, error) {
	cfg := &packages.Config{
		Context:    ctx,
		Mode:       packages.NeedName | packages.NeedFiles,
		BuildFlags: []string{"-tags=" + buildTag},
		Tests:      true,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("error loading packages %s: %w", pattern, err)
	}

	seen := make(map[string]struct{})
	var files []string
	for _, pkg := range pkgs {
		for _, file := range pkg.GoFiles {
			if _, dup := seen[file]; dup {
				continue
			}
			seen[file] = struct{}{}
			files = append(files, file)
		}
	}
	sort.Strings(files)
	return files, nil
}

func isPackagePattern(path string) bool {
	return strings.HasSuffix(path, "...")
}

func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func hasDesiredExtension(path string) bool {
	return filepath.Ext(path) == ".go"
}
