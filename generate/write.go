package generate

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/gnolang/matchall/internal"
	tt "github.com/gnolang/matchall/internal/types"
)

// Writer stores generated files.
type Writer struct {
	DryRun bool
	// Stdout, when set, receives the generated content instead of the
	// output files.
	Stdout io.Writer
	Logger *zap.Logger
}

// Write stores the content of every result that produced output and
// returns the number of files written (or, in dry-run mode, the number
// that would have been written).
func (w *Writer) Write(results []*internal.Result) (int, error) {
	written := 0
	for _, result := range results {
		if result == nil || result.Skipped || result.Cached || result.Content == nil || result.Output == "" {
			continue
		}

		switch {
		case w.Stdout != nil:
			fmt.Fprintf(w.Stdout, "// ---- %s ----\n", result.Output)
			if _, err := w.Stdout.Write(result.Content); err != nil {
				return written, err
			}
		case w.DryRun:
			fmt.Printf("Would write %s (%d switches expanded)\n", result.Output, result.Expanded)
		default:
			changed, err := writeIfChanged(result.Output, result.Content)
			if err != nil {
				return written, fmt.Errorf("failed to write %s: %w", result.Output, err)
			}
			if !changed {
				continue
			}
			if w.Logger != nil {
				w.Logger.Debug("Generated file",
					zap.String("source", result.Source),
					zap.String("output", result.Output),
					zap.Int("expanded", result.Expanded))
			}
		}
		written++
	}
	return written, nil
}

// writeIfChanged leaves the file untouched when it already has content,
// so that build caches and watch loops are not disturbed.
func writeIfChanged(path string, content []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// Issues flattens the issues of all results.
func Issues(results []*internal.Result) []tt.Issue {
	var issues []tt.Issue
	for _, result := range results {
		if result != nil {
			issues = append(issues, result.Issues...)
		}
	}
	return issues
}
