package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/matchall/generate"
	"github.com/gnolang/matchall/internal"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Regenerate expanded files whenever a template changes",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{"."}
		}

		engine := newEngine()
		w := &generate.Writer{Logger: logger}

		// bring everything up to date before waiting for changes
		ctx, cancel := contextWithTimeout()
		results, err := generate.ProcessFiles(ctx, logger, engine, args, generate.ProcessFile)
		cancel()
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			logger.Fatal("Initial generation timed out", zap.Error(err))
		}
		if err != nil {
			logger.Error("Error processing files", zap.Error(err))
		}
		printIssues(logger, generate.Issues(results), false, "")
		if _, err := w.Write(results); err != nil {
			logger.Error("Error writing generated files", zap.Error(err))
		}

		onResult := func(result *internal.Result, err error) {
			if err != nil {
				logger.Error("Error processing file", zap.Error(err))
				return
			}
			if result == nil || result.Skipped {
				return
			}
			printIssues(logger, result.Issues, false, "")
			if _, err := w.Write([]*internal.Result{result}); err != nil {
				logger.Error("Error writing generated file", zap.String("file", result.Output), zap.Error(err))
			}
		}

		if err := engine.StartWatching(watchDirs(args), onResult); err != nil {
			logger.Fatal("Failed to start watching", zap.Error(err))
		}
		defer func() { _ = engine.StopWatching() }()

		fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", strings.Join(watchDirs(args), ", "))

		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-sigCtx.Done()
	},
}

// watchDirs turns package patterns such as ./... into the directory they
// are rooted at.
func watchDirs(args []string) []string {
	dirs := make([]string, 0, len(args))
	for _, arg := range args {
		dir := strings.TrimSuffix(strings.TrimSuffix(arg, "..."), "/")
		if dir == "" {
			dir = "."
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

func init() {
	addIgnoreFlags(watchCmd)
}
