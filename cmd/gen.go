package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/matchall/formatter"
	"github.com/gnolang/matchall/generate"
	"github.com/gnolang/matchall/internal"
	tt "github.com/gnolang/matchall/internal/types"
)

var (
	ignoreRules string
	ignorePaths string
	dryRun      bool
	toStdout    bool
	fromStdin   bool
	stdinName   string
)

var genCmd = &cobra.Command{
	Use:   "gen [paths...]",
	Short: "Generate the expanded files for matchall templates",
	Run: func(cmd *cobra.Command, args []string) {
		if fromStdin {
			ctx, cancel := contextWithTimeout()
			defer cancel()

			issues, err := generateStdin(ctx, newEngine(), stdinName, os.Stdin, os.Stdout, os.Stderr)
			if err != nil {
				logger.Error("Error processing stdin", zap.Error(err))
				os.Exit(1)
			}
			if tt.HasErrors(issues) {
				os.Exit(1)
			}
			return
		}

		if len(args) == 0 {
			fmt.Println("error: Please provide file or directory paths")
			os.Exit(1)
		}

		ctx, cancel := contextWithTimeout()
		defer cancel()

		engine := newEngine()

		results, err := generate.ProcessFiles(ctx, logger, engine, args, generate.ProcessFile)
		if err != nil {
			logger.Error("Error processing files", zap.Error(err))
			os.Exit(1)
		}

		issues := generate.Issues(results)
		printIssues(logger, issues, false, "")

		w := &generate.Writer{DryRun: dryRun, Logger: logger}
		if toStdout {
			w.Stdout = os.Stdout
		}
		written, err := w.Write(results)
		if err != nil {
			logger.Error("Error writing generated files", zap.Error(err))
			os.Exit(1)
		}
		logger.Debug("Generation finished",
			zap.Int("files", len(results)),
			zap.Int("written", written),
			zap.Int("expanded", totalExpanded(results)))

		if tt.HasErrors(issues) {
			os.Exit(1)
		}
	},
}

func init() {
	addIgnoreFlags(genCmd)
	genCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the files that would be written without writing them")
	genCmd.Flags().BoolVar(&toStdout, "stdout", false, "Print generated files instead of writing them")
	genCmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read one template from stdin and print the generated file")
	genCmd.Flags().StringVar(&stdinName, "stdin-name", "stdin.go", "File name used for the template read from stdin")
}

func addIgnoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ignoreRules, "ignore", "", "Comma-separated list of rules to ignore")
	cmd.Flags().StringVar(&ignorePaths, "ignore-paths", "", "Comma-separated list of paths to ignore")
}

// newEngine loads the configuration and applies the ignore flags.
func newEngine() *internal.Engine {
	engine, _, err := generate.New(".", cfgFile)
	if err != nil {
		logger.Fatal("Failed to initialize matchall engine", zap.Error(err))
	}
	applyIgnores(engine, ignoreRules, ignorePaths)
	return engine
}

func applyIgnores(engine generate.Engine, rules, paths string) {
	if rules != "" {
		for _, rule := range strings.Split(rules, ",") {
			engine.IgnoreRule(strings.TrimSpace(rule))
		}
	}
	if paths != "" {
		for _, path := range strings.Split(paths, ",") {
			engine.IgnorePath(strings.TrimSpace(path))
		}
	}
}

func totalExpanded(results []*internal.Result) int {
	n := 0
	for _, r := range results {
		n += r.Expanded
	}
	return n
}

// generateStdin expands the template read from in and prints the result to
// out. Diagnostics go to errOut so that the output can be piped.
func generateStdin(ctx context.Context, engine generate.Engine, name string, in io.Reader, out, errOut io.Writer) ([]tt.Issue, error) {
	content, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}

	results, err := generate.ProcessSources(ctx, logger, engine, []generate.Source{{Name: name, Content: content}})
	if err != nil {
		return nil, err
	}
	result := results[0]

	if len(result.Issues) > 0 {
		source := &internal.SourceCode{Lines: strings.Split(string(content), "\n")}
		fmt.Fprintln(errOut, formatter.GenerateFormattedIssue(result.Issues, source))
	}
	if result.Content == nil {
		return result.Issues, nil
	}
	if _, err := out.Write(result.Content); err != nil {
		return result.Issues, err
	}
	return result.Issues, nil
}
