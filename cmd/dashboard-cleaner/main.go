package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mintel/grafana-dashboard-cleaner/cmd/dashboard-cleaner/dashboard"
)

const usage = "Usage: dashboard-cleaner <input_file> <output_file>"

// UsageError reports an invocation with the wrong arguments.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return e.Reason
}

const (
	successSymbol = "✓"
	infoSymbol    = "→"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cmd := newRootCommand(log)
	// A nil slice makes cobra fall back to os.Args.
	cmd.SetArgs(append([]string{}, args...))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		log.WithError(err).Debug("invalid invocation")
		fmt.Fprintln(stdout, usage)
		return 1
	}

	log.WithError(err).Error("Command failed")
	return 1
}

func newRootCommand(log *logrus.Logger) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "dashboard-cleaner <input_file> <output_file>",
		Short: "Prepare the Node Exporter Full dashboard for import",
		Long: `dashboard-cleaner strips import template metadata from a Grafana
dashboard export, pins its uid and title, and rewrites every Prometheus
datasource reference to {"type": "prometheus", "uid": "prometheus"}.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &UsageError{Reason: fmt.Sprintf("expected 2 arguments, got %d", len(args))}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.OutOrStdout(), log, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&logLevel, "log-level", "l", "warn", "Log level (debug, info, warn, error)")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error()}
	})

	return cmd
}

func runClean(out io.Writer, log logrus.FieldLogger, inputPath, outputPath string) error {
	cleaner := dashboard.NewCleaner(log, dashboard.DefaultOptions())

	db, err := cleaner.Clean(inputPath, outputPath)
	if err != nil {
		return fmt.Errorf("failed to clean dashboard: %w", err)
	}

	success, info := summarySymbols(out)
	fmt.Fprintf(out, "%s Dashboard cleaned and saved to %s\n", success, db.Filename)
	fmt.Fprintf(out, "%s Panels count: %d\n", info, db.Panels)
	fmt.Fprintf(out, "%s Title: %s\n", info, db.Title)

	return nil
}

// summarySymbols colors the status symbols only when out is a terminal, so
// redirected output stays plain text.
func summarySymbols(out io.Writer) (success, info string) {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return pterm.Green(successSymbol), pterm.Cyan(infoSymbol)
	}
	return successSymbol, infoSymbol
}
