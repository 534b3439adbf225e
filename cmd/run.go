// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/assure-cli/internal/config"
	"github.com/xkilldash9x/assure-cli/internal/observability"
	"github.com/xkilldash9x/assure-cli/internal/report"
	"github.com/xkilldash9x/assure-cli/internal/runner"
	"github.com/xkilldash9x/assure-cli/internal/store"
	"github.com/xkilldash9x/assure-cli/internal/watch"
)

type runFlags struct {
	headed bool
	junit  string
	watch  bool
	record bool
}

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var flags runFlags

	runCmd := &cobra.Command{
		Use:   "run <file.assure>",
		Short: "Runs a test script in a fresh browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Argument errors above print usage; runtime failures below do not.
			cmd.SilenceUsage = true
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			if flags.headed {
				cfg.SetBrowserHeadless(false)
			}
			if flags.junit != "" {
				cfg.SetReportJUnitPath(flags.junit)
			}

			opts, cleanup, err := runnerOptions(ctx, cfg, flags, cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			defer cleanup()

			r := runner.New(cfg, logger, opts...)
			path := args[0]

			if flags.watch {
				// Validate once up front so a typo in the path fails fast.
				if _, _, err := runner.Load(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "👀 Watching %s (Ctrl+C to stop)\n", path)
				return watch.New(logger, 0).Run(ctx, path, func(ctx context.Context) {
					if _, err := r.RunFile(ctx, path); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
					}
				})
			}

			res, err := r.RunFile(ctx, path)
			if err != nil {
				return err
			}
			if !res.Passed {
				if res.FailedLine > 0 {
					return fmt.Errorf("%w at line %d", ErrScriptFailed, res.FailedLine)
				}
				return fmt.Errorf("%w: %w", ErrScriptFailed, res.Err)
			}
			return nil
		},
	}

	runCmd.Flags().BoolVar(&flags.headed, "headed", false, "show the browser window")
	runCmd.Flags().StringVar(&flags.junit, "junit", "", "write a JUnit XML report to this path")
	runCmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "re-run the script whenever it changes")
	runCmd.Flags().BoolVar(&flags.record, "record", false, "record the run in the database (requires database.url)")
	return runCmd
}

// runnerOptions assembles reporters and the optional run history. cleanup
// releases the database pool and is safe to call when recording is off.
func runnerOptions(ctx context.Context, cfg config.Interface, flags runFlags, out io.Writer, logger *zap.Logger) ([]runner.Option, func(), error) {
	opts := []runner.Option{runner.WithReporter(report.NewConsole(out))}
	if p := cfg.Report().JUnitPath; p != "" {
		opts = append(opts, runner.WithReporter(report.NewJUnit(p)))
	}
	if !flags.record {
		return opts, func() {}, nil
	}

	url := cfg.Database().URL
	if url == "" {
		return nil, nil, errors.New("--record requires database.url (or ASSURE_DATABASE_URL) to be set")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	st, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}
	return append(opts, runner.WithHistory(st)), st.Close, nil
}
