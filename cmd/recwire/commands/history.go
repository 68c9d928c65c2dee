package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/recwire/pkg/engine"
	"github.com/openfroyo/recwire/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded compile runs",
		Long: `List compile runs recorded with 'compile --record', newest first.

The database is taken from --db, or from history.path in the settings file.`,
		Example: `  # List the last 20 runs
  recwire history --db history.db

  # Show one run with its failures and diagnostics
  recwire history show 3f0c... --db history.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := historyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(ctx, limit, 0)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No recorded runs")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tEMITTED\tFAILED\tPRIMITIVES\tSOURCE")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID,
					r.StartedAt.Local().Format(time.DateTime),
					r.Status,
					r.Summary.Emitted,
					r.Summary.Failed,
					r.Summary.Primitives,
					r.Source)
			}
			return w.Flush()
		},
	}

	cmd.PersistentFlags().String("db", "", "history database path")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")

	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	var warnings bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := historyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(ctx, args[0])
			if errors.Is(err, stores.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}

			fmt.Printf("Run:      %s\n", run.ID)
			fmt.Printf("Source:   %s\n", run.Source)
			fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
			fmt.Printf("Status:   %s\n", run.Status)
			fmt.Printf("Duration: %s\n", run.Summary.Duration)

			plans, err := store.ListPlans(ctx, run.ID)
			if err != nil {
				return err
			}
			fmt.Printf("\nPlans (%d):\n", len(plans))
			for _, p := range plans {
				fmt.Printf("  %s  %s\n", p.ComponentID, p.Plan.ID)
			}

			failures, err := store.ListFailures(ctx, run.ID)
			if err != nil {
				return err
			}
			if len(failures) > 0 {
				fmt.Printf("\nFailures (%d):\n", len(failures))
				for _, f := range failures {
					fmt.Printf("  ✗ %s: %s\n", f.ComponentID, f.Message)
				}
			}

			var severity *engine.Severity
			if warnings {
				s := engine.SeverityWarning
				severity = &s
			}
			diags, err := store.ListDiagnostics(ctx, run.ID, severity)
			if err != nil {
				return err
			}
			if len(diags) > 0 {
				fmt.Printf("\nDiagnostics (%d):\n", len(diags))
				for _, d := range diags {
					fmt.Printf("  [%s] %s %s: %s\n", d.Diagnostic.Severity, d.ComponentID, d.Diagnostic.Source, d.Diagnostic.Message)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&warnings, "warnings", false, "show only warning diagnostics")

	return cmd
}

func newHistoryPruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if current.History.Keep <= 0 {
				return fmt.Errorf("--keep must be greater than zero")
			}

			store, err := historyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			pruned, err := store.PruneRuns(ctx, current.History.Keep)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d run(s)\n", pruned)
			return nil
		},
	}

	cmd.Flags().Int("keep", 0, "number of runs to keep")

	return cmd
}

func historyStore(ctx context.Context) (*stores.SQLiteStore, error) {
	if current.History.Path == "" {
		return nil, fmt.Errorf("no history database configured; pass --db or set history.path")
	}
	if _, err := os.Stat(current.History.Path); err != nil {
		return nil, fmt.Errorf("history database %s: %w", current.History.Path, err)
	}

	store, err := openStore(ctx, current.History.Path)
	if err != nil {
		return nil, err
	}
	if err := store.HealthCheck(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
