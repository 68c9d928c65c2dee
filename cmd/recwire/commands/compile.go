package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newCompileCommand() *cobra.Command {
	var (
		outFile string
		format  string
		dotFile string
	)

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile recorder declarations into wiring plans",
		Long: `Compile every audio recorder in a document into a wiring plan.

Compilation:
  - Validates every recorder
  - Orders recorders by the devices they reference
  - Resolves references and emits one plan per recorder
  - Evaluates plans against policies (OPA/rego)
  - Builds recorder actions and conditions used by automations

A failing recorder does not stop the others unless --halt-on-error is set.
The command fails when any recorder or automation failed.`,
		Example: `  # Print plans as JSON
  recwire compile device.yaml

  # Write YAML plans and the compile-order graph
  recwire compile device.yaml --out plans.yaml --dot order.dot

  # Enable timer hooks and site policies, and record the run
  recwire compile device.yaml --enable-timers --policy ./policies --record history.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			out, err := formatFor(format, outFile)
			if err != nil {
				return err
			}

			log.Info().
				Str("path", path).
				Str("out", outFile).
				Bool("enable_timers", current.Compile.EnableTimers).
				Bool("halt_on_error", current.Compile.HaltOnError).
				Strs("policies", current.Policy.Paths).
				Msg("Compiling document")

			doc, err := loadDocument(ctx, path)
			if err != nil {
				return err
			}

			s, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.compile(ctx, doc)
			if err != nil {
				return err
			}

			if err := writeOutput(outFile, out, newReport(res)); err != nil {
				return err
			}
			if dotFile != "" {
				if err := os.WriteFile(dotFile, []byte(res.DOT), 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", dotFile, err)
				}
			}

			printFailures(os.Stderr, res)
			log.Info().
				Str("run_id", res.RunID).
				Str("status", string(res.Status())).
				Int("emitted", res.Summary.Emitted).
				Int("failed", res.Summary.Failed).
				Int("primitives", res.Summary.Primitives).
				Str("duration", res.Summary.Duration.Round(time.Microsecond).String()).
				Msg("Compilation finished")

			return resultError(res)
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: json or yaml (default from --out extension)")
	cmd.Flags().StringVar(&dotFile, "dot", "", "write the compile-order graph in DOT format")
	cmd.Flags().Bool("enable-timers", false, "wire timer hooks")
	cmd.Flags().Bool("halt-on-error", false, "stop at the first failing recorder")
	cmd.Flags().StringSlice("policy", nil, "policy file or directory (repeatable)")
	cmd.Flags().Bool("builtin-policies", true, "evaluate built-in policies")
	cmd.Flags().String("record", "", "record the run in this history database")
	cmd.Flags().Int("keep", 0, "keep only the newest n recorded runs")
	cmd.Flags().Duration("starlark-timeout", 5*time.Second, "Starlark evaluation timeout")
	cmd.Flags().String("trace-exporter", "", "trace exporter: none, stdout or otlp")
	cmd.Flags().String("trace-endpoint", "", "OTLP collector endpoint")

	return cmd
}
