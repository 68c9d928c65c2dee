package commands

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/recwire/pkg/config"
	"github.com/openfroyo/recwire/pkg/policy"
	"github.com/openfroyo/recwire/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Recompile a document whenever it changes",
		Long: `Compile a document, then recompile it each time it or a policy file changes.

While watching, Prometheus metrics are served on --metrics-addr. Each
compile's plans are written to --out when it is set.`,
		Example: `  # Watch a document and serve metrics on :9464
  recwire watch device.yaml

  # Watch with site policies and write plans on every change
  recwire watch device.yaml --policy ./policies --out plans.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			out, err := formatFor("", outFile)
			if err != nil {
				return err
			}

			s, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			server, err := tel.Metrics.StartMetricsServer(log.Logger)
			if err != nil {
				return err
			}
			if server != nil {
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					defer cancel()
					if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
						log.Warn().Err(err).Msg("Failed to stop metrics server")
					}
				}()
			}

			tel.Events.Subscribe(func(e telemetry.Event) {
				log.Warn().
					Str("run_id", e.RunID).
					Str("component_id", e.ComponentID).
					Msg(e.Message)
			}, telemetry.FilterByType(telemetry.EventTypeComponentFailed, telemetry.EventTypePolicyViolation))

			w := &watchLoop{session: s, outFile: outFile, format: out}

			if len(current.Policy.Paths) > 0 {
				loader := policy.NewLoader(log.Logger)
				if err := loader.Watch(ctx, current.Policy.Paths, func(policies []policy.Policy) error {
					return w.reloadPolicies(ctx, policies)
				}); err != nil {
					return err
				}
				defer loader.StopWatching()
			}

			watcher := config.NewWatcher(newLoader(), current.Watch.Debounce, log.Logger)
			return watcher.Watch(ctx, path, func(doc *config.Document, err error) {
				if err != nil {
					_ = tel.Events.PublishDocumentReloaded(path, err)
					log.Error().Err(err).Str("path", path).Msg("Document not compiled")
					return
				}
				_ = tel.Events.PublishDocumentReloaded(path, nil)
				w.compile(ctx, doc)
			})
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write plans here after each compile")
	cmd.Flags().String("metrics-addr", "", "metrics listen address (default :9464)")
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "coalesce changes within this window")
	cmd.Flags().Bool("enable-timers", false, "wire timer hooks")
	cmd.Flags().StringSlice("policy", nil, "policy file or directory (repeatable)")
	cmd.Flags().Bool("builtin-policies", true, "evaluate built-in policies")
	cmd.Flags().String("record", "", "record every run in this history database")
	cmd.Flags().Int("keep", 0, "keep only the newest n recorded runs")

	return cmd
}

// watchLoop recompiles the latest document on document and policy changes.
type watchLoop struct {
	session *session
	outFile string
	format  string

	mu   sync.Mutex
	last *config.Document
}

func (w *watchLoop) compile(ctx context.Context, doc *config.Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = doc

	res, err := w.session.compile(ctx, doc)
	if err != nil {
		log.Error().Err(err).Msg("Compilation failed")
		return
	}

	if w.outFile != "" {
		if err := writeOutput(w.outFile, w.format, newReport(res)); err != nil {
			log.Error().Err(err).Msg("Failed to write plans")
		}
	}

	printFailures(os.Stderr, res)
	log.Info().
		Str("run_id", res.RunID).
		Str("status", string(res.Status())).
		Int("emitted", res.Summary.Emitted).
		Int("failed", res.Summary.Failed).
		Msg("Document compiled")
}

func (w *watchLoop) reloadPolicies(ctx context.Context, policies []policy.Policy) error {
	pe := w.session.policies
	if err := pe.ReloadPolicies(ctx); err != nil {
		return err
	}
	if err := applyPolicySettings(ctx, pe, policies); err != nil {
		return err
	}
	_ = tel.Events.PublishPoliciesReloaded(len(policies))
	log.Info().Int("policies", len(policies)).Msg("Policies reloaded")

	w.mu.Lock()
	last := w.last
	w.mu.Unlock()
	if last != nil {
		w.compile(ctx, last)
	}
	return nil
}
