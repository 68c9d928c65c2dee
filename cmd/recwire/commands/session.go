package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/recwire/pkg/compiler"
	"github.com/openfroyo/recwire/pkg/config"
	"github.com/openfroyo/recwire/pkg/policy"
	"github.com/openfroyo/recwire/pkg/stores"
)

// session bundles a compiler with the policy engine and history store it
// was built with.
type session struct {
	compiler *compiler.Compiler
	policies *policy.Engine
	store    *stores.SQLiteStore
}

func newLoader() *config.Loader {
	return config.NewLoader(log.Logger, config.WithStarlarkTimeout(current.Compile.StarlarkTimeout))
}

func loadDocument(ctx context.Context, path string) (*config.Document, error) {
	doc, err := newLoader().Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return doc, nil
}

// newPolicyEngine builds the engine from the policy settings.
func newPolicyEngine(ctx context.Context) (*policy.Engine, error) {
	pe, err := policy.NewEngine(log.Logger)
	if err != nil {
		return nil, err
	}
	if err := applyPolicySettings(ctx, pe, nil); err != nil {
		return nil, err
	}
	return pe, nil
}

// applyPolicySettings disables built-ins when configured off and adds
// policies, loading them from the configured paths when none are given.
func applyPolicySettings(ctx context.Context, pe *policy.Engine, loaded []policy.Policy) error {
	if !current.Policy.Builtins {
		for _, p := range policy.GetBuiltinPolicies() {
			if err := pe.DisablePolicy(p.Name); err != nil {
				return err
			}
		}
	}

	if loaded != nil {
		return pe.AddPolicies(ctx, loaded)
	}
	if len(current.Policy.Paths) > 0 {
		return pe.LoadPolicies(ctx, current.Policy.Paths)
	}
	return nil
}

func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func newSession(ctx context.Context) (*session, error) {
	s := &session{}

	pe, err := newPolicyEngine(ctx)
	if err != nil {
		return nil, err
	}
	s.policies = pe

	opts := []compiler.Option{
		compiler.WithPolicyEngine(pe),
		compiler.WithTelemetry(tel),
	}

	if current.History.Enabled {
		store, err := openStore(ctx, current.History.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		s.store = store
		opts = append(opts, compiler.WithRunRecorder(store))
	}

	s.compiler = compiler.New(compiler.Options{
		EnableTimers: current.Compile.EnableTimers,
		HaltOnError:  current.Compile.HaltOnError,
	}, log.Logger, opts...)

	return s, nil
}

// compile compiles doc and prunes history to the configured size.
func (s *session) compile(ctx context.Context, doc *config.Document) (*compiler.Result, error) {
	res, err := s.compiler.Compile(ctx, doc)

	if s.store != nil && current.History.Keep > 0 {
		pruned, perr := s.store.PruneRuns(context.WithoutCancel(ctx), current.History.Keep)
		if perr != nil {
			log.Warn().Err(perr).Msg("Failed to prune history")
		} else if pruned > 0 {
			log.Debug().Int64("pruned", pruned).Msg("History pruned")
		}
	}

	return res, err
}

func (s *session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
