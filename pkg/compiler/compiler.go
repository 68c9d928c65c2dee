package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/recwire/pkg/actions"
	"github.com/openfroyo/recwire/pkg/config"
	"github.com/openfroyo/recwire/pkg/crossfield"
	"github.com/openfroyo/recwire/pkg/engine"
	"github.com/openfroyo/recwire/pkg/recorder"
	"github.com/openfroyo/recwire/pkg/registry"
	"github.com/openfroyo/recwire/pkg/resolver"
	"github.com/openfroyo/recwire/pkg/schema"
	"github.com/openfroyo/recwire/pkg/telemetry"
	"github.com/openfroyo/recwire/pkg/wiring"
)

// Compile stages, used for spans and stage metrics.
const (
	StageValidate = "validate"
	StageOrder    = "order"
	StageResolve  = "resolve"
	StageEmit     = "emit"
	StagePolicy   = "policy"
	StageScan     = "scan"
)

// Options controls compilation.
type Options struct {
	// EnableTimers wires timer hooks.
	EnableTimers bool

	// HaltOnError stops the run at the first failing component.
	HaltOnError bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithPolicyEngine evaluates every emitted plan against policies.
func WithPolicyEngine(pe engine.PolicyEngine) Option {
	return func(c *Compiler) { c.policies = pe }
}

// WithRunRecorder records every finished run.
func WithRunRecorder(rr engine.RunRecorder) Option {
	return func(c *Compiler) { c.history = rr }
}

// WithTelemetry reports metrics, spans and events through tel.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(c *Compiler) { c.tel = tel }
}

// Compiler turns configuration documents into wiring plans. A Compiler may
// be reused; every Compile call builds a fresh object registry.
type Compiler struct {
	opts      Options
	schema    *recorder.Schema
	relations *crossfield.Validator[*recorder.Config]
	policies  engine.PolicyEngine
	history   engine.RunRecorder
	tel       *telemetry.Telemetry
	logger    zerolog.Logger
}

// New creates a compiler.
func New(opts Options, logger zerolog.Logger, options ...Option) *Compiler {
	c := &Compiler{
		opts:      opts,
		schema:    recorder.NewSchema(),
		relations: recorder.NewRelationshipValidator(),
		logger:    logger.With().Str("component", "compiler").Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.tel == nil {
		c.tel = telemetry.Nop()
	}
	return c
}

// unit is a recorder that passed Phase 1.
type unit struct {
	comp *Component
	lc   *lifecycle
	cfg  *recorder.Config
}

// run carries the state of one Compile call.
type run struct {
	res     *Result
	objects *registry.Registry
	logger  zerolog.Logger
}

// Compile compiles every recorder in doc.
//
// Phase 1 validates all recorders. Phase 2 resolves, emits and checks
// policies for each validated recorder in compile order, registering the
// recorder once its plan is emitted. Automation chains are scanned for
// primitives last, when every emitted recorder can be referenced.
//
// A failing component does not stop its siblings unless HaltOnError is
// set. The returned error is reserved for failures of the run itself: a
// document whose devices cannot be registered, an ordering failure, a halt,
// or cancellation. Per-component failures are in the result.
func (c *Compiler) Compile(ctx context.Context, doc *config.Document) (*Result, error) {
	if doc == nil {
		return nil, engine.NewInvalidDocumentError("no document to compile", nil)
	}

	r := c.newRun(doc)
	ctx = c.tel.WithContext(ctx)
	ctx, span := c.tel.Tracer.StartCompileSpan(ctx, r.res.RunID, doc.Source)
	defer span.End()
	if traceID := telemetry.TraceID(ctx); traceID != "" {
		r.logger = r.logger.With().Str("trace_id", traceID).Logger()
	}

	_ = c.tel.Events.PublishCompileStarted(r.res.RunID, doc.Source, len(doc.Recorders))
	r.logger.Debug().
		Int("devices", len(doc.Devices)).
		Int("recorders", len(doc.Recorders)).
		Int("automations", len(doc.Automations)).
		Msg("Compile started")

	err := c.compile(ctx, r, doc)
	c.finish(ctx, r, err)

	if err != nil {
		telemetry.RecordError(span, err)
		return r.res, err
	}
	telemetry.RecordSuccess(span)
	return r.res, nil
}

// Validate runs Phase 1 only: every recorder ends validated or failed. No
// plans are emitted and nothing is recorded.
func (c *Compiler) Validate(ctx context.Context, doc *config.Document) (*Result, error) {
	if doc == nil {
		return nil, engine.NewInvalidDocumentError("no document to validate", nil)
	}

	r := c.newRun(doc)
	ctx = c.tel.WithContext(ctx)

	err := c.registerDevices(r, doc.Devices)
	if err == nil {
		_, err = c.declare(ctx, r, doc.Recorders)
	}
	r.res.Summary.Duration = time.Since(r.res.StartedAt)

	r.logger.Debug().
		Int("components", r.res.Summary.Components).
		Int("failed", r.res.Summary.Failed).
		Msg("Validation finished")

	return r.res, err
}

func (c *Compiler) newRun(doc *config.Document) *run {
	r := &run{
		res:     newResult(uuid.New().String(), doc.Source),
		objects: registry.New(),
	}
	r.logger = c.logger.With().Str("run_id", r.res.RunID).Str("source", doc.Source).Logger()
	r.res.Summary.Components = len(doc.Recorders)
	return r
}

func (c *Compiler) registerDevices(r *run, devices []config.DeviceDecl) error {
	for _, d := range devices {
		if err := r.objects.Register(d.Handle()); err != nil {
			return fmt.Errorf("failed to register %s %s: %w", d.Capability, d.ID, err)
		}
	}
	return nil
}

func (c *Compiler) compile(ctx context.Context, r *run, doc *config.Document) error {
	if err := c.registerDevices(r, doc.Devices); err != nil {
		return err
	}

	units, err := c.declare(ctx, r, doc.Recorders)
	if err != nil {
		return err
	}

	ordered, err := c.order(ctx, r, doc.Devices, units)
	if err != nil {
		return err
	}

	res := resolver.New(r.objects, c.logger)
	emitter := wiring.NewEmitter(wiring.Options{EnableTimers: c.opts.EnableTimers}, c.logger)
	for _, u := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.build(ctx, r, res, emitter, u); err != nil && c.opts.HaltOnError {
			return fmt.Errorf("compilation halted at %s: %w", u.comp.ID, err)
		}
	}

	return c.scan(ctx, r, res, ordered, doc.Automations)
}

// declare runs Phase 1 over every recorder declaration.
func (c *Compiler) declare(ctx context.Context, r *run, recorders []map[string]interface{}) ([]*unit, error) {
	units := make([]*unit, 0, len(recorders))
	seen := make(map[string]bool, len(recorders))

	for i, raw := range recorders {
		defaultID := DefaultID(i, len(recorders))
		comp := &Component{ID: declaredID(raw, defaultID), Index: i, State: engine.ComponentStateDeclared}
		r.res.Components = append(r.res.Components, comp)
		u := &unit{comp: comp, lc: newLifecycle(comp.ID, c.observe(r, comp))}

		ic := telemetry.StartOperation(ctx, StageValidate, telemetry.AttrComponentID.String(comp.ID))
		cfg, err := c.validate(raw, defaultID)
		if err == nil {
			if _, taken := r.objects.Lookup(cfg.ID); taken || seen[cfg.ID] {
				err = engine.NewDuplicateIDError(cfg.ID).WithField(recorder.FieldID)
			}
		}
		ic.End(err)

		if err != nil {
			c.fail(ctx, r, u, err)
			if c.opts.HaltOnError {
				return nil, fmt.Errorf("compilation halted at %s: %w", comp.ID, err)
			}
			continue
		}

		comp.ID = cfg.ID
		u.cfg = cfg
		seen[cfg.ID] = true
		if err := u.lc.fire(ctx, eventValidate); err != nil {
			return nil, err
		}
		units = append(units, u)
	}

	return units, nil
}

// validate runs structural validation, then re-checks relationships on the
// coerced config.
func (c *Compiler) validate(raw map[string]interface{}, defaultID string) (*recorder.Config, error) {
	cfg, err := c.schema.ValidateWithDefaultID(raw, defaultID)
	if err != nil {
		return nil, err
	}
	return c.relations.Validate(cfg)
}

// order sorts validated recorders by the compile-order graph.
func (c *Compiler) order(ctx context.Context, r *run, devices []config.DeviceDecl, units []*unit) ([]*unit, error) {
	ic := telemetry.StartOperation(ctx, StageOrder)

	decls := make([]engine.Declaration, 0, len(devices)+len(units))
	for _, d := range devices {
		decls = append(decls, engine.Declaration{ID: d.ID, Kind: string(d.Capability)})
	}
	byID := make(map[string]*unit, len(units))
	for _, u := range units {
		decls = append(decls, u.cfg.Declaration())
		byID[u.cfg.ID] = u
	}

	builder := engine.NewDAGBuilder()
	graph, err := builder.BuildGraph(decls)
	ic.End(err)
	if err != nil {
		return nil, fmt.Errorf("failed to order components: %w", err)
	}
	r.res.DOT = builder.ToDOT()

	ordered := make([]*unit, 0, len(units))
	for _, id := range graph.Order() {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
			r.res.Order = append(r.res.Order, id)
		}
	}

	r.logger.Debug().
		Strs("order", r.res.Order).
		Int("depth", graph.Depth).
		Msg("Compile order computed")

	return ordered, nil
}

// build runs Phase 2 for one recorder.
func (c *Compiler) build(ctx context.Context, r *run, res *resolver.Resolver, emitter *wiring.Emitter, u *unit) error {
	ctx, span := c.tel.Tracer.StartComponentSpan(ctx, u.cfg.ID, recorder.Kind)
	defer span.End()

	ic := telemetry.StartOperation(ctx, StageResolve, telemetry.AttrComponentID.String(u.cfg.ID))
	deps, err := res.ResolveAll(u.cfg.References())
	ic.End(err)
	if err != nil {
		telemetry.RecordError(span, err)
		return c.fail(ctx, r, u, err)
	}
	if err := u.lc.fire(ctx, eventResolve); err != nil {
		return err
	}

	ic = telemetry.StartOperation(ctx, StageEmit, telemetry.AttrComponentID.String(u.cfg.ID))
	plan, err := emitter.Emit(u.cfg, deps)
	ic.End(err)
	if err != nil {
		telemetry.RecordError(span, err)
		return c.fail(ctx, r, u, err)
	}

	if err := c.checkPolicies(ctx, r, plan); err != nil {
		telemetry.RecordError(span, err)
		return c.fail(ctx, r, u, err)
	}

	if err := r.objects.Register(u.cfg.Handle()); err != nil {
		telemetry.RecordError(span, err)
		return c.fail(ctx, r, u, err)
	}

	u.comp.Plan = plan
	if err := u.lc.fire(ctx, eventEmit); err != nil {
		return err
	}
	r.res.Plans = append(r.res.Plans, plan)
	r.res.Summary.Emitted++

	span.SetAttributes(telemetry.AttrPlanID.String(plan.ID))
	telemetry.AddEvent(span, "plan.emitted",
		attribute.Int("bindings", len(plan.Bindings)),
		attribute.Int("diagnostics", len(plan.Diagnostics)),
	)
	telemetry.RecordSuccess(span)
	_ = c.tel.Events.PublishComponentEmitted(r.res.RunID, u.cfg.ID, plan.ID)

	return nil
}

// checkPolicies evaluates plan. Blocking violations fail the component with
// the first one in policy order; the rest become plan diagnostics.
func (c *Compiler) checkPolicies(ctx context.Context, r *run, plan *engine.WiringPlan) error {
	if c.policies == nil {
		return nil
	}

	ic := telemetry.StartOperation(ctx, StagePolicy, telemetry.AttrComponentID.String(plan.Instance.ID))
	result, err := c.policies.EvaluatePlan(ic.Ctx, plan)
	if err != nil {
		ic.End(err)
		return fmt.Errorf("policy evaluation failed for %s: %w", plan.Instance.ID, err)
	}

	var blocking *engine.CompileError
	for _, v := range result.Violations {
		c.tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		_ = c.tel.Events.PublishPolicyViolation(r.res.RunID, plan.Instance.ID, v.Policy, string(v.Severity), v.Message)

		if v.Severity.Blocking() {
			if blocking == nil {
				blocking = engine.NewPolicyViolationError(v.Policy, v.Message).
					WithDetail("severity", string(v.Severity))
				if v.Field != "" {
					blocking.WithField(v.Field)
				}
			}
			continue
		}
		plan.Diagnostics = append(plan.Diagnostics, engine.Diagnostic{
			Severity: v.Severity,
			Source:   "policy:" + v.Policy,
			Field:    v.Field,
			Message:  v.Message,
		})
	}

	if blocking != nil {
		ic.End(blocking)
		return blocking
	}

	// Diagnostics are part of the plan content.
	if len(result.Violations) > 0 {
		id, err := wiring.PlanID(plan)
		if err != nil {
			ic.End(err)
			return err
		}
		plan.ID = id
	}

	ic.End(nil)
	return nil
}

// scan builds primitives from emitted recorders' hooks and from
// free-standing automations.
func (c *Compiler) scan(ctx context.Context, r *run, res *resolver.Resolver, ordered []*unit, automations []interface{}) error {
	ic := telemetry.StartOperation(ctx, StageScan)
	defer func() { ic.End(nil) }()

	factory := actions.NewFactory(res, c.logger)

	collect := func(location string, chain *engine.AutomationChain) error {
		primitives, err := factory.ScanChain(chain)
		if err != nil {
			r.res.AutomationErrors = append(r.res.AutomationErrors, &AutomationError{Location: location, Err: err})
			c.tel.Metrics.RecordError(string(engine.KindOf(err)))
			r.logger.Warn().Err(err).Str("automation", location).Msg("Automation primitives failed")
			if c.opts.HaltOnError {
				return fmt.Errorf("compilation halted at %s: %w", location, err)
			}
			return nil
		}
		for _, p := range primitives {
			c.tel.Metrics.RecordPrimitive(string(p.Class()))
		}
		r.res.Primitives = append(r.res.Primitives, primitives...)
		return nil
	}

	for _, u := range ordered {
		if u.lc.State() != engine.ComponentStateEmitted {
			continue
		}
		for _, h := range recorder.Hooks() {
			chain, ok := u.cfg.Hook(h.Name)
			if !ok {
				continue
			}
			if err := collect(u.cfg.ID+"."+h.Name, chain); err != nil {
				return err
			}
		}
	}

	for i, raw := range automations {
		location := fmt.Sprintf("%s.%d", config.SectionAutomations, i)
		chain, err := schema.ParseChain(raw)
		if err != nil {
			if ce, ok := engine.AsCompileError(err); ok {
				ce.WithField(location)
			}
			r.res.AutomationErrors = append(r.res.AutomationErrors, &AutomationError{Location: location, Err: err})
			if c.opts.HaltOnError {
				return fmt.Errorf("compilation halted at %s: %w", location, err)
			}
			continue
		}
		if err := collect(location, chain); err != nil {
			return err
		}
	}

	r.res.Summary.Primitives = len(r.res.Primitives)
	return nil
}

// fail moves a component to failed and reports it. It returns err.
func (c *Compiler) fail(ctx context.Context, r *run, u *unit, err error) error {
	if ce, ok := engine.AsCompileError(err); ok && ce.Component == "" {
		ce.WithComponent(u.comp.ID)
	}
	u.comp.Err = err
	if ferr := u.lc.fail(ctx); ferr != nil {
		r.logger.Error().Err(ferr).Msg("Invalid lifecycle transition")
	}
	r.res.Summary.Failed++

	kind := string(engine.KindOf(err))
	c.tel.Metrics.RecordError(kind)
	_ = c.tel.Events.PublishComponentFailed(r.res.RunID, u.comp.ID, kind, err.Error())

	r.logger.Warn().
		Err(err).
		Str("component_id", u.comp.ID).
		Str("kind", kind).
		Msg("Component failed")

	return err
}

// observe keeps comp.State in step with its lifecycle.
func (c *Compiler) observe(r *run, comp *Component) transitionFunc {
	return func(id string, from, to engine.ComponentState) {
		comp.State = to
		if to.IsTerminal() {
			c.tel.Metrics.RecordComponent(string(to))
		}
		r.logger.Debug().
			Str("component_id", id).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Component state changed")
	}
}

// finish closes the run: summary, metrics, events and history.
func (c *Compiler) finish(ctx context.Context, r *run, runErr error) {
	res := r.res
	res.Summary.Duration = time.Since(res.StartedAt)
	status := res.Status()
	if runErr != nil {
		status = engine.RunStatusFailed
	}

	c.tel.Metrics.RecordCompile(string(status), res.Summary.Duration)
	c.tel.Metrics.SetRegisteredObjects(r.objects.Len())
	_ = c.tel.Events.PublishCompileCompleted(res.RunID, string(status),
		res.Summary.Emitted, res.Summary.Failed, res.Summary.Duration)

	event := r.logger.Info()
	if runErr != nil {
		event = r.logger.Error().Err(runErr)
	}
	event.
		Str("status", string(status)).
		Int("components", res.Summary.Components).
		Int("emitted", res.Summary.Emitted).
		Int("failed", res.Summary.Failed).
		Int("primitives", res.Summary.Primitives).
		Dur("duration", res.Summary.Duration).
		Msg("Compile finished")

	if c.history == nil {
		return
	}
	// History is recorded even for cancelled runs.
	if err := c.history.RecordRun(context.WithoutCancel(ctx), res.Run()); err != nil {
		r.logger.Error().Err(err).Msg("Failed to record compile run")
	}
}

// DefaultID returns the generated ID of the i-th of n recorder declarations.
func DefaultID(i, n int) string {
	if n == 1 {
		return recorder.DefaultID
	}
	return fmt.Sprintf("%s_%d", recorder.DefaultID, i)
}

// declaredID returns the raw id for error reporting before validation.
func declaredID(raw map[string]interface{}, defaultID string) string {
	if id, ok := raw[recorder.FieldID].(string); ok && id != "" {
		return id
	}
	return defaultID
}
