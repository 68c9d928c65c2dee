package engine

import "time"

// ObjectReference is a symbolic identifier plus the capability the object
// it names must provide. It is resolved once against the object registry
// and never retried.
type ObjectReference struct {
	// ID is the referenced object's identifier (e.g., "mic1").
	ID string `json:"id" yaml:"id" validate:"required"`

	// Capability is the behaviour the referenced object must support.
	Capability Capability `json:"capability" yaml:"capability" validate:"required"`
}

// Handle is a concrete, registered object: the thing a reference resolves to.
type Handle struct {
	// ID is the unique identifier of the object.
	ID string `json:"id" yaml:"id"`

	// Type is the declared object type (e.g., "microphone.i2s_audio").
	Type string `json:"type" yaml:"type"`

	// Capabilities is the set of behaviours the object supports.
	Capabilities []Capability `json:"capabilities" yaml:"capabilities"`
}

// Has reports whether the handle provides the capability.
func (h Handle) Has(c Capability) bool {
	for _, have := range h.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ResolvedDependency pairs a configuration field's reference with the
// handle it resolved to.
type ResolvedDependency struct {
	// Field is the configuration field holding the reference.
	Field string `json:"field"`

	// Reference is the symbolic reference from configuration.
	Reference ObjectReference `json:"reference"`

	// Handle is the registered object the reference resolved to.
	Handle Handle `json:"handle"`
}

// AutomationChain is a user-authored action sequence attached to a hook.
// The compiler treats it as opaque apart from primitive references.
type AutomationChain struct {
	// Actions are the chain's actions, each a single-key mapping from action
	// name to its arguments.
	Actions []map[string]interface{} `json:"then" yaml:"then"`
}

// Len returns the number of actions in the chain.
func (c *AutomationChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Actions)
}

// Arg is one (type, name) entry of a trigger's argument signature.
type Arg struct {
	// Type is the target-language type of the argument.
	Type string `json:"type" yaml:"type"`

	// Name is the parameter name exposed to the automation chain.
	Name string `json:"name" yaml:"name"`
}

// TriggerBinding pairs a hook with its argument signature and the
// automation chain it fires.
type TriggerBinding struct {
	// Hook is the configuration key of the hook (e.g., "on_error").
	Hook string `json:"hook" yaml:"hook"`

	// Getter is the instance accessor returning the trigger object.
	Getter string `json:"getter" yaml:"getter"`

	// Args is the ordered argument signature, possibly empty.
	Args []Arg `json:"args" yaml:"args"`

	// Chain is the automation chain scheduled against the trigger.
	Chain *AutomationChain `json:"chain,omitempty" yaml:"chain,omitempty"`
}

// Instance declares the component object the plan creates.
type Instance struct {
	// ID is the component identifier.
	ID string `json:"id" yaml:"id"`

	// Type is the fully qualified component type.
	Type string `json:"type" yaml:"type"`

	// SetupPriority overrides the component's default setup priority.
	SetupPriority *float64 `json:"setup_priority,omitempty" yaml:"setup_priority,omitempty"`
}

// Binding attaches a resolved dependency to the instance.
type Binding struct {
	// Setter is the instance method that receives the dependency.
	Setter string `json:"setter" yaml:"setter"`

	// Field is the configuration field the dependency came from.
	Field string `json:"field" yaml:"field"`

	// Capability is the capability the dependency was resolved for.
	Capability Capability `json:"capability" yaml:"capability"`

	// Target is the ID of the resolved object.
	Target string `json:"target" yaml:"target"`
}

// Parameter is one scalar tuning value set on the instance.
type Parameter struct {
	// Name is the parameter name.
	Name string `json:"name" yaml:"name"`

	// Setter is the instance method that receives the value.
	Setter string `json:"setter" yaml:"setter"`

	// Value is the validated value.
	Value interface{} `json:"value" yaml:"value"`
}

// Manifest carries component-level build metadata.
type Manifest struct {
	// CodeOwners lists the maintainers of the component.
	CodeOwners []string `json:"codeowners,omitempty" yaml:"codeowners,omitempty"`

	// Requires lists platform components the component depends on.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`

	// AutoLoad lists platform components loaded automatically.
	AutoLoad []string `json:"auto_load,omitempty" yaml:"auto_load,omitempty"`
}

// Diagnostic is a non-fatal finding attached to a plan.
type Diagnostic struct {
	// Severity is the diagnostic severity.
	Severity Severity `json:"severity" yaml:"severity"`

	// Source names what produced the diagnostic (emitter, a policy name).
	Source string `json:"source" yaml:"source"`

	// Field is the configuration field concerned, if any.
	Field string `json:"field,omitempty" yaml:"field,omitempty"`

	// Message is the human-readable finding.
	Message string `json:"message" yaml:"message"`
}

// WiringPlan is the structured output of compiling one component. It is
// consumed by a downstream artifact generator.
type WiringPlan struct {
	// ID is derived from the component ID and plan content, so recompiling
	// unchanged input yields the same ID.
	ID string `json:"id" yaml:"id"`

	// Instance is the component object to create.
	Instance Instance `json:"instance" yaml:"instance"`

	// Bindings attach resolved dependencies, in declaration order.
	Bindings []Binding `json:"bindings" yaml:"bindings"`

	// Parameters set the scalar tuning values, in declaration order.
	Parameters []Parameter `json:"parameters" yaml:"parameters"`

	// Triggers are the registered hook bindings, in hook order.
	Triggers []TriggerBinding `json:"triggers" yaml:"triggers"`

	// HasTimers reports whether timer support must be compiled in.
	HasTimers bool `json:"has_timers" yaml:"has_timers"`

	// Defines are the global feature markers for conditional compilation.
	Defines []string `json:"defines" yaml:"defines"`

	// Manifest is the component's build metadata.
	Manifest Manifest `json:"manifest" yaml:"manifest"`

	// Diagnostics lists non-fatal findings.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Parameter returns the named parameter.
func (p *WiringPlan) Parameter(name string) (Parameter, bool) {
	for _, param := range p.Parameters {
		if param.Name == name {
			return param, true
		}
	}
	return Parameter{}, false
}

// Trigger returns the binding for the named hook.
func (p *WiringPlan) Trigger(hook string) (TriggerBinding, bool) {
	for _, t := range p.Triggers {
		if t.Hook == hook {
			return t, true
		}
	}
	return TriggerBinding{}, false
}

// HasDefine reports whether the plan emits the feature marker.
func (p *WiringPlan) HasDefine(name string) bool {
	for _, d := range p.Defines {
		if d == name {
			return true
		}
	}
	return false
}

// Warn appends a warning diagnostic.
func (p *WiringPlan) Warn(source, field, message string) {
	p.Diagnostics = append(p.Diagnostics, Diagnostic{
		Severity: SeverityWarning,
		Source:   source,
		Field:    field,
		Message:  message,
	})
}

// ExecutionGraph is the compile-order DAG over a document's declarations.
type ExecutionGraph struct {
	// Nodes maps declaration IDs to their graph nodes.
	Nodes map[string]*GraphNode `json:"nodes"`

	// Edges lists all reference edges in the graph.
	Edges []GraphEdge `json:"edges"`

	// Roots are the declaration IDs with no references.
	Roots []string `json:"roots"`

	// Levels lists declaration IDs per level, sorted within each level.
	Levels [][]string `json:"levels"`

	// Depth is the number of levels.
	Depth int `json:"depth"`
}

// Order flattens the levels into the deterministic compile order.
func (g *ExecutionGraph) Order() []string {
	order := make([]string, 0, len(g.Nodes))
	for _, level := range g.Levels {
		order = append(order, level...)
	}
	return order
}

// GraphNode represents a declaration in the execution graph.
type GraphNode struct {
	// ID is the declaration ID.
	ID string `json:"id"`

	// Kind is the declaration kind (microphone, audio_recorder, ...).
	Kind string `json:"kind"`

	// Level is the topological level (depth from roots).
	Level int `json:"level"`

	// Dependencies are the declarations this one references.
	Dependencies []string `json:"dependencies"`

	// Dependents are the declarations referencing this one.
	Dependents []string `json:"dependents"`
}

// GraphEdge represents a reference edge in the execution graph.
type GraphEdge struct {
	// From is the referenced declaration ID.
	From string `json:"from"`

	// To is the referencing declaration ID.
	To string `json:"to"`

	// Field is the configuration field carrying the reference.
	Field string `json:"field"`
}

// Declaration is one node handed to the DAG builder.
type Declaration struct {
	// ID is the declaration identifier.
	ID string

	// Kind is the declaration kind.
	Kind string

	// References maps a configuration field to the ID it references.
	References []FieldReference
}

// FieldReference is a reference edge source: the field and the ID it names.
type FieldReference struct {
	Field string
	ID    string
}

// CompileSummary provides statistics about one document compilation.
type CompileSummary struct {
	// Components is the number of component declarations compiled.
	Components int `json:"components"`

	// Emitted is the number of components that produced a plan.
	Emitted int `json:"emitted"`

	// Failed is the number of components that failed.
	Failed int `json:"failed"`

	// Primitives is the number of action/condition primitives built.
	Primitives int `json:"primitives"`

	// Duration is how long the compilation took.
	Duration time.Duration `json:"duration"`
}
