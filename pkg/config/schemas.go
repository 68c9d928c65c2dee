package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for document shape checks.
// Field-level rules for recorders live in the recorder schema; the CUE
// schemas only reject documents whose sections have the wrong shape.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	if err := sr.RegisterSchema("document", "#Document", builtinDocumentSchema); err != nil {
		panic(err)
	}

	return sr
}

// RegisterSchema compiles src and registers its definition under name.
func (sr *SchemaRegistry) RegisterSchema(name, definition, src string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(src, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not define %s", name, definition)
	}
	if err := def.Err(); err != nil {
		return fmt.Errorf("failed to evaluate schema %s: %w", name, err)
	}

	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const builtinDocumentSchema = `
#ID: string & =~"^[a-zA-Z_][a-zA-Z0-9_]*$"

// A platform device. Platform-specific keys are allowed.
#Device: {
	id:       #ID
	platform: string & !=""
	...
}

// A section may hold a single entry or a list of entries.
#Devices: #Device | [...#Device]

#Recorder: {...}

#Automation: [...{...}] | {...}

#Document: {
	microphone?:     #Devices
	speaker?:        #Devices
	media_player?:   #Devices
	audio_recorder?: #Recorder | [...#Recorder]
	automations?:    [...#Automation]

	// Sections owned by other components are passed through.
	[string]: _
}
`
