// Package crossfield enforces relationships between configuration fields
// that single-field validators cannot express.
//
// Constraints are declared as a table of exclusivity groups. Each group names
// a set of fields of which at most one may be set.
package crossfield

import (
	"fmt"
	"sort"

	"github.com/openfroyo/recwire/pkg/engine"
)

// Group is a named set of mutually exclusive fields.
type Group struct {
	// Name identifies the group in errors (e.g. "output").
	Name string

	// Fields are the member field names, in declaration order.
	Fields []string
}

// Table is a declarative constraint table.
type Table struct {
	groups []Group
}

// NewTable creates a constraint table from groups.
func NewTable(groups ...Group) *Table {
	t := &Table{}
	for _, g := range groups {
		t.Add(g)
	}
	return t
}

// Add registers a group. Groups are checked in registration order.
func (t *Table) Add(g Group) {
	if g.Name == "" || len(g.Fields) < 2 {
		panic(fmt.Sprintf("crossfield: group %q needs a name and at least two fields", g.Name))
	}
	t.groups = append(t.groups, Group{Name: g.Name, Fields: append([]string(nil), g.Fields...)})
}

// Groups returns the registered groups.
func (t *Table) Groups() []Group {
	out := make([]Group, len(t.groups))
	for i, g := range t.groups {
		out[i] = Group{Name: g.Name, Fields: append([]string(nil), g.Fields...)}
	}
	return out
}

// Fields reports which configuration fields are set.
type Fields interface {
	IsSet(field string) bool
}

// FieldSet is a Fields backed by a raw mapping. A key present with a nil
// value is not set.
type FieldSet map[string]interface{}

// IsSet reports whether the key has a non-nil value.
func (s FieldSet) IsSet(field string) bool {
	v, ok := s[field]
	return ok && v != nil
}

// Check verifies every group against the set fields. The first violated
// group fails with ConflictingFields naming every offending member.
func (t *Table) Check(fields Fields) error {
	for _, g := range t.groups {
		var set []string
		for _, name := range g.Fields {
			if fields.IsSet(name) {
				set = append(set, name)
			}
		}
		if len(set) > 1 {
			return engine.NewConflictingFieldsError(g.Name, set)
		}
	}
	return nil
}

// GroupOf returns the group a field belongs to.
func (t *Table) GroupOf(field string) (Group, bool) {
	for _, g := range t.groups {
		for _, name := range g.Fields {
			if name == field {
				return g, true
			}
		}
	}
	return Group{}, false
}

// Validator runs the relationship checks for one component type against a
// coerced configuration. A schema may already apply the same Table to raw
// keys; Validator re-checks the typed result, so a configuration built or
// modified after schema validation still has its groups enforced.
type Validator[T Fields] struct {
	table *Table
}

// NewValidator creates a relationship validator over table.
func NewValidator[T Fields](table *Table) *Validator[T] {
	return &Validator[T]{table: table}
}

// Validate returns cfg unchanged when every constraint holds.
func (v *Validator[T]) Validate(cfg T) (T, error) {
	if err := v.table.Check(cfg); err != nil {
		var zero T
		return zero, err
	}
	return cfg, nil
}

// Describe lists the groups as "name: a | b" lines, sorted by group name.
func (t *Table) Describe() []string {
	lines := make([]string, 0, len(t.groups))
	for _, g := range t.groups {
		line := g.Name + ":"
		for i, f := range g.Fields {
			if i > 0 {
				line += " |"
			}
			line += " " + f
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return lines
}
