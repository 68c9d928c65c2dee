package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openfroyo/recwire/pkg/engine"
)

// Validator coerces a raw configuration value into its validated form.
type Validator interface {
	// Coerce returns the validated value or a *ValueError.
	Coerce(value interface{}) (interface{}, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(value interface{}) (interface{}, error)

// Coerce calls f(value).
func (f ValidatorFunc) Coerce(value interface{}) (interface{}, error) {
	return f(value)
}

// ValueError is a validator failure tagged with the stage that produced it.
type ValueError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *ValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

func failf(stage, format string, args ...interface{}) *ValueError {
	return &ValueError{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// All runs validators in order, feeding each one the previous output.
// The first failure is returned unchanged, carrying its own stage.
func All(validators ...Validator) Validator {
	return ValidatorFunc(func(value interface{}) (interface{}, error) {
		var err error
		for _, v := range validators {
			value, err = v.Coerce(value)
			if err != nil {
				return nil, err
			}
		}
		return value, nil
	})
}

// Int accepts integers, floats with no fractional part and numeric strings
// (decimal or 0x-prefixed hex). Booleans are rejected.
func Int() Validator {
	return ValidatorFunc(func(value interface{}) (interface{}, error) {
		if s, ok := value.(string); ok {
			s = strings.ToLower(strings.TrimSpace(s))
			base := 10
			if strings.HasPrefix(s, "0x") {
				base = 16
				s = s[2:]
			}
			n, err := strconv.ParseInt(s, base, 64)
			if err != nil {
				return nil, failf(engine.StageCoercion, "expected integer, but cannot parse %q as an integer", value)
			}
			return int(n), nil
		}

		d, ok := toDecimal(value)
		if !ok {
			return nil, failf(engine.StageCoercion, "expected integer, got %T", value)
		}
		if !d.IsInteger() {
			return nil, failf(engine.StageCoercion,
				"only integers with no fractional part are accepted, got %s", d.String())
		}
		return int(d.IntPart()), nil
	})
}

// Float accepts any number or numeric string and yields a float64.
func Float() Validator {
	return ValidatorFunc(func(value interface{}) (interface{}, error) {
		if s, ok := value.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, failf(engine.StageCoercion, "expected float, but cannot parse %q", value)
			}
			return f, nil
		}

		d, ok := toDecimal(value)
		if !ok {
			return nil, failf(engine.StageCoercion, "expected float, got %T", value)
		}
		f, _ := d.Float64()
		return f, nil
	})
}

// IntRange requires an integral number within [lo, hi] and yields an int.
// A fractional value fails in the range stage.
func IntRange(lo, hi int) Validator {
	return ValidatorFunc(func(value interface{}) (interface{}, error) {
		d, ok := toDecimal(value)
		if !ok {
			return nil, failf(engine.StageRange, "expected integer, got %T", value)
		}
		if !d.IsInteger() {
			return nil, failf(engine.StageRange, "expected an integer, got %s", d.String())
		}
		if d.LessThan(decimal.NewFromInt(int64(lo))) || d.GreaterThan(decimal.NewFromInt(int64(hi))) {
			return nil, failf(engine.StageRange, "value %s must be in [%d, %d]", d.String(), lo, hi)
		}
		return int(d.IntPart()), nil
	})
}

// Bound is one end of a float range.
type Bound struct {
	Value     float64
	Inclusive bool
}

// Above is an exclusive lower bound.
func Above(v float64) *Bound { return &Bound{Value: v} }

// AtLeast is an inclusive lower bound.
func AtLeast(v float64) *Bound { return &Bound{Value: v, Inclusive: true} }

// Below is an exclusive upper bound.
func Below(v float64) *Bound { return &Bound{Value: v} }

// AtMost is an inclusive upper bound.
func AtMost(v float64) *Bound { return &Bound{Value: v, Inclusive: true} }

// FloatRange requires a number between min and max. A nil bound is open.
func FloatRange(min, max *Bound) Validator {
	return ValidatorFunc(func(value interface{}) (interface{}, error) {
		d, ok := toDecimal(value)
		if !ok {
			return nil, failf(engine.StageRange, "expected float, got %T", value)
		}
		f, _ := d.Float64()
		if math.IsNaN(f) {
			return nil, failf(engine.StageRange, "value must be a number")
		}

		if min != nil {
			if (min.Inclusive && f < min.Value) || (!min.Inclusive && f <= min.Value) {
				return nil, failf(engine.StageRange, "value %v must be %s %v", f, lowerOp(min), min.Value)
			}
		}
		if max != nil {
			if (max.Inclusive && f > max.Value) || (!max.Inclusive && f >= max.Value) {
				return nil, failf(engine.StageRange, "value %v must be %s %v", f, upperOp(max), max.Value)
			}
		}
		return f, nil
	})
}

func lowerOp(b *Bound) string {
	if b.Inclusive {
		return "at least"
	}
	return "greater than"
}

func upperOp(b *Bound) string {
	if b.Inclusive {
		return "at most"
	}
	return "less than"
}

var idPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidID reports whether s is a usable object identifier.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

// ID accepts an identifier string.
func ID() Validator {
	return ValidatorFunc(func(value interface{}) (interface{}, error) {
		s, ok := value.(string)
		if !ok {
			return nil, failf(engine.StageCoercion, "expected identifier string, got %T", value)
		}
		if !ValidID(s) {
			return nil, failf(engine.StageCoercion,
				"%q is not a valid identifier (letters, digits and underscores, not starting with a digit)", s)
		}
		return s, nil
	})
}

// Reference accepts an identifier and yields an engine.ObjectReference that
// must resolve to an object with the given capability.
func Reference(capability engine.Capability) Validator {
	id := ID()
	return ValidatorFunc(func(value interface{}) (interface{}, error) {
		v, err := id.Coerce(value)
		if err != nil {
			return nil, err
		}
		return engine.ObjectReference{ID: v.(string), Capability: capability}, nil
	})
}

// automationKeys may appear beside "then" in a chain mapping.
var automationKeys = map[string]bool{
	"then":          true,
	"trigger_id":    true,
	"automation_id": true,
}

// AutomationChain accepts a single automation chain: a list of actions, a
// single action mapping, or a mapping with a "then" list. Every action is a
// mapping with exactly one key, the action name.
func AutomationChain() Validator {
	return ValidatorFunc(func(value interface{}) (interface{}, error) {
		chain, err := ParseChain(value)
		if err != nil {
			return nil, err
		}
		return chain, nil
	})
}

// ParseChain normalizes a raw automation value into an AutomationChain.
func ParseChain(value interface{}) (*engine.AutomationChain, error) {
	switch v := value.(type) {
	case nil:
		return nil, failf(engine.StageCoercion, "automation must not be empty")
	case []interface{}:
		return chainFromList(v)
	case []map[string]interface{}:
		items := make([]interface{}, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return chainFromList(items)
	case map[string]interface{}:
		if then, ok := v["then"]; ok {
			for key := range v {
				if !automationKeys[key] {
					return nil, failf(engine.StageCoercion, "unexpected key %q in automation", key)
				}
			}
			switch t := then.(type) {
			case []interface{}:
				return chainFromList(t)
			case map[string]interface{}:
				return chainFromList([]interface{}{t})
			default:
				return nil, failf(engine.StageCoercion, "automation 'then' must be a list of actions, got %T", then)
			}
		}
		return chainFromList([]interface{}{v})
	default:
		return nil, failf(engine.StageCoercion, "expected automation, got %T", value)
	}
}

func chainFromList(items []interface{}) (*engine.AutomationChain, error) {
	chain := &engine.AutomationChain{Actions: make([]map[string]interface{}, 0, len(items))}
	for i, item := range items {
		action, ok := item.(map[string]interface{})
		if !ok {
			return nil, failf(engine.StageCoercion, "action %d must be a mapping, got %T", i, item)
		}
		if len(action) != 1 {
			return nil, failf(engine.StageCoercion, "action %d must have exactly one key, got %d", i, len(action))
		}
		chain.Actions = append(chain.Actions, action)
	}
	return chain, nil
}

// toDecimal converts the numeric shapes produced by the YAML, JSON, CUE and
// Starlark decoders into an exact decimal.
func toDecimal(value interface{}) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int8:
		return decimal.NewFromInt(int64(v)), true
	case int16:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(v)), 0), true
	case uint8:
		return decimal.NewFromInt(int64(v)), true
	case uint16:
		return decimal.NewFromInt(int64(v)), true
	case uint32:
		return decimal.NewFromInt(int64(v)), true
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0), true
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat32(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(v), true
	case *big.Int:
		if v == nil {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromBigInt(v, 0), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case decimal.Decimal:
		return v, true
	default:
		return decimal.Decimal{}, false
	}
}
