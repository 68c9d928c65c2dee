package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openfroyo/recwire/pkg/engine"
)

// metricPrefixes maps SI prefixes to their exact multipliers.
var metricPrefixes = map[string]decimal.Decimal{
	"E":  decimal.New(1, 18),
	"P":  decimal.New(1, 15),
	"T":  decimal.New(1, 12),
	"G":  decimal.New(1, 9),
	"M":  decimal.New(1, 6),
	"k":  decimal.New(1, 3),
	"da": decimal.New(1, 1),
	"d":  decimal.New(1, -1),
	"c":  decimal.New(1, -2),
	"m":  decimal.New(1, -3),
	"µ":  decimal.New(1, -6),
	"u":  decimal.New(1, -6),
	"n":  decimal.New(1, -9),
	"p":  decimal.New(1, -12),
	"f":  decimal.New(1, -15),
	"a":  decimal.New(1, -18),
	"":   decimal.New(1, 0),
}

// FloatWithUnit parses a string of the form "<number><prefix><unit>", where
// unitPattern is a regular expression alternation of accepted unit spellings
// (e.g. "dBFS|dbfs|DBFS") and prefix is an optional metric prefix. The
// result is the number scaled by the prefix, as a float64 computed exactly.
// A bare number without the unit fails in the unit-conversion stage.
func FloatWithUnit(quantity, unitPattern string) Validator {
	pattern := regexp.MustCompile(
		fmt.Sprintf(`^([-+]?[0-9]*\.?[0-9]*)\s*(\pL*?)(%s)$`, unitPattern))

	return ValidatorFunc(func(value interface{}) (interface{}, error) {
		s, ok := value.(string)
		if !ok {
			return nil, failf(engine.StageUnitConversion,
				"expected %s with unit, got %v", quantity, value)
		}

		match := pattern.FindStringSubmatch(strings.TrimSpace(s))
		if match == nil {
			return nil, failf(engine.StageUnitConversion,
				"expected %s with unit, got %q", quantity, s)
		}

		mantissa, err := decimal.NewFromString(match[1])
		if err != nil {
			return nil, &ValueError{
				Stage:  engine.StageUnitConversion,
				Reason: fmt.Sprintf("invalid %s value %q", quantity, match[1]),
				Err:    err,
			}
		}

		multiplier, ok := metricPrefixes[match[2]]
		if !ok {
			return nil, failf(engine.StageUnitConversion, "invalid unit prefix %q", match[2])
		}

		f, _ := mantissa.Mul(multiplier).Float64()
		return f, nil
	})
}
