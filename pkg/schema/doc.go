// Package schema provides declarative field specifications and composable
// value validators for component configuration.
//
// A Schema is an ordered list of FieldSpecs. Validate checks a raw mapping in
// a fixed order and stops at the first failure:
//
//  1. Unknown keys, sorted lexicographically, are rejected with UnknownField.
//  2. Each declared field, in declaration order, is either defaulted, reported
//     as MissingField, or coerced through its Validator.
//
// Validators are small coercing functions. All chains them and the failing
// validator's stage (coercion, unit-conversion, range) is attached to the
// InvalidFieldValue error:
//
//	autoGain := schema.All(
//	    schema.FloatWithUnit("decibel full scale", "dBFS|dbfs|DBFS"),
//	    schema.IntRange(0, 31),
//	)
//	v, err := autoGain.Coerce("31dBFS") // v == 31
//
// Field specifications are static and may be shared read-only between
// goroutines.
package schema
