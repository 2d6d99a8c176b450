// Package schema compiles loose model declarations into canonical,
// immutable schemas.
//
// A declaration is a map of attribute name to [Attribute] descriptor plus
// the model-level flags carried by [Config]. [Compile] validates the
// declaration, injects the auto primary key and timestamp attributes when
// enabled, and produces a [Schema] exposing both the logical attribute
// names used at the application boundary and the resolved storage column
// names used by adapters. The mapping between the two is bidirectional
// and collision-free per model.
//
// # Types
//
// Attribute types form a closed enumeration:
//
//	string, text, integer, float, date, time, datetime,
//	boolean, binary, array, json
//
// "int" is accepted as a declaration alias of "integer"; the two resolve
// to the same type.
//
// # Validation rules
//
// Each attribute carries an ordered rule set. A rule's operand is a
// [RuleValue]: a literal, a compiled regular expression, or a producer
// invoked with the full candidate record at validation time (the
// context-aware form may block). The validate package evaluates rules
// against candidate records; this package only describes them.
//
// Compiled schemas are read-only and safe for unlimited concurrent
// readers.
package schema
