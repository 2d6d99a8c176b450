// Package validate evaluates validation rules against candidate records.
//
// Rules are evaluated per attribute. Each rule's operand is resolved
// first (literal, pattern, or producer invoked with the full candidate
// record; producers may block) and then applied by name against the
// coerced value. Attribute evaluations run concurrently and are joined
// before the aggregate result is reported, so the engine always returns
// the complete failure set: a record violating rules on two attributes
// reports both.
//
// Custom type validators registered on the model run after the builtin
// rules of their attribute and may read sibling attribute values.
package validate
