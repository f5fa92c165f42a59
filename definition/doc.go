// Package definition defines the declarative workflow schema and its
// parser and validator. A definition is the immutable input to the engine:
// an ordered list of steps with inter-step dependencies, accepted
// interchangeably as YAML or JSON encodings of the same schema.
//
// Parse converts raw text into a typed Workflow or fails with a
// *ParseError (malformed syntax) or *SchemaError (unknown field, wrong
// type, missing required field). Validate then checks structural
// well-formedness — id uniqueness, dependency resolution, numeric ranges —
// accumulating every violation instead of short-circuiting.
package definition
