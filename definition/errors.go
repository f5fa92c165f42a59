package definition

import "fmt"

// ParseError reports malformed input syntax. It is recoverable by fixing
// the definition text and is never retried automatically.
type ParseError struct {
	// Format is the declared format of the raw input.
	Format Format
	// Line is the 1-based line of the offending construct when the
	// decoder reports one; zero otherwise.
	Line int
	// Offset is the byte offset of the offending construct when the
	// decoder reports one; zero otherwise.
	Offset int64

	Msg string
	err error
}

// Error implements error.
func (e *ParseError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("definition: parse %s (line %d): %s", e.Format, e.Line, e.Msg)
	case e.Offset > 0:
		return fmt.Sprintf("definition: parse %s (offset %d): %s", e.Format, e.Offset, e.Msg)
	default:
		return fmt.Sprintf("definition: parse %s: %s", e.Format, e.Msg)
	}
}

// Unwrap returns the underlying decoder error.
func (e *ParseError) Unwrap() error { return e.err }

// SchemaError reports a well-formed document that does not match the
// definition schema: unknown fields, wrong types, or missing required
// fields.
type SchemaError struct {
	Format Format
	// Fields lists the offending field paths, when known.
	Fields []string

	Msg string
	err error
}

// Error implements error.
func (e *SchemaError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("definition: schema %s: %s (fields: %v)", e.Format, e.Msg, e.Fields)
	}
	return fmt.Sprintf("definition: schema %s: %s", e.Format, e.Msg)
}

// Unwrap returns the underlying decoder error.
func (e *SchemaError) Unwrap() error { return e.err }
