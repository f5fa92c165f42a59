package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse converts raw definition text in the declared format into a typed
// Workflow. It is a pure function with no side effects and never returns
// a partial definition: on any error the returned Workflow is nil.
//
// Malformed syntax yields a *ParseError; a syntactically valid document
// that does not match the schema (unknown field, wrong type, missing
// required field) yields a *SchemaError.
func Parse(raw []byte, format Format) (*Workflow, error) {
	var (
		wf  Workflow
		err error
	)

	switch format {
	case FormatYAML:
		err = parseYAML(raw, &wf)
	case FormatJSON:
		err = parseJSON(raw, &wf)
	default:
		return nil, fmt.Errorf("definition: unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}

	if missing := requiredFields(&wf); len(missing) > 0 {
		return nil, &SchemaError{
			Format: format,
			Fields: missing,
			Msg:    "missing required fields",
		}
	}

	return &wf, nil
}

// parseYAML decodes strictly: unknown fields are schema errors, not
// silently dropped.
func parseYAML(raw []byte, wf *Workflow) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	if err := dec.Decode(wf); err != nil {
		if errors.Is(err, io.EOF) {
			return &ParseError{Format: FormatYAML, Msg: "empty document", err: err}
		}

		// yaml.TypeError means the document parsed but fields did not
		// fit the schema (unknown field, wrong type).
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return &SchemaError{
				Format: FormatYAML,
				Msg:    strings.Join(typeErr.Errors, "; "),
				err:    err,
			}
		}

		return &ParseError{Format: FormatYAML, Msg: err.Error(), err: err}
	}

	return nil
}

// parseJSON decodes strictly with DisallowUnknownFields.
func parseJSON(raw []byte, wf *Workflow) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(wf); err != nil {
		var synErr *json.SyntaxError
		if errors.As(err, &synErr) {
			return &ParseError{
				Format: FormatJSON,
				Offset: synErr.Offset,
				Msg:    synErr.Error(),
				err:    err,
			}
		}

		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &SchemaError{
				Format: FormatJSON,
				Fields: []string{typeErr.Field},
				Msg:    typeErr.Error(),
				err:    err,
			}
		}

		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return &ParseError{Format: FormatJSON, Msg: "truncated document", err: err}
		}

		// DisallowUnknownFields reports unknown fields as a plain error.
		if strings.Contains(err.Error(), "unknown field") {
			return &SchemaError{Format: FormatJSON, Msg: err.Error(), err: err}
		}

		return &ParseError{Format: FormatJSON, Msg: err.Error(), err: err}
	}

	return nil
}

// requiredFields returns the paths of required fields that are absent.
func requiredFields(wf *Workflow) []string {
	var missing []string

	if wf.ID == "" {
		missing = append(missing, "id")
	}
	if wf.Name == "" {
		missing = append(missing, "name")
	}
	if len(wf.Steps) == 0 {
		missing = append(missing, "steps")
	}

	for i := range wf.Steps {
		s := &wf.Steps[i]
		if s.ID == "" {
			missing = append(missing, fmt.Sprintf("steps[%d].id", i))
		}
		if s.AgentID == "" {
			missing = append(missing, fmt.Sprintf("steps[%d].agentId", i))
		}
		if s.Task == "" {
			missing = append(missing, fmt.Sprintf("steps[%d].task", i))
		}
	}

	return missing
}
