package definition_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/xraph/maestro/definition"
)

const validYAML = `
id: wf-pipeline
name: Pipeline
version: "1"
steps:
  - id: fetch
    name: Fetch
    agentId: fetcher
    task: fetch the data
  - id: transform
    agentId: transformer
    task: transform the data
    dependencies: [fetch]
    timeout: 5000
    retries: 2
`

const validJSON = `{
  "id": "wf-pipeline",
  "name": "Pipeline",
  "steps": [
    {"id": "fetch", "name": "Fetch", "agentId": "fetcher", "task": "fetch the data"},
    {"id": "transform", "agentId": "transformer", "task": "transform", "dependencies": ["fetch"]}
  ]
}`

func TestParseYAML(t *testing.T) {
	t.Parallel()

	wf, err := definition.Parse([]byte(validYAML), definition.FormatYAML)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if wf.ID != "wf-pipeline" {
		t.Errorf("ID = %q, want wf-pipeline", wf.ID)
	}
	if len(wf.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(wf.Steps))
	}
	s := wf.Step("transform")
	if s == nil {
		t.Fatal("Step(transform) = nil")
	}
	if s.TimeoutMS != 5000 {
		t.Errorf("TimeoutMS = %d, want 5000", s.TimeoutMS)
	}
	if got := s.Timeout().Milliseconds(); got != 5000 {
		t.Errorf("Timeout() = %dms, want 5000ms", got)
	}
	if len(s.Dependencies) != 1 || s.Dependencies[0] != "fetch" {
		t.Errorf("Dependencies = %v, want [fetch]", s.Dependencies)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	wf, err := definition.Parse([]byte(validJSON), definition.FormatJSON)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if wf.Name != "Pipeline" {
		t.Errorf("Name = %q, want Pipeline", wf.Name)
	}
	if wf.Step("fetch") == nil {
		t.Error("Step(fetch) = nil")
	}
}

func TestParseMalformedSyntax(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		format definition.Format
	}{
		{"yaml tab indent", "id: x\n\tname: broken", definition.FormatYAML},
		{"yaml empty", "", definition.FormatYAML},
		{"json truncated", `{"id": "x", "name":`, definition.FormatJSON},
		{"json garbage", `{{{`, definition.FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, err := definition.Parse([]byte(tt.raw), tt.format)
			if wf != nil {
				t.Error("Parse returned a partial workflow on error")
			}
			var parseErr *definition.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error = %v (%T), want *ParseError", err, err)
			}
		})
	}
}

func TestParseSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		format definition.Format
	}{
		{
			"yaml unknown field",
			"id: x\nname: X\nbogus: true\nsteps:\n  - id: a\n    agentId: ag\n    task: t\n",
			definition.FormatYAML,
		},
		{
			"json unknown field",
			`{"id":"x","name":"X","bogus":1,"steps":[{"id":"a","agentId":"ag","task":"t"}]}`,
			definition.FormatJSON,
		},
		{
			"json wrong type",
			`{"id":"x","name":"X","steps":[{"id":"a","agentId":"ag","task":"t","retries":"three"}]}`,
			definition.FormatJSON,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := definition.Parse([]byte(tt.raw), tt.format)
			var schemaErr *definition.SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("error = %v (%T), want *SchemaError", err, err)
			}
		})
	}
}

func TestParseMissingRequiredFields(t *testing.T) {
	t.Parallel()

	raw := `{"id":"x","steps":[{"id":"a","task":"t"}]}`
	_, err := definition.Parse([]byte(raw), definition.FormatJSON)

	var schemaErr *definition.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v (%T), want *SchemaError", err, err)
	}
	want := []string{"name", "steps[0].agentId"}
	for _, field := range want {
		found := false
		for _, f := range schemaErr.Fields {
			if f == field {
				found = true
			}
		}
		if !found {
			t.Errorf("Fields = %v, missing %q", schemaErr.Fields, field)
		}
	}
}

func TestParseUnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := definition.Parse([]byte("id: x"), definition.Format("toml"))
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("error = %v, want unsupported format", err)
	}
}
