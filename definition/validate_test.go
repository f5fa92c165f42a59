package definition_test

import (
	"strings"
	"testing"

	"github.com/xraph/maestro/definition"
)

func step(id string, deps ...string) definition.Step {
	return definition.Step{ID: id, AgentID: "agent", Task: "task", Dependencies: deps}
}

func TestValidateOK(t *testing.T) {
	t.Parallel()

	wf := &definition.Workflow{
		ID:    "wf",
		Name:  "WF",
		Steps: []definition.Step{step("a"), step("b", "a"), step("c", "a", "b")},
	}
	res := definition.Validate(wf)
	if !res.Valid {
		t.Fatalf("Valid = false, errors: %v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Errors = %v, want none", res.Errors)
	}
}

func TestValidateAccumulatesAllViolations(t *testing.T) {
	t.Parallel()

	bad := step("dup")
	bad.Retries = 99
	wf := &definition.Workflow{
		ID:   "wf",
		Name: "WF",
		Steps: []definition.Step{
			step("dup"),
			bad,                  // duplicate id + retries out of range
			step("b", "ghost"),   // unknown dependency
			step("self", "self"), // self-dependency
		},
	}
	res := definition.Validate(wf)
	if res.Valid {
		t.Fatal("Valid = true for invalid definition")
	}

	wantFragments := []string{
		`step "dup": duplicate step id`,
		`step "b": unknown dependency "ghost"`,
		`step "self": depends on itself`,
		`retries 99 out of range`,
	}
	joined := strings.Join(res.Errors, "\n")
	for _, frag := range wantFragments {
		if !strings.Contains(joined, frag) {
			t.Errorf("Errors missing %q; got:\n%s", frag, joined)
		}
	}
}

func TestValidateRanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*definition.Step)
		valid  bool
	}{
		{"retries max", func(s *definition.Step) { s.Retries = definition.MaxRetries }, true},
		{"retries over", func(s *definition.Step) { s.Retries = definition.MaxRetries + 1 }, false},
		{"negative timeout", func(s *definition.Step) { s.TimeoutMS = -1 }, false},
		{"priority max", func(s *definition.Step) { s.Priority = definition.MaxPriority }, true},
		{"priority over", func(s *definition.Step) { s.Priority = definition.MaxPriority + 1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := step("a")
			tt.mutate(&s)
			wf := &definition.Workflow{ID: "wf", Name: "WF", Steps: []definition.Step{s}}
			res := definition.Validate(wf)
			if res.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (errors: %v)", res.Valid, tt.valid, res.Errors)
			}
		})
	}
}
