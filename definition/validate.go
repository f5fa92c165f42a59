package definition

import "fmt"

// Numeric ranges enforced by Validate.
const (
	MaxRetries  = 10
	MaxPriority = 100
)

// Result is the outcome of validating a workflow definition.
// When Valid is false, Errors holds every violation found.
type Result struct {
	Valid  bool
	Errors []string
}

// Validate checks the structural well-formedness of a parsed definition.
// It accumulates all violations rather than stopping at the first, in
// this order: step id uniqueness, dependency resolution, self-dependency,
// numeric ranges. Callers must not proceed to graph building when the
// result is invalid.
func Validate(wf *Workflow) Result {
	var errs []string

	// (a) Step id uniqueness.
	seen := make(map[string]struct{}, len(wf.Steps))
	for i := range wf.Steps {
		s := &wf.Steps[i]
		if _, dup := seen[s.ID]; dup {
			errs = append(errs, fmt.Sprintf("step %q: duplicate step id", s.ID))
			continue
		}
		seen[s.ID] = struct{}{}
	}

	// (b) Every dependency resolves to a known step.
	for i := range wf.Steps {
		s := &wf.Steps[i]
		for _, dep := range s.Dependencies {
			if _, ok := seen[dep]; !ok {
				errs = append(errs, fmt.Sprintf("step %q: unknown dependency %q", s.ID, dep))
			}
		}
	}

	// (c) No step depends on itself.
	for i := range wf.Steps {
		s := &wf.Steps[i]
		for _, dep := range s.Dependencies {
			if dep == s.ID {
				errs = append(errs, fmt.Sprintf("step %q: depends on itself", s.ID))
			}
		}
	}

	// (d) Numeric ranges.
	for i := range wf.Steps {
		s := &wf.Steps[i]
		if s.Retries < 0 || s.Retries > MaxRetries {
			errs = append(errs, fmt.Sprintf("step %q: retries %d out of range [0,%d]", s.ID, s.Retries, MaxRetries))
		}
		if s.TimeoutMS < 0 {
			errs = append(errs, fmt.Sprintf("step %q: timeout %dms is negative", s.ID, s.TimeoutMS))
		}
		if s.Priority < 0 || s.Priority > MaxPriority {
			errs = append(errs, fmt.Sprintf("step %q: priority %d out of range [0,%d]", s.ID, s.Priority, MaxPriority))
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}
