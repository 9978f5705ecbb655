// Package stackfile loads and validates the declarative stack document.
package stackfile

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/stackform-io/stackform/internal/engine"
	"github.com/stackform-io/stackform/internal/ir"
)

// UnsupportedKindError reports a resource declaring a kind this tool does
// not manage.
type UnsupportedKindError struct {
	Name string
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("resource %q: unsupported resource kind %q", e.Name, e.Kind)
}

// ValidationError reports a structurally invalid stack document.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid stack spec: " + e.Issues[0]
	}
	msg := fmt.Sprintf("invalid stack spec (%d issues):", len(e.Issues))
	for _, issue := range e.Issues {
		msg += "\n  - " + issue
	}
	return msg
}

// Load reads, parses, and validates a stack spec file.
func Load(path string) (*ir.StackSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stack file %s: %w", path, err)
	}

	var spec ir.StackSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse stack file %s: %w", path, err)
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the schema invariants: required fields, supported kinds,
// unique names, and that every dependency (explicit or ref://) names a
// declared resource. Cycle detection happens later, in the plan builder.
func Validate(spec *ir.StackSpec) error {
	var issues []string

	if err := structValidator.Struct(spec); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, verr := range verrs {
				issues = append(issues, fmt.Sprintf("field %s failed %q validation", verr.Namespace(), verr.Tag()))
			}
		} else {
			return fmt.Errorf("failed to validate stack spec: %w", err)
		}
	}

	declared := make(map[string]bool, len(spec.Resources))
	for _, res := range spec.Resources {
		if res.Name == "" {
			continue
		}
		if declared[res.Name] {
			issues = append(issues, fmt.Sprintf("resource name %q declared more than once", res.Name))
		}
		declared[res.Name] = true
	}

	for _, res := range spec.Resources {
		if res.Kind != "" && !res.Kind.Valid() {
			return &UnsupportedKindError{Name: res.Name, Kind: string(res.Kind)}
		}
		for _, dep := range res.DependsOn {
			if !declared[dep] {
				issues = append(issues, fmt.Sprintf("resource %q depends on undeclared resource %q", res.Name, dep))
			}
		}
		for _, ref := range engine.ExtractRefs(res.Config) {
			name, _ := engine.SplitRef(ref)
			if !declared[name] {
				issues = append(issues, fmt.Sprintf("resource %q references undeclared resource %q", res.Name, name))
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
