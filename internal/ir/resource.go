package ir

// Kind identifies the type of a managed resource.
type Kind string

const (
	KindTable    Kind = "TABLE"
	KindRole     Kind = "ROLE"
	KindFunction Kind = "FUNCTION"
	KindAPI      Kind = "API"
	KindStage    Kind = "STAGE"
)

// Kinds lists every supported resource kind.
var Kinds = []Kind{KindTable, KindRole, KindFunction, KindAPI, KindStage}

// Valid reports whether k is a supported resource kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ResourceSpec is the declarative description of a single resource.
// It is immutable once loaded for a run.
type ResourceSpec struct {
	Kind      Kind           `yaml:"kind" json:"kind" validate:"required"`
	Name      string         `yaml:"name" json:"name" validate:"required"`
	Config    map[string]any `yaml:"config" json:"config"`
	DependsOn []string       `yaml:"dependsOn" json:"dependsOn,omitempty"`
}

// StackSpec is the complete declarative set of resources deployed together.
// Resource names are unique and the dependency graph is acyclic.
type StackSpec struct {
	Stack     string          `yaml:"stack" json:"stack"`
	Region    string          `yaml:"region" json:"region,omitempty"`
	Resources []*ResourceSpec `yaml:"resources" json:"resources" validate:"required,dive"`
}

// Resource returns the spec entry with the given name, or nil.
func (s *StackSpec) Resource(name string) *ResourceSpec {
	for _, res := range s.Resources {
		if res.Name == name {
			return res
		}
	}
	return nil
}
