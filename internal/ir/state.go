package ir

import "time"

// Status is the recorded lifecycle status of a resource. Deleted resources
// are removed from the snapshot rather than tombstoned.
type Status string

const (
	StatusApplied Status = "APPLIED"
	StatusFailed  Status = "FAILED"
)

// ResourceState is the recorded post-apply fact about one resource.
type ResourceState struct {
	Name         string            `json:"name"`
	Kind         Kind              `json:"kind"`
	RemoteID     string            `json:"remoteId,omitempty"`
	ConfigHash   string            `json:"configHash,omitempty"`
	Status       Status            `json:"status"`
	Outputs      map[string]string `json:"outputs,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Snapshot is a read-only view of the state store, keyed by resource name.
type Snapshot map[string]*ResourceState
