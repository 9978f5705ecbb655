package ir

import "time"

// Mode selects what a plan is built for.
type Mode string

const (
	ModeApply   Mode = "APPLY"
	ModeDestroy Mode = "DESTROY"
)

// Action is the tagged variant of a single planned operation.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionNoOp   Action = "NOOP"
	ActionWait   Action = "WAIT"
)

// Operation is one step of a plan targeting a single resource.
type Operation struct {
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// Plan is an ordered sequence of operations. CREATE/UPDATE respect the
// topological order of dependsOn; DELETE the reverse.
type Plan struct {
	Mode       Mode         `json:"mode"`
	CreatedAt  time.Time    `json:"createdAt"`
	Operations []*Operation `json:"operations"`
	Summary    *PlanSummary `json:"summary"`
}

type PlanSummary struct {
	Create int `json:"create"`
	Update int `json:"update"`
	Delete int `json:"delete"`
	NoOp   int `json:"noop"`
	Wait   int `json:"wait"`
}

// HasChanges reports whether the plan contains anything beyond NOOPs.
func (p *Plan) HasChanges() bool {
	return p.Summary.Create+p.Summary.Update+p.Summary.Delete > 0
}
