// Package resource defines the control-plane boundary between the engine and
// a concrete cloud provider. The engine never sees provider request/response
// shapes; a test double implements the same contract in memory.
package resource

import (
	"context"
	"time"

	"github.com/stackform-io/stackform/internal/ir"
)

// Result carries the provider-assigned identity of a resource after a
// successful create, update, or read.
type Result struct {
	// RemoteID is the provider-assigned identifier (name, ID, or ARN).
	RemoteID string
	// Outputs are additional provider-returned attributes (arn, url, ...)
	// addressable from other resources via ref:// values.
	Outputs map[string]string
}

// Client exposes one operation per (kind, verb) pair. All operations are
// synchronous from the caller's perspective and safe to call repeatedly with
// the same inputs: a create of something that exists fails with an
// AlreadyExists classification rather than being silently folded into
// success, so the caller can reconcile the real remote ID.
type Client interface {
	Create(ctx context.Context, kind ir.Kind, name string, config map[string]any) (*Result, error)

	// Read looks up a resource by remoteID, or by name when remoteID is
	// empty (used to reconcile an AlreadyExists create). A missing resource
	// is a NotFound error, not a nil result.
	Read(ctx context.Context, kind ir.Kind, name, remoteID string) (*Result, error)

	Update(ctx context.Context, kind ir.Kind, name, remoteID string, config map[string]any) (*Result, error)

	Delete(ctx context.Context, kind ir.Kind, name, remoteID string) error

	// WaitUntilReady blocks until the resource is usable by dependents or
	// the timeout elapses (TimedOut error).
	WaitUntilReady(ctx context.Context, kind ir.Kind, remoteID string, timeout time.Duration) error
}
