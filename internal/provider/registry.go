// Package provider maps provider names to initialized resource clients.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/stackform-io/stackform/pkg/resource"
	"github.com/stackform-io/stackform/providers/aws"
	"github.com/stackform-io/stackform/providers/memory"
)

// Options carries provider initialization settings.
type Options struct {
	Region string
}

// Registry holds the resource clients initialized for this run.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]resource.Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]resource.Client)}
}

// Load initializes the named provider and registers its client. Loading an
// already-loaded provider is a no-op.
func (r *Registry) Load(ctx context.Context, name string, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[name]; ok {
		return nil
	}

	switch name {
	case "aws":
		if opts.Region == "" {
			return fmt.Errorf("provider %q requires a region", name)
		}
		client, err := aws.New(ctx, opts.Region)
		if err != nil {
			return fmt.Errorf("failed to initialize provider %q: %w", name, err)
		}
		r.clients[name] = client
	case "memory":
		r.clients[name] = memory.New()
	default:
		return fmt.Errorf("unknown provider %q", name)
	}
	return nil
}

// Get returns the client for a loaded provider.
func (r *Registry) Get(name string) (resource.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not loaded", name)
	}
	return client, nil
}
