// Package memory implements the resource client contract entirely in
// memory. It backs deterministic engine tests and dry-run experiments
// without touching a real cloud account, and supports scripted failures for
// exercising retry, reconcile, and partial-apply paths.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/pkg/resource"
)

type record struct {
	remoteID string
	config   map[string]any
	outputs  map[string]string
}

// Client is an in-memory resource.Client.
type Client struct {
	mu        sync.Mutex
	resources map[string]*record // keyed kind/name
	faults    map[string][]error // scripted per-resource errors, popped per call
	calls     []string
}

func New() *Client {
	return &Client{
		resources: make(map[string]*record),
		faults:    make(map[string][]error),
	}
}

func key(kind ir.Kind, name string) string {
	return fmt.Sprintf("%s/%s", kind, name)
}

// FailWith scripts err to be returned by the next n mutating calls
// targeting name (create, update, or delete), before any real effect.
func (c *Client) FailWith(name string, err error, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.faults[name] = append(c.faults[name], err)
	}
}

// Seed registers an existing remote resource that was never recorded in
// state, the situation an AlreadyExists reconcile resolves.
func (c *Client) Seed(kind ir.Kind, name string, config map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[key(kind, name)] = &record{
		remoteID: remoteID(kind, name),
		config:   config,
		outputs:  defaultOutputs(kind, name),
	}
}

// Calls returns the log of provider invocations, in order.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Exists reports whether the remote resource is present.
func (c *Client) Exists(kind ir.Kind, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.resources[key(kind, name)]
	return ok
}

func (c *Client) nextFault(name string) error {
	if errs := c.faults[name]; len(errs) > 0 {
		c.faults[name] = errs[1:]
		return errs[0]
	}
	return nil
}

func (c *Client) Create(ctx context.Context, kind ir.Kind, name string, config map[string]any) (*resource.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "create "+name)

	if err := c.nextFault(name); err != nil {
		return nil, err
	}
	k := key(kind, name)
	if _, ok := c.resources[k]; ok {
		return nil, resource.NewError(resource.ClassAlreadyExists, kind, name, fmt.Errorf("%s already exists", k))
	}

	rec := &record{
		remoteID: remoteID(kind, name),
		config:   config,
		outputs:  defaultOutputs(kind, name),
	}
	c.resources[k] = rec
	return &resource.Result{RemoteID: rec.remoteID, Outputs: rec.outputs}, nil
}

func (c *Client) Read(ctx context.Context, kind ir.Kind, name, remoteID string) (*resource.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "read "+name)

	rec, ok := c.resources[key(kind, name)]
	if !ok {
		return nil, resource.NewError(resource.ClassNotFound, kind, name, nil)
	}
	return &resource.Result{RemoteID: rec.remoteID, Outputs: rec.outputs}, nil
}

func (c *Client) Update(ctx context.Context, kind ir.Kind, name, remoteID string, config map[string]any) (*resource.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "update "+name)

	if err := c.nextFault(name); err != nil {
		return nil, err
	}
	rec, ok := c.resources[key(kind, name)]
	if !ok {
		return nil, resource.NewError(resource.ClassNotFound, kind, name, nil)
	}
	rec.config = config
	return &resource.Result{RemoteID: rec.remoteID, Outputs: rec.outputs}, nil
}

func (c *Client) Delete(ctx context.Context, kind ir.Kind, name, remoteID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "delete "+name)

	if err := c.nextFault(name); err != nil {
		return err
	}
	k := key(kind, name)
	if _, ok := c.resources[k]; !ok {
		return resource.NewError(resource.ClassNotFound, kind, name, nil)
	}
	delete(c.resources, k)
	return nil
}

func (c *Client) WaitUntilReady(ctx context.Context, kind ir.Kind, remoteID string, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "wait "+remoteID)

	for _, rec := range c.resources {
		if rec.remoteID == remoteID {
			return nil
		}
	}
	return resource.NewError(resource.ClassTimedOut, kind, remoteID, fmt.Errorf("resource never became ready"))
}

func remoteID(kind ir.Kind, name string) string {
	return fmt.Sprintf("mem-%s-%s", kind, name)
}

func defaultOutputs(kind ir.Kind, name string) map[string]string {
	return map[string]string{
		"id":  remoteID(kind, name),
		"arn": fmt.Sprintf("arn:mem:%s:%s", kind, name),
	}
}
