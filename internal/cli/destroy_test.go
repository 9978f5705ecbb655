package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/internal/state"
)

func TestDestroy_WorksWithoutStackFile(t *testing.T) {
	dir := t.TempDir()

	origStack, origState := stackPath, statePath
	origProvider, origApprove, origNoColor := providerName, destroyAutoApprove, noColor
	t.Cleanup(func() {
		stackPath, statePath = origStack, origState
		providerName, destroyAutoApprove, noColor = origProvider, origApprove, origNoColor
	})

	stackPath = filepath.Join(dir, "missing.yaml")
	statePath = filepath.Join(dir, "state.json")
	providerName = "memory"
	destroyAutoApprove = true
	noColor = true

	// Recorded state outlives the stack file that produced it.
	store, err := state.Open(statePath)
	require.NoError(t, err)
	require.NoError(t, store.Record("ghost", &ir.ResourceState{
		Name: "ghost", Kind: ir.KindTable, RemoteID: "mem-TABLE-ghost", Status: ir.StatusApplied,
	}))

	destroyCmd.SetContext(context.Background())
	require.NoError(t, runDestroy(destroyCmd, nil))

	reopened, err := state.Open(statePath)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Len())
	assert.Equal(t, 1, reopened.Serial())
}

func TestDestroy_UnreadableStackFileStillFails(t *testing.T) {
	dir := t.TempDir()

	origStack, origState := stackPath, statePath
	t.Cleanup(func() { stackPath, statePath = origStack, origState })

	stackPath = writeBrokenStack(t, dir)
	statePath = filepath.Join(dir, "state.json")

	destroyCmd.SetContext(context.Background())
	assert.Error(t, runDestroy(destroyCmd, nil), "a malformed stack file is an error, only absence is tolerated")
}

func writeBrokenStack(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stack: [unclosed"), 0o644))
	return path
}
