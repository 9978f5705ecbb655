package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/pkg/resource"
)

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	client := New()

	created, err := client.Create(ctx, ir.KindTable, "items", map[string]any{"tableName": "items"})
	require.NoError(t, err)
	assert.Equal(t, "mem-TABLE-items", created.RemoteID)
	assert.NotEmpty(t, created.Outputs["arn"])
	assert.True(t, client.Exists(ir.KindTable, "items"))

	read, err := client.Read(ctx, ir.KindTable, "items", created.RemoteID)
	require.NoError(t, err)
	assert.Equal(t, created.RemoteID, read.RemoteID)

	updated, err := client.Update(ctx, ir.KindTable, "items", created.RemoteID, map[string]any{"billingMode": "PROVISIONED"})
	require.NoError(t, err)
	assert.Equal(t, created.RemoteID, updated.RemoteID, "remote ID is stable across updates")

	require.NoError(t, client.WaitUntilReady(ctx, ir.KindTable, created.RemoteID, time.Second))

	require.NoError(t, client.Delete(ctx, ir.KindTable, "items", created.RemoteID))
	assert.False(t, client.Exists(ir.KindTable, "items"))
}

func TestCreate_ExistingIsAlreadyExists(t *testing.T) {
	ctx := context.Background()
	client := New()
	client.Seed(ir.KindTable, "items", nil)

	_, err := client.Create(ctx, ir.KindTable, "items", nil)
	require.Error(t, err)
	assert.True(t, resource.IsAlreadyExists(err))
}

func TestRead_MissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	client := New()

	_, err := client.Read(ctx, ir.KindTable, "ghost", "")
	assert.True(t, resource.IsNotFound(err))
}

func TestDelete_MissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	client := New()

	err := client.Delete(ctx, ir.KindTable, "ghost", "mem-TABLE-ghost")
	assert.True(t, resource.IsNotFound(err))
}

func TestWaitUntilReady_UnknownIDTimesOut(t *testing.T) {
	ctx := context.Background()
	client := New()

	err := client.WaitUntilReady(ctx, ir.KindTable, "mem-TABLE-ghost", time.Second)
	assert.True(t, resource.IsTimedOut(err))
}

func TestFailWith_FaultsPopPerCall(t *testing.T) {
	ctx := context.Background()
	client := New()
	fault := resource.NewError(resource.ClassTransient, ir.KindTable, "items", fmt.Errorf("throttled"))
	client.FailWith("items", fault, 2)

	_, err := client.Create(ctx, ir.KindTable, "items", nil)
	assert.True(t, resource.IsTransient(err))
	_, err = client.Create(ctx, ir.KindTable, "items", nil)
	assert.True(t, resource.IsTransient(err))

	_, err = client.Create(ctx, ir.KindTable, "items", nil)
	require.NoError(t, err, "faults are spent")

	assert.Equal(t, []string{"create items", "create items", "create items"}, client.Calls())
}

func TestNamesAreScopedByKind(t *testing.T) {
	ctx := context.Background()
	client := New()

	_, err := client.Create(ctx, ir.KindTable, "same", nil)
	require.NoError(t, err)
	_, err = client.Create(ctx, ir.KindRole, "same", nil)
	require.NoError(t, err)

	assert.True(t, client.Exists(ir.KindTable, "same"))
	assert.True(t, client.Exists(ir.KindRole, "same"))
}
