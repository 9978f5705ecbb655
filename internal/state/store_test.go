package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackform-io/stackform/internal/ir"
)

func TestOpen_MissingFileStartsEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, store.Serial())
	assert.NotEmpty(t, store.Lineage())
}

func TestStore_RecordPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Open(path)
	require.NoError(t, err)
	lineage := store.Lineage()

	require.NoError(t, store.Record("items", &ir.ResourceState{
		Name:       "items",
		Kind:       ir.KindTable,
		RemoteID:   "items",
		ConfigHash: "abc123",
		Status:     ir.StatusApplied,
		Outputs:    map[string]string{"arn": "arn:aws:dynamodb:::table/items"},
		UpdatedAt:  time.Now().UTC(),
	}))
	require.NoError(t, store.IncrementSerial())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, lineage, reopened.Lineage(), "lineage survives reopen")
	assert.Equal(t, 1, reopened.Serial())

	rs := reopened.Snapshot()["items"]
	require.NotNil(t, rs)
	assert.Equal(t, ir.KindTable, rs.Kind)
	assert.Equal(t, "items", rs.RemoteID)
	assert.Equal(t, "abc123", rs.ConfigHash)
	assert.Equal(t, "arn:aws:dynamodb:::table/items", rs.Outputs["arn"])
}

func TestStore_RemoveDropsEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, store.Record("a", &ir.ResourceState{Name: "a", Kind: ir.KindRole}))
	require.NoError(t, store.Record("b", &ir.ResourceState{Name: "b", Kind: ir.KindRole}))
	require.NoError(t, store.Remove("a"))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Nil(t, reopened.Snapshot()["a"])
	assert.NotNil(t, reopened.Snapshot()["b"])
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	require.NoError(t, store.Record("a", &ir.ResourceState{
		Name:    "a",
		Kind:    ir.KindTable,
		Outputs: map[string]string{"arn": "original"},
	}))

	snap := store.Snapshot()
	snap["a"].Outputs["arn"] = "mutated"
	snap["a"].RemoteID = "mutated"

	fresh := store.Snapshot()
	assert.Equal(t, "original", fresh["a"].Outputs["arn"])
	assert.Empty(t, fresh["a"].RemoteID)
}

func TestStore_FlushLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	store, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, store.Record("a", &ir.ResourceState{Name: "a", Kind: ir.KindTable}))

	_, err = os.Stat(path)
	require.NoError(t, err)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestLock_SecondLockFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, store.Lock())
	defer store.Unlock()

	other, err := Open(path)
	require.NoError(t, err)
	assert.Error(t, other.Lock())
}

func TestLock_StaleLockIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := Open(path)
	require.NoError(t, err)

	lockPath := path + ".lock"
	require.NoError(t, os.WriteFile(lockPath, []byte("pid=1\n"), 0o644))
	stale := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lockPath, stale, stale))

	assert.NoError(t, store.Lock())
	assert.NoError(t, store.Unlock())
}

func TestUnlock_WithoutLockIsNoError(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.NoError(t, store.Unlock())
}
