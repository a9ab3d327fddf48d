package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcileMarksRespondingAndFailed(t *testing.T) {
	table := NewInMemoryNodeTable()
	result := &Result{Responding: []string{"node01"}, Failed: []string{"node02"}}

	Reconcile(result, table, NoopLockManager{})

	_, ok := table.LastSeen("node01")
	assert.True(t, ok)
	assert.True(t, table.NotResponding("node02"))
	assert.False(t, table.NotResponding("node01"))
}

func TestReconcileClearsPriorFailureOnRecovery(t *testing.T) {
	table := NewInMemoryNodeTable()

	Reconcile(&Result{Failed: []string{"node01"}}, table, NoopLockManager{})
	assert.True(t, table.NotResponding("node01"))

	Reconcile(&Result{Responding: []string{"node01"}}, table, NoopLockManager{})
	assert.False(t, table.NotResponding("node01"))
}

func TestSnapshotReflectsBothTables(t *testing.T) {
	table := NewInMemoryNodeTable()
	Reconcile(&Result{Responding: []string{"node01"}, Failed: []string{"node02"}}, table, NoopLockManager{})

	lastSeen, notResponding := table.Snapshot()
	assert.Contains(t, lastSeen, "node01")
	assert.True(t, notResponding["node02"])
	assert.False(t, notResponding["node01"])
}
