package agent

import (
	"sync"
	"time"
)

// NodeTable is the controller collaborator Reconcile writes dispatch
// outcomes into. A real controller's node table lives behind its own
// composite read/write locking; this package only needs to mark nodes
// responding or not, so that's all the interface exposes.
type NodeTable interface {
	MarkResponding(nodeName string, at time.Time)
	MarkNotResponding(nodeName string)
}

// LockManager brackets a Reconcile call the way agent.c's wdog brackets
// its node-table update with lock_slurmctld/unlock_slurmctld. Separated
// out as an interface so Dispatch's caller can supply the real
// scheduler-wide lock without this package needing to know its shape.
type LockManager interface {
	LockNodeWrite()
	UnlockNodeWrite()
}

// Reconcile folds a Dispatch result into table, under lock, matching
// wdog's end-of-poll node_did_resp/node_not_resp pass.
func Reconcile(result *Result, table NodeTable, locks LockManager) {
	locks.LockNodeWrite()
	defer locks.UnlockNodeWrite()

	now := time.Now()

	for _, name := range result.Responding {
		table.MarkResponding(name, now)
	}

	for _, name := range result.Failed {
		table.MarkNotResponding(name)
	}
}

// InMemoryNodeTable is a minimal NodeTable good enough for tests and for
// a standalone daemon with no external controller to report to.
type InMemoryNodeTable struct {
	mu          sync.Mutex
	lastSeen    map[string]time.Time
	notResponding map[string]bool
}

// NewInMemoryNodeTable returns an empty InMemoryNodeTable.
func NewInMemoryNodeTable() *InMemoryNodeTable {
	return &InMemoryNodeTable{
		lastSeen:      make(map[string]time.Time),
		notResponding: make(map[string]bool),
	}
}

func (t *InMemoryNodeTable) MarkResponding(nodeName string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastSeen[nodeName] = at
	delete(t.notResponding, nodeName)
}

func (t *InMemoryNodeTable) MarkNotResponding(nodeName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.notResponding[nodeName] = true
}

// LastSeen returns the last time nodeName was marked responding.
func (t *InMemoryNodeTable) LastSeen(nodeName string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.lastSeen[nodeName]

	return v, ok
}

// NotResponding reports whether nodeName is currently flagged down.
func (t *InMemoryNodeTable) NotResponding(nodeName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.notResponding[nodeName]
}

// Snapshot returns a copy of every node's last-responding time and the
// set of nodes currently flagged down, for a caller (e.g. a status
// endpoint) that wants the whole table rather than one node at a time.
func (t *InMemoryNodeTable) Snapshot() (lastSeen map[string]time.Time, notResponding map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lastSeen = make(map[string]time.Time, len(t.lastSeen))
	for k, v := range t.lastSeen {
		lastSeen[k] = v
	}

	notResponding = make(map[string]bool, len(t.notResponding))
	for k := range t.notResponding {
		notResponding[k] = true
	}

	return lastSeen, notResponding
}

// NoopLockManager is a LockManager for callers that provide their own
// external synchronization (or none, e.g. single-threaded tests).
type NoopLockManager struct{}

func (NoopLockManager) LockNodeWrite()   {}
func (NoopLockManager) UnlockNodeWrite() {}
