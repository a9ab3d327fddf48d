// Package agent implements the worker-pool RPC dispatcher: fan a single
// request out to N targets, each on its own goroutine, throttled to a
// configured thread count, with a watchdog that force-cancels any worker
// running past its deadline and reports back which targets answered.
//
// Ported from agent.c's thd_t/agent_info_t/task_info_t triangle: the
// condition-variable throttle on thread_count/threads_active becomes a
// buffered semaphore channel; the watchdog's SIGALRM-after-COMMAND_TIMEOUT
// poll loop becomes a poll loop that cancels the overrunning worker's own
// context, since Go has no equivalent of interrupting a blocking syscall
// with a signal.
package agent

import (
	"sync"
	"time"
)

// WorkerState mirrors agent.c's DSH_* thread states.
type WorkerState int

const (
	WorkerNew WorkerState = iota
	WorkerActive
	WorkerDone
	WorkerFailed
)

// Target is one node address this dispatch will talk to.
type Target struct {
	NodeName string
	Address  string
}

// WorkerRecord tracks one target's dispatch outcome, the Go analogue of
// agent.c's thd_t. Time holds the dispatch start, set when the worker
// becomes active, and Delta holds the elapsed duration once it has
// finished: agent.c's thd_t.time field carries both in turn, here they are
// two fields.
type WorkerRecord struct {
	Target Target
	State  WorkerState
	Time   time.Time
	Delta  time.Duration
}

// Request is the single RPC dispatched in parallel to every target.
type Request struct {
	MsgType MessageType
	Payload []byte
}

// MessageType enumerates the RPCs this dispatcher is willing to fan out;
// Dispatch aborts immediately on anything else, matching agent.c's fatal
// precondition check on msg_type.
type MessageType int

const (
	MsgRevokeJobCredential MessageType = iota + 1
	MsgNodeRegistrationStatus
	MsgPing
)

func validMessageType(t MessageType) bool {
	switch t {
	case MsgRevokeJobCredential, MsgNodeRegistrationStatus, MsgPing:
		return true
	default:
		return false
	}
}

// MsgResponseSlurmRC is the wire message type every node reply carries,
// the analogue of RESPONSE_SLURM_RC. A reply of any other message type
// is classified FAILED regardless of its payload.
const MsgResponseSlurmRC MessageType = 1000

// Result is Dispatch's return value: the final state of every worker,
// plus the lists split out by outcome for a caller that only cares about
// one side.
type Result struct {
	Workers    []*WorkerRecord
	Responding []string
	Failed     []string
	MaxDelay   time.Duration
}

// schedulerContext is the shared state a Dispatch call's workers and
// watchdog coordinate through: the Go analogue of agent_info_t, with its
// mutex/cond throttle turned into a buffered channel semaphore plus a
// WaitGroup for join.
type schedulerContext struct {
	mu            sync.Mutex
	threadsActive int
	workers       []*WorkerRecord
}

func (c *schedulerContext) snapshot() []*WorkerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*WorkerRecord, len(c.workers))
	copy(out, c.workers)

	return out
}
