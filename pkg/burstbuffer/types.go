// Package burstbuffer implements the bookkeeping half of the node agent:
// per-user hash-bucketed allocation tracking, priority-boost-on-alloc
// policy, a conf-search-path config loader, and the binary pack format the
// status RPCs hand back to the controller.
//
// Ported from burst_buffer_common.c: same hash-bucket-by-UID layout, same
// saturating load counters, same pack field order, generalized from a
// single global state struct protected by ad hoc locking into a State type
// whose mutex is part of its value.
package burstbuffer

import (
	"sync"
	"time"
)

// BBHashSize is the number of buckets both the allocation and user hash
// tables are split into, keyed by uid % BBHashSize. Not part of any wire
// format, so the exact value only has to be internally consistent.
const BBHashSize = 10

// NiceOffset is the zero point of the priority-nice scale: a job's
// effective nice value is NiceOffset when neither boosted nor penalized.
// PrioBoostAlloc/PrioBoostUse configuration values are clamped to this
// ceiling, and AllocJob never raises priority past it.
const NiceOffset = 10000

// State values for an allocation record.
const (
	StatePending = iota
	StateStagingIn
	StateStagedIn
	StateAllocated
	StateStagingOut
	StateTeardown
	StateComplete
)

// GRES is one named generic-resource entry carried by an allocation
// record (e.g. a specific burst-buffer device or pool name).
type GRES struct {
	Name     string
	AvailCnt uint32
	UsedCnt  uint32
}

// Allocation is a single burst-buffer allocation record, either named (not
// tied to a job) or job-scoped.
type Allocation struct {
	ArrayJobID  uint32
	ArrayTaskID uint32
	GRES        []GRES
	JobID       uint32
	Name        string
	Size        uint32
	State       int
	StateTime   time.Time
	SeenTime    time.Time
	UserID      uint32
	UseTime     time.Time
	EndTime     time.Time

	Next *Allocation
}

// User tracks the aggregate space in use across all of a user's
// allocations.
type User struct {
	UserID uint32
	Size   uint32

	Next *User
}

// Config holds the burst_buffer*.conf settings governing one burst-buffer
// plugin instance.
type Config struct {
	AllowUsersStr    string
	AllowUsers       []uint32
	DenyUsersStr     string
	DenyUsers        []uint32
	GetSysState      string
	Granularity      uint32
	GRES             []GRES
	JobSizeLimit     uint32
	PrioBoostAlloc   uint32
	PrioBoostUse     uint32
	PrivateData      bool
	StageInTimeout   uint32
	StageOutTimeout  uint32
	StartStageIn     string
	StartStageOut    string
	StopStageIn      string
	StopStageOut     string
	UserSizeLimit    uint32
	DebugFlag        bool
}

// State is the bookkeeping subsystem's full in-memory state: the
// configuration plus the two UID-bucketed hash tables and aggregate space
// counters. Zero value is not usable; construct with NewState.
type State struct {
	mu sync.Mutex

	Config Config

	allocHash [BBHashSize]*Allocation
	userHash  [BBHashSize]*User

	TotalSpace    uint32
	UsedSpace     uint32
	NextEndTime   time.Time

	termMu   sync.Mutex
	termCond *sync.Cond
	termFlag bool
}

// NewState returns an initialized, empty State.
func NewState() *State {
	s := &State{}
	s.termCond = sync.NewCond(&s.termMu)

	return s
}

// Lock and Unlock expose the composite lock guarding both hash tables and
// the aggregate counters, mirroring the single coarse-grained lock the
// bookkeeping state uses in the original.
func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }
