package burstbuffer

import (
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Job is the minimal view of a scheduler job record this package needs:
// just enough to find/allocate a burst-buffer record for it and to apply
// the priority-boost policy.
type Job struct {
	JobID       uint32
	ArrayJobID  uint32
	ArrayTaskID uint32
	UserID      uint32
	Nice        uint16
	Priority    uint32
	StartTime   time.Time
	EndTime     time.Time
}

// FindJobRec returns the allocation record for job, or nil if none
// exists. A job ID match under a different user ID is logged as a
// consistency error but scanning continues rather than aborting: this
// mirrors state recovered after a crash where a job's burst-buffer record
// can briefly disagree with current job state.
func (s *State) FindJobRec(job Job, logger log.Logger) *Allocation {
	bucket := job.UserID % BBHashSize

	for a := s.allocHash[bucket]; a != nil; a = a.Next {
		if a.JobID != job.JobID {
			continue
		}

		if a.UserID == job.UserID {
			return a
		}

		level.Error(logger).Log("msg", "burst buffer state inconsistent with job state: user ID mismatch",
			"job_id", job.JobID, "alloc_user_id", a.UserID, "job_user_id", job.UserID)
	}

	return nil
}

// FindUserRec returns the per-user load record for userID, creating and
// bucket-prepending a zeroed one on first reference.
func (s *State) FindUserRec(userID uint32) *User {
	bucket := userID % BBHashSize

	for u := s.userHash[bucket]; u != nil; u = u.Next {
		if u.UserID == userID {
			return u
		}
	}

	u := &User{UserID: userID, Next: s.userHash[bucket]}
	s.userHash[bucket] = u

	return u
}

// AddUserLoad folds alloc's size into both the aggregate used-space
// counter and its owning user's load.
func (s *State) AddUserLoad(alloc *Allocation) {
	s.UsedSpace += alloc.Size

	user := s.FindUserRec(alloc.UserID)
	user.Size += alloc.Size
}

// RemoveUserLoad subtracts alloc's size from the aggregate used-space
// counter and its owning user's load. Either counter is clamped to zero,
// with an error logged, rather than allowed to underflow: the two
// counters are tracked independently, so a bug in one doesn't corrupt the
// other.
func (s *State) RemoveUserLoad(alloc *Allocation, logger log.Logger) {
	if s.UsedSpace >= alloc.Size {
		s.UsedSpace -= alloc.Size
	} else {
		level.Error(logger).Log("msg", "used space underflow releasing buffer", "job_id", alloc.JobID)
		s.UsedSpace = 0
	}

	user := s.FindUserRec(alloc.UserID)
	if user.Size >= alloc.Size {
		user.Size -= alloc.Size
	} else {
		level.Error(logger).Log("msg", "user table underflow", "user_id", user.UserID)
		user.Size = 0
	}
}

// AllocNameRec allocates a named (not job-scoped) burst-buffer record for
// a user and links it into the allocation hash table.
func (s *State) AllocNameRec(name string, userID uint32) *Allocation {
	bucket := userID % BBHashSize

	a := &Allocation{
		Name:      name,
		State:     StateAllocated,
		StateTime: now(),
		SeenTime:  now(),
		UserID:    userID,
		Next:      s.allocHash[bucket],
	}
	s.allocHash[bucket] = a

	return a
}

// AllocJobRec allocates a job-scoped burst-buffer record of the given size
// and links it into the allocation hash table.
func (s *State) AllocJobRec(job Job, size uint32) *Allocation {
	bucket := job.UserID % BBHashSize

	a := &Allocation{
		ArrayJobID:  job.ArrayJobID,
		ArrayTaskID: job.ArrayTaskID,
		JobID:       job.JobID,
		Size:        size,
		State:       StateAllocated,
		StateTime:   now(),
		SeenTime:    now(),
		UserID:      job.UserID,
		Next:        s.allocHash[bucket],
	}
	s.allocHash[bucket] = a

	return a
}

// AllocJob allocates a job-scoped burst-buffer record and, if the config
// has a nonzero PrioBoostUse, raises the job's priority by lowering its nice value toward NiceOffset -
// PrioBoostUse. The boost only ever moves nice down (priority up): a job
// already niced below the configured floor is left alone.
func (s *State) AllocJob(job *Job, size uint32, logger log.Logger) *Allocation {
	if s.Config.PrioBoostUse > 0 {
		newNice := uint16(NiceOffset - s.Config.PrioBoostUse)
		if newNice < job.Nice {
			delta := int64(job.Nice) - int64(newNice)
			job.Priority = uint32(int64(job.Priority) + delta)
			job.Nice = newNice

			level.Info(logger).Log("msg", "job uses burst buffer, priority boosted",
				"job_id", job.JobID, "priority", job.Priority)
		}
	}

	a := s.AllocJobRec(*job, size)
	s.AddUserLoad(a)

	return a
}

// SetUseTime walks every allocation and sets its UseTime to the point at
// which its burst buffer is expected to actually be used: the owning
// job's start time for an in-flight stage-in, now for buffers with no
// job, and otherwise left alone. NextEndTime is recomputed as the
// earliest end time across all sized allocations, bounded so it never
// drifts more than an hour past now when nothing more specific is known.
func (s *State) SetUseTime(jobs map[uint32]Job, logger log.Logger) {
	n := now()
	s.NextEndTime = n.Add(time.Hour)

	for bucket := range s.allocHash {
		for a := s.allocHash[bucket]; a != nil; a = a.Next {
			switch {
			case a.JobID != 0 && (a.State == StateStagingIn || a.State == StateStagedIn):
				job, ok := jobs[a.JobID]
				switch {
				case !ok:
					level.Error(logger).Log("msg", "job with allocated burst buffer not found", "job_id", a.JobID)
					a.UseTime = n.Add(24 * time.Hour)
				case !job.StartTime.IsZero():
					a.EndTime = job.EndTime
					a.UseTime = job.StartTime
				default:
					a.UseTime = n.Add(time.Hour)
				}
			case a.JobID != 0:
				if job, ok := jobs[a.JobID]; ok {
					a.EndTime = job.EndTime
				}
			default:
				a.UseTime = n
			}

			if !a.EndTime.IsZero() && a.Size > 0 {
				switch {
				case !a.EndTime.After(n):
					s.NextEndTime = n
				case a.EndTime.Before(s.NextEndTime):
					s.NextEndTime = a.EndTime
				}
			}
		}
	}
}

// ReconcileGRES drops any GRES entries from alloc whose name is no longer
// present in the current config, logging each one removed. Configs are
// reloaded independently of running allocations, so a burst buffer can
// outlive the GRES type it was carved from.
func (s *State) ReconcileGRES(alloc *Allocation, logger log.Logger) {
	known := make(map[string]struct{}, len(s.Config.GRES))
	for _, g := range s.Config.GRES {
		known[g.Name] = struct{}{}
	}

	kept := alloc.GRES[:0]

	for _, g := range alloc.GRES {
		if _, ok := known[g.Name]; ok {
			kept = append(kept, g)
			continue
		}

		level.Info(logger).Log("msg", "dropping stale gres entry from allocation", "job_id", alloc.JobID, "gres", g.Name)
	}

	alloc.GRES = kept
}

// WouldExceedLimit reports whether allocating size more space for userID
// would exceed the configured JobSizeLimit or UserSizeLimit. A zero limit
// means unlimited.
func (s *State) WouldExceedLimit(userID, size uint32) bool {
	if s.Config.JobSizeLimit > 0 && size > s.Config.JobSizeLimit {
		return true
	}

	if s.Config.UserSizeLimit > 0 {
		user := s.FindUserRec(userID)
		if user.Size+size > s.Config.UserSizeLimit {
			return true
		}
	}

	return false
}

// Allocations returns a snapshot of every allocation record across all
// hash buckets, in bucket order then chain order. Next is cleared on the
// copies since callers get the whole list flattened, not a chain to walk.
func (s *State) Allocations() []Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Allocation

	for _, head := range s.allocHash {
		for a := head; a != nil; a = a.Next {
			cp := *a
			cp.Next = nil
			out = append(out, cp)
		}
	}

	return out
}

// Users returns a snapshot of every user record across all hash buckets.
func (s *State) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []User

	for _, head := range s.userHash {
		for u := head; u != nil; u = u.Next {
			cp := *u
			cp.Next = nil
			out = append(out, cp)
		}
	}

	return out
}

// now is overridable indirection for tests that need a fixed clock; it
// defers to time.Now in production.
var now = time.Now
