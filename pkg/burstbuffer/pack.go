package burstbuffer

import (
	"bytes"
	"encoding/binary"
	"time"
)

// packString writes a length-prefixed string: a uint32 byte count
// followed by the raw bytes, matching the controller's string-packing
// convention used throughout its status RPCs.
func packString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

func packUint32(buf *bytes.Buffer, v uint32) {
	_ = binary.Write(buf, binary.BigEndian, v)
}

func packUint16(buf *bytes.Buffer, v uint16) {
	_ = binary.Write(buf, binary.BigEndian, v)
}

func packTime(buf *bytes.Buffer, t time.Time) {
	packUint32(buf, uint32(t.Unix()))
}

// PackBufs serializes every allocation record visible to uid (all of them
// if uid is 0) into buf, in the exact field order the status RPC expects:
// array_job_id, array_task_id, gres_cnt, gres entries (name, avail_cnt,
// used_cnt), job_id, name, size, state, state_time, user_id. It returns
// the number of records written.
func (s *State) PackBufs(uid uint32, buf *bytes.Buffer) int {
	count := 0

	for _, head := range s.allocHash {
		for a := head; a != nil; a = a.Next {
			if uid != 0 && uid != a.UserID {
				continue
			}

			packUint32(buf, a.ArrayJobID)
			packUint32(buf, a.ArrayTaskID)
			packUint32(buf, uint32(len(a.GRES)))

			for _, g := range a.GRES {
				packString(buf, g.Name)
				packUint32(buf, g.AvailCnt)
				packUint32(buf, g.UsedCnt)
			}

			packUint32(buf, a.JobID)
			packString(buf, a.Name)
			packUint32(buf, a.Size)
			packUint16(buf, uint16(a.State))
			packTime(buf, a.StateTime)
			packUint32(buf, a.UserID)

			count++
		}
	}

	return count
}

// PackState serializes the current configuration and aggregate space
// counters into buf, in the same field order the status RPC's state dump
// uses.
func (s *State) PackState(buf *bytes.Buffer) {
	cfg := &s.Config

	packString(buf, cfg.AllowUsersStr)
	packString(buf, cfg.DenyUsersStr)
	packString(buf, cfg.GetSysState)
	packUint32(buf, cfg.Granularity)
	packUint32(buf, uint32(len(cfg.GRES)))

	for _, g := range cfg.GRES {
		packString(buf, g.Name)
		packUint32(buf, g.AvailCnt)
		packUint32(buf, g.UsedCnt)
	}

	boolToUint16 := func(b bool) uint16 {
		if b {
			return 1
		}

		return 0
	}

	packUint16(buf, boolToUint16(cfg.PrivateData))
	packString(buf, cfg.StartStageIn)
	packString(buf, cfg.StartStageOut)
	packString(buf, cfg.StopStageIn)
	packString(buf, cfg.StopStageOut)
	packUint32(buf, cfg.JobSizeLimit)
	packUint32(buf, cfg.PrioBoostAlloc)
	packUint32(buf, cfg.PrioBoostUse)
	packUint32(buf, cfg.StageInTimeout)
	packUint32(buf, cfg.StageOutTimeout)
	packUint32(buf, s.TotalSpace)
	packUint32(buf, s.UsedSpace)
	packUint32(buf, cfg.UserSizeLimit)
}
