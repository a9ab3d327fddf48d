package burstbuffer

import "time"

// Sleep blocks for addSeconds, or until Terminate is called, whichever
// comes first. Ported from bb_sleep's condition-timedwait-on-a-deadline
// idiom so a shutdown request interrupts a pending poll immediately
// instead of waiting out the rest of the interval.
func (s *State) Sleep(addSeconds int) {
	deadline := time.Now().Add(time.Duration(addSeconds) * time.Second)

	s.termMu.Lock()
	defer s.termMu.Unlock()

	for !s.termFlag {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}

		timer := time.AfterFunc(remaining, func() {
			s.termMu.Lock()
			s.termCond.Broadcast()
			s.termMu.Unlock()
		})

		s.termCond.Wait()
		timer.Stop()

		if time.Now().After(deadline) || time.Now().Equal(deadline) {
			return
		}
	}
}

// Terminate wakes any goroutine blocked in Sleep and causes future Sleep
// calls to return immediately.
func (s *State) Terminate() {
	s.termMu.Lock()
	s.termFlag = true
	s.termCond.Broadcast()
	s.termMu.Unlock()
}
