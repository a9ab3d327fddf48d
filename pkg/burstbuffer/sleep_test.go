package burstbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleepReturnsAfterDeadline(t *testing.T) {
	s := NewState()
	start := time.Now()
	s.Sleep(1)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestSleepInterruptedByTerminate(t *testing.T) {
	s := NewState()

	done := make(chan struct{})
	start := time.Now()

	go func() {
		s.Sleep(30)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Terminate()

	<-done
	assert.Less(t, time.Since(start), 5*time.Second)
}
