package agent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctld/nodeagent/pkg/agent/transport"
)

type fakeTransport struct {
	delay   time.Duration
	fail    map[string]bool
	calls   int32
	maxSeen int32
	inFlight int32
}

func (f *fakeTransport) Call(ctx context.Context, addr string, req transport.Envelope) (transport.Envelope, error) {
	atomic.AddInt32(&f.calls, 1)

	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	for {
		old := atomic.LoadInt32(&f.maxSeen)
		if cur <= old || atomic.CompareAndSwapInt32(&f.maxSeen, old, cur) {
			break
		}
	}

	if f.fail[addr] {
		return transport.Envelope{}, context.DeadlineExceeded
	}

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return transport.Envelope{}, ctx.Err()
	}

	return transport.Envelope{MsgType: int(MsgResponseSlurmRC), Payload: req.Payload}, nil
}

func targets(n int) []Target {
	ts := make([]Target, n)
	for i := range ts {
		ts[i] = Target{NodeName: string(rune('a' + i)), Address: string(rune('a' + i))}
	}

	return ts
}

func TestDispatchHappyFanOut(t *testing.T) {
	tr := &fakeTransport{delay: 10 * time.Millisecond}
	opts := Options{ThreadCount: 4, CommandTimeout: time.Second, WatchdogPoll: 10 * time.Millisecond, Transport: tr}

	result, err := Dispatch(context.Background(), targets(3), Request{MsgType: MsgPing}, opts, log.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, result.Responding, 3)
	assert.Empty(t, result.Failed)
}

func TestDispatchOneTargetTimesOut(t *testing.T) {
	tr := &fakeTransport{delay: 5 * time.Second}
	opts := Options{ThreadCount: 4, CommandTimeout: 50 * time.Millisecond, WatchdogPoll: 10 * time.Millisecond, Transport: tr}

	start := time.Now()
	result, err := Dispatch(context.Background(), targets(1), Request{MsgType: MsgPing}, opts, log.NewNopLogger())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, result.Responding)
	assert.Len(t, result.Failed, 1)
}

func TestDispatchSaturatesThreadCount(t *testing.T) {
	tr := &fakeTransport{delay: 80 * time.Millisecond}
	opts := Options{ThreadCount: 4, CommandTimeout: time.Second, WatchdogPoll: 10 * time.Millisecond, Transport: tr}

	result, err := Dispatch(context.Background(), targets(10), Request{MsgType: MsgPing}, opts, log.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, result.Responding, 10)
	assert.LessOrEqual(t, atomic.LoadInt32(&tr.maxSeen), int32(4))
}

func TestDispatchRejectsInvalidMessageType(t *testing.T) {
	tr := &fakeTransport{}
	opts := Options{ThreadCount: 1, CommandTimeout: time.Second, WatchdogPoll: 10 * time.Millisecond, Transport: tr}

	_, err := Dispatch(context.Background(), targets(1), Request{MsgType: MessageType(99)}, opts, log.NewNopLogger())
	assert.Error(t, err)
}

func TestDispatchRejectsNonPositiveThreadCount(t *testing.T) {
	tr := &fakeTransport{}
	opts := Options{ThreadCount: 0, CommandTimeout: time.Second, WatchdogPoll: 10 * time.Millisecond, Transport: tr}

	_, err := Dispatch(context.Background(), targets(1), Request{MsgType: MsgPing}, opts, log.NewNopLogger())
	assert.Error(t, err)
}

func TestDispatchNoTargetsIsNoop(t *testing.T) {
	tr := &fakeTransport{}
	opts := Options{ThreadCount: 1, CommandTimeout: time.Second, WatchdogPoll: 10 * time.Millisecond, Transport: tr}

	result, err := Dispatch(context.Background(), nil, Request{MsgType: MsgPing}, opts, log.NewNopLogger())
	require.NoError(t, err)
	assert.Empty(t, result.Workers)
}
