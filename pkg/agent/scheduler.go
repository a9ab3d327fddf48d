package agent

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ctld/nodeagent/internal/common"
	"github.com/ctld/nodeagent/pkg/agent/transport"
)

// Options configures one Dispatch call.
type Options struct {
	// ThreadCount caps how many workers run concurrently, the Go
	// analogue of AGENT_THREAD_COUNT.
	ThreadCount int

	// CommandTimeout is how long a worker may run before the watchdog
	// cancels it, the analogue of COMMAND_TIMEOUT.
	CommandTimeout time.Duration

	// WatchdogPoll is how often the watchdog re-scans worker state, the
	// analogue of WDOG_POLL.
	WatchdogPoll time.Duration

	Transport transport.Transport
}

// Dispatch fans req out to every target, running up to opts.ThreadCount
// workers concurrently, and blocks until every worker has finished or
// been force-cancelled by the watchdog. It mirrors agent()'s fatal
// preconditions: an unrecognized message type or a non-positive thread
// count is refused outright rather than attempted.
func Dispatch(ctx context.Context, targets []Target, req Request, opts Options, logger log.Logger) (*Result, error) {
	if !validMessageType(req.MsgType) {
		return nil, fmt.Errorf("agent: invalid message type %d", req.MsgType)
	}

	if opts.ThreadCount < 1 {
		return nil, fmt.Errorf("agent: thread count must be positive, got %d", opts.ThreadCount)
	}

	if len(targets) == 0 {
		return &Result{}, nil
	}

	ids := make([]string, 0, len(targets)+1)
	ids = append(ids, strconv.Itoa(int(req.MsgType)))

	for _, t := range targets {
		ids = append(ids, t.NodeName)
	}

	if reqID, err := common.GetUUIDFromString(ids); err == nil {
		logger = log.With(logger, "request_id", reqID)
	}

	sc := &schedulerContext{
		workers: make([]*WorkerRecord, len(targets)),
	}

	for i, t := range targets {
		sc.workers[i] = &WorkerRecord{Target: t, State: WorkerNew}
	}

	cancels := make([]context.CancelFunc, len(targets))
	var cancelsMu sync.Mutex

	var wg sync.WaitGroup

	allDone := make(chan struct{})

	go watchdog(sc, cancels, &cancelsMu, opts.WatchdogPoll, opts.CommandTimeout, allDone, logger)

	sem := make(chan struct{}, opts.ThreadCount)

	for i := range targets {
		i := i

		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			workerCtx, cancel := context.WithCancel(ctx)

			cancelsMu.Lock()
			cancels[i] = cancel
			cancelsMu.Unlock()

			sc.mu.Lock()
			sc.workers[i].State = WorkerActive
			sc.workers[i].Time = time.Now()
			sc.threadsActive++
			target := sc.workers[i].Target
			sc.mu.Unlock()

			outcome := runWorker(workerCtx, target, req, opts.Transport, logger)
			cancel()

			sc.mu.Lock()
			sc.workers[i].State = outcome.state
			sc.workers[i].Delta = outcome.delta
			sc.threadsActive--
			sc.mu.Unlock()
		}()
	}

	wg.Wait()
	close(allDone)

	return buildResult(sc), nil
}

func buildResult(sc *schedulerContext) *Result {
	workers := sc.snapshot()

	result := &Result{Workers: workers}

	for _, w := range workers {
		switch w.State {
		case WorkerDone:
			result.Responding = append(result.Responding, w.Target.NodeName)
			if w.Delta > result.MaxDelay {
				result.MaxDelay = w.Delta
			}
		case WorkerFailed:
			result.Failed = append(result.Failed, w.Target.NodeName)
		}
	}

	return result
}

// watchdog polls every worker's state at pollInterval and cancels any
// worker that has been WorkerActive for at least timeout, the Go
// equivalent of pthread_kill(SIGALRM) on a thread that's overrun
// COMMAND_TIMEOUT. It exits once allDone is closed.
func watchdog(sc *schedulerContext, cancels []context.CancelFunc, cancelsMu *sync.Mutex, pollInterval, timeout time.Duration, allDone <-chan struct{}, logger log.Logger) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-allDone:
			return
		case <-ticker.C:
			sc.mu.Lock()
			for i, w := range sc.workers {
				if w.State != WorkerActive {
					continue
				}

				if time.Since(w.Time) < timeout {
					continue
				}

				cancelsMu.Lock()
				cancel := cancels[i]
				cancelsMu.Unlock()

				if cancel != nil {
					level.Warn(logger).Log("msg", "worker exceeded command timeout, cancelling", "node", w.Target.NodeName)
					cancel()
				}
			}
			sc.mu.Unlock()
		}
	}
}
