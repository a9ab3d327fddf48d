package agent

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ctld/nodeagent/pkg/agent/transport"
)

// workerOutcome is what runWorker learned about one target. It carries no
// pointer into the shared worker-record array: the caller applies it under
// sc.mu, the same way agent.c's thread_per_node_rpc re-takes the scheduler
// mutex before storing its terminal state.
type workerOutcome struct {
	state WorkerState
	delta time.Duration
}

// runWorker carries out one target's RPC and reports its outcome. ctx is
// the watchdog's to cancel: once the command timeout elapses the watchdog
// cancels it, which the transport turns into a connection deadline,
// unblocking the Call the same way SIGALRM unblocks a stuck
// connect()/select() in the original. runWorker touches no shared state
// itself; classification mirrors §4.6 exactly: a transport error, a
// non-RESPONSE_SLURM_RC reply, or a non-zero return code are all FAILED,
// and only a zero-rc RESPONSE_SLURM_RC reply is DONE.
func runWorker(ctx context.Context, target Target, req Request, tr transport.Transport, logger log.Logger) workerOutcome {
	start := time.Now()

	resp, err := tr.Call(ctx, target.Address, transport.Envelope{
		MsgType: int(req.MsgType),
		Payload: req.Payload,
	})

	delta := time.Since(start)

	if err != nil {
		level.Error(logger).Log("msg", "rpc to node failed", "node", target.NodeName, "err", err)
		return workerOutcome{state: WorkerFailed, delta: delta}
	}

	if resp.MsgType != int(MsgResponseSlurmRC) {
		level.Error(logger).Log("msg", "unexpected response msg type", "node", target.NodeName, "msg_type", resp.MsgType)
		return workerOutcome{state: WorkerFailed, delta: delta}
	}

	if resp.ReturnCode != 0 {
		level.Error(logger).Log("msg", "node returned non-zero rc", "node", target.NodeName, "rc", resp.ReturnCode)
		return workerOutcome{state: WorkerFailed, delta: delta}
	}

	level.Debug(logger).Log("msg", "rpc to node succeeded", "node", target.NodeName)

	return workerOutcome{state: WorkerDone, delta: delta}
}
