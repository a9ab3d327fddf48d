// Package runscript implements the scoped-subprocess runner: fork/exec a
// helper program under a wall-clock deadline, capture its stdout, and kill
// its whole process group if it overruns.
//
// Nicked from the exec-with-timeout idiom in internal/helpers and
// internal/osexec, generalized to the process-group-kill and
// fire-and-forget semantics burst_buffer_common.c's run_script needs.
package runscript

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sys/unix"
)

// Async is the max_wait value that requests fire-and-forget execution: no
// stdout is captured and Run returns nil immediately.
const Async = -1

const growThreshold = 1024

// growingBuffer accumulates a reader's output, doubling its backing array
// whenever fewer than growThreshold bytes of headroom remain, mirroring the
// geometric-growth read loop of the original scoped-subprocess runner.
func growingBuffer(r io.Reader) []byte {
	buf := make([]byte, 4096)
	n := 0

	for {
		if len(buf)-n < growThreshold {
			grown := make([]byte, len(buf)*2)
			copy(grown, buf[:n])
			buf = grown
		}

		m, err := r.Read(buf[n:])
		n += m

		if err != nil || m == 0 {
			break
		}
	}

	return buf[:n]
}

// killProcessGroup sends SIGKILL to the whole process group led by p, so a
// timed-out script never leaves children behind. Reaping is left to the
// caller's cmd.Wait.
func killProcessGroup(p *os.Process) {
	if p == nil {
		return
	}

	_ = unix.Kill(-p.Pid, unix.SIGKILL)
}

// Run executes path with argv under a wall-clock deadline of maxWaitSeconds
// and returns its captured stdout, or nil on any failure. tag identifies the
// caller in log lines. When maxWaitSeconds is Async the child is detached
// into its own session (the closest a fork/exec-based runtime gets to
// re-parenting onto init) and Run returns nil immediately without capturing
// output; the child is still reaped in the background so it never zombies.
func Run(tag, path string, argv []string, maxWaitSeconds int, env []string, logger log.Logger) []byte {
	if !filepath.IsAbs(path) {
		level.Error(logger).Log("msg", "script path is not absolute", "tag", tag, "path", path)
		return nil
	}

	fi, err := os.Stat(path)
	if err != nil {
		level.Error(logger).Log("msg", "script not found", "tag", tag, "path", path, "err", err)
		return nil
	}

	if fi.IsDir() || fi.Mode()&0o111 == 0 {
		level.Error(logger).Log("msg", "script is not executable", "tag", tag, "path", path)
		return nil
	}

	if maxWaitSeconds == Async {
		runAsync(tag, path, argv, env, logger)
		return nil
	}

	return runSync(tag, path, argv, maxWaitSeconds, env, logger)
}

// newCmd builds the command for path. argv is the whole argument vector,
// argv[0] (the program name) included.
func newCmd(path string, argv []string, env []string) *exec.Cmd {
	cmd := exec.Command(path)
	if len(argv) > 0 {
		cmd.Args = argv
	}

	if env != nil {
		cmd.Env = append(os.Environ(), env...)
	}

	return cmd
}

func runAsync(tag, path string, argv []string, env []string, logger log.Logger) {
	cmd := newCmd(path, argv, env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		level.Error(logger).Log("msg", "failed to start async script", "tag", tag, "path", path, "err", err)
		return
	}

	level.Debug(logger).Log("msg", "started async script", "tag", tag, "path", path, "pid", cmd.Process.Pid)

	go func() {
		// Reap in the background so the detached child never zombies. We
		// deliberately do not wait on this from Run: async means fire and
		// forget.
		_ = cmd.Wait()
	}()
}

func runSync(tag, path string, argv []string, maxWaitSeconds int, env []string, logger log.Logger) []byte {
	cmd := newCmd(path, argv, env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		level.Error(logger).Log("msg", "failed to open stdout pipe", "tag", tag, "path", path, "err", err)
		return nil
	}

	if err := cmd.Start(); err != nil {
		level.Error(logger).Log("msg", "failed to start script", "tag", tag, "path", path, "err", err)
		return nil
	}

	done := make(chan []byte, 1)

	go func() {
		done <- growingBuffer(stdout)
	}()

	deadline := time.Duration(maxWaitSeconds) * time.Second

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var out []byte

	select {
	case out = <-done:
	case <-timer.C:
		level.Warn(logger).Log("msg", "script timed out", "tag", tag, "path", path, "timeout_s", maxWaitSeconds)
		killProcessGroup(cmd.Process)
		// The pipe closes once the process group is dead, so the reader
		// goroutine is guaranteed to unblock; a timed-out run returns nil.
		<-done
	}

	// Always kill the group and reap, even on the success path: a
	// misbehaving script may have left grandchildren running past its own
	// exit.
	killProcessGroup(cmd.Process)

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			level.Debug(logger).Log("msg", "script wait error", "tag", tag, "path", path, "err", err)
		}
	}

	return out
}
