// Command nodeagentd is the node agent daemon: it serves the status,
// dispatch and bookkeeping-inspection HTTP surface, keeps the
// burst-buffer bookkeeping state current, and drives the worker-pool
// dispatcher on the controller's behalf whenever a POST /dispatch
// arrives (see internal/statusserver for the route definitions).
//
// Structured the way pkg/jobstats/cli.go structures its own daemon: a
// kingpin app, a background ticker goroutine, an HTTP server goroutine,
// and a signal.NotifyContext-driven graceful shutdown joined on a
// WaitGroup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/version"

	"github.com/ctld/nodeagent/internal/config"
	"github.com/ctld/nodeagent/internal/runtime"
	"github.com/ctld/nodeagent/internal/statusserver"
	"github.com/ctld/nodeagent/pkg/agent"
	"github.com/ctld/nodeagent/pkg/agent/statuscache"
	"github.com/ctld/nodeagent/pkg/agent/transport"
	"github.com/ctld/nodeagent/pkg/burstbuffer"
)

const appName = "nodeagentd"

var app = kingpin.New(appName, "Parallel RPC dispatch agent with burst-buffer bookkeeping.").UsageWriter(os.Stdout)

func main() {
	var (
		configFile = app.Flag("config.file", "Path to nodeagentd's own YAML config file.").Default("").String()
		listenAddr = app.Flag("web.listen-address", "Address to expose /status, /healthz and /metrics on.").Default("").String()
		webConfig  = app.Flag("web.config.file", "TLS/auth config file for the status server.").Default("").String()
		logLevel   = app.Flag("log.level", "Minimum log level: debug, info, warn, error.").Default("").String()
		bbType     = app.Flag("burst-buffer.type", "Burst buffer plugin type, selects burst_buffer_<type>.conf.").Default("").String()
	)

	app.Version(version.Print(appName))
	app.HelpFlag.Short('h')

	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse CLI flags: %s\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
		os.Exit(1)
	}

	if *listenAddr != "" {
		cfg.ListenAddress = *listenAddr
	}

	if *webConfig != "" {
		cfg.WebConfigFile = *webConfig
	}

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if *bbType != "" {
		cfg.BurstBufferType = *bbType
	}

	logger := newLogger(cfg.LogLevel)

	level.Info(logger).Log("msg", "starting "+appName, "version", version.Info())
	level.Info(logger).Log("msg", "build context", "build_context", version.BuildContext())
	level.Info(logger).Log("msg", "uname", "uname", runtime.Uname())
	level.Info(logger).Log("msg", "fd limits", "fd_limits", runtime.FdLimits())

	bbCfg, err := burstbuffer.LoadConfig(cfg.BurstBufferType, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load burst buffer config", "err", err)
		os.Exit(1)
	}

	state := burstbuffer.NewState()
	state.Config = *bbCfg

	cache := statuscache.New(5 * time.Minute)
	defer cache.Stop()

	nodeTable := agent.NewInMemoryNodeTable()

	dispatcher := &dispatchAdapter{
		opts: agent.Options{
			ThreadCount:    cfg.ThreadCount,
			CommandTimeout: time.Duration(cfg.CommandTimeoutSeconds) * time.Second,
			WatchdogPoll:   time.Duration(cfg.WatchdogPollSeconds) * time.Second,
			Transport:      transport.GobTransport{DialTimeout: 5 * time.Second},
		},
		nodeTable: nodeTable,
		locks:     agent.NoopLockManager{},
		cache:     cache,
		logger:    logger,
	}

	status := &statusProvider{state: state, nodeTable: nodeTable}
	server := statusserver.New(statusserver.Config{
		Logger:        logger,
		ListenAddress: cfg.ListenAddress,
		WebConfigFile: cfg.WebConfigFile,
		Status:        status,
		Dispatcher:    dispatcher,
		Bookkeeping:   &bookkeepingProvider{state: state},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{}, 2)

	go func() {
		if err := server.Start(); err != nil {
			level.Error(logger).Log("msg", "status server exited with error", "err", err)
		}

		done <- struct{}{}
	}()

	go runBookkeepingLoop(ctx, state, time.Duration(cfg.WatchdogPollSeconds)*time.Second, logger, done)

	<-ctx.Done()
	stop()
	level.Info(logger).Log("msg", "shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state.Terminate()

	if err := server.Shutdown(shutdownCtx); err != nil {
		level.Error(logger).Log("msg", "failed to shut down status server cleanly", "err", err)
	}

	<-done
	<-done

	level.Info(logger).Log("msg", "see you next time")
}

// runBookkeepingLoop periodically recomputes burst-buffer use-time
// estimates, waiting interval between passes and returning as soon as ctx
// is cancelled, mirroring the teacher daemon's ticker-plus-ctx.Done select
// loop.
func runBookkeepingLoop(ctx context.Context, state *burstbuffer.State, interval time.Duration, logger log.Logger, done chan<- struct{}) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for {
		state.Lock()
		state.SetUseTime(map[uint32]burstbuffer.Job{}, logger)
		state.Unlock()

		select {
		case <-ctx.Done():
			done <- struct{}{}
			return
		case <-time.After(interval):
		}
	}
}

type statusProvider struct {
	state     *burstbuffer.State
	nodeTable *agent.InMemoryNodeTable
}

func (s *statusProvider) Status() any {
	s.state.Lock()
	usedSpace, totalSpace := s.state.UsedSpace, s.state.TotalSpace
	s.state.Unlock()

	lastSeen, notResponding := s.nodeTable.Snapshot()

	return map[string]any{
		"used_space":         usedSpace,
		"total_space":        totalSpace,
		"nodes_last_seen":    lastSeen,
		"nodes_not_responding": notResponding,
	}
}

// bookkeepingProvider backs internal/statusserver's /allocs and /users
// routes off the daemon's live burst-buffer state.
type bookkeepingProvider struct {
	state *burstbuffer.State
}

func (b *bookkeepingProvider) Allocations(userID uint32) any {
	all := b.state.Allocations()

	if userID == 0 {
		return all
	}

	filtered := make([]burstbuffer.Allocation, 0, len(all))

	for _, a := range all {
		if a.UserID == userID {
			filtered = append(filtered, a)
		}
	}

	return filtered
}

func (b *bookkeepingProvider) Users() any {
	return b.state.Users()
}

// dispatchAdapter is the seam between internal/statusserver's /dispatch
// route and the worker-pool scheduler: it turns the wire-level request
// into an agent.Dispatch call and folds the result into the daemon's
// in-memory node table, the same reconciliation wdog performs at the
// end of a poll (agent.Reconcile).
type dispatchAdapter struct {
	opts      agent.Options
	nodeTable *agent.InMemoryNodeTable
	locks     agent.LockManager
	cache     *statuscache.Cache
	logger    log.Logger
}

func (d *dispatchAdapter) Dispatch(ctx context.Context, req statusserver.DispatchRequest) (statusserver.DispatchResult, error) {
	targets := make([]agent.Target, len(req.Targets))
	for i, t := range req.Targets {
		targets[i] = agent.Target{NodeName: t.NodeName, Address: t.Address}
	}

	result, err := agent.Dispatch(ctx, targets, agent.Request{
		MsgType: agent.MessageType(req.MsgType),
		Payload: req.Payload,
	}, d.opts, d.logger)
	if err != nil {
		return statusserver.DispatchResult{}, err
	}

	d.logDuplicates(result)

	agent.Reconcile(result, d.nodeTable, d.locks)

	for _, name := range result.Responding {
		d.cache.Record(name, false)
	}

	for _, name := range result.Failed {
		d.cache.Record(name, true)
	}

	return statusserver.DispatchResult{Responding: result.Responding, Failed: result.Failed}, nil
}

// logDuplicates consults the cache purely to decide whether this outcome
// repeats the last one seen within the cache's TTL, emitting a debug line
// when it does. The cache is read-through, not authoritative: it never
// changes which nodes get reconciled as responding or failed.
func (d *dispatchAdapter) logDuplicates(result *agent.Result) {
	check := func(name string, failed bool) {
		prior, ok := d.cache.Get(name)
		if ok && prior.Failed == failed {
			level.Debug(d.logger).Log("msg", "duplicate dispatch outcome within TTL", "node", name, "failed", failed)
		}
	}

	for _, name := range result.Responding {
		check(name, false)
	}

	for _, name := range result.Failed {
		check(name, true)
	}
}

func newLogger(levelName string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var opt level.Option

	switch levelName {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}

	return level.NewFilter(logger, opt)
}
