// Package statusserver stands up the node agent's HTTP surface: a status
// dump from a StatusProvider, a health check and the Prometheus metrics
// registry, plus, when wired, POST /dispatch into the worker-pool
// scheduler and the read-only /allocs and /users bookkeeping views.
// Routing and the TLS-capable
// listener follow the same gorilla/mux + exporter-toolkit/web pairing as
// pkg/jobstats/server and pkg/collector/server.
package statusserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/exporter-toolkit/web"
)

// StatusProvider supplies the data the /status endpoint reports. The
// server package knows nothing about the agent's internals beyond this.
type StatusProvider interface {
	Status() any
}

// DispatchTarget is one node a /dispatch request should be fanned out to.
type DispatchTarget struct {
	NodeName string `json:"node_name"`
	Address  string `json:"address"`
}

// DispatchRequest is the JSON body a controller POSTs to /dispatch: a
// batch RPC and the nodes it should be sent to, mirroring agent.c's
// agent() argument shape (message type, payload, target list).
type DispatchRequest struct {
	MsgType int              `json:"msg_type"`
	Payload []byte           `json:"payload"`
	Targets []DispatchTarget `json:"targets"`
}

// DispatchResult is what /dispatch reports back once every worker has
// reached a terminal state.
type DispatchResult struct {
	Responding []string `json:"responding"`
	Failed     []string `json:"failed"`
}

// BookkeepingProvider backs the read-only /allocs and /users inspection
// routes cmd/bbctl polls, mirroring cmd/cacct's read-only queries against
// its own server. userID 0 in Allocations means "every user", matching
// pack_bufs's own uid-0-sees-all rule.
type BookkeepingProvider interface {
	Allocations(userID uint32) any
	Users() any
}

// Dispatcher is the seam between this HTTP surface and the worker-pool
// scheduler: it fans req out to its targets and reconciles the outcome
// into the controller's node table before returning. The server package
// knows nothing about agent.Dispatch/agent.Reconcile beyond this.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)
}

// Config configures Server.
type Config struct {
	Logger        log.Logger
	ListenAddress string
	WebConfigFile string
	Status        StatusProvider

	// Dispatcher wires POST /dispatch. Left nil, /dispatch is not
	// registered — useful for tests that only care about the read-only
	// surface.
	Dispatcher Dispatcher

	// Bookkeeping wires GET /allocs and GET /users. Left nil, neither
	// route is registered.
	Bookkeeping BookkeepingProvider
}

// Server is the node agent's status/metrics HTTP surface.
type Server struct {
	logger    log.Logger
	server    *http.Server
	webConfig *web.FlagConfig
}

// New builds a Server from cfg, wiring /status, /healthz and /metrics,
// plus /dispatch when cfg.Dispatcher is set and /allocs and /users when
// cfg.Bookkeeping is set. /status is rate-limited per client IP: it's
// meant for an occasional controller poll, not a tight loop.
func New(cfg Config) *Server {
	router := mux.NewRouter()

	statusHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(cfg.Status.Status()); err != nil {
			level.Error(cfg.Logger).Log("msg", "failed to encode status response", "err", err)
		}
	})

	router.Handle("/status", httprate.LimitByIP(10, time.Minute)(statusHandler)).Methods(http.MethodGet)

	if cfg.Dispatcher != nil {
		router.HandleFunc("/dispatch", func(w http.ResponseWriter, r *http.Request) {
			var req DispatchRequest

			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "malformed dispatch request", http.StatusBadRequest)
				return
			}

			result, err := cfg.Dispatcher.Dispatch(r.Context(), req)
			if err != nil {
				level.Error(cfg.Logger).Log("msg", "dispatch failed", "err", err)
				http.Error(w, err.Error(), http.StatusBadRequest)

				return
			}

			w.Header().Set("Content-Type", "application/json")

			if err := json.NewEncoder(w).Encode(result); err != nil {
				level.Error(cfg.Logger).Log("msg", "failed to encode dispatch response", "err", err)
			}
		}).Methods(http.MethodPost)
	}

	if cfg.Bookkeeping != nil {
		router.HandleFunc("/allocs", func(w http.ResponseWriter, r *http.Request) {
			var userID uint64

			if raw := r.URL.Query().Get("user"); raw != "" {
				var err error

				userID, err = strconv.ParseUint(raw, 10, 32)
				if err != nil {
					http.Error(w, "invalid user query parameter", http.StatusBadRequest)
					return
				}
			}

			w.Header().Set("Content-Type", "application/json")

			if err := json.NewEncoder(w).Encode(cfg.Bookkeeping.Allocations(uint32(userID))); err != nil {
				level.Error(cfg.Logger).Log("msg", "failed to encode allocs response", "err", err)
			}
		}).Methods(http.MethodGet)

		router.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")

			if err := json.NewEncoder(w).Encode(cfg.Bookkeeping.Users()); err != nil {
				level.Error(cfg.Logger).Log("msg", "failed to encode users response", "err", err)
			}
		}).Methods(http.MethodGet)
	}

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &Server{
		logger: cfg.Logger,
		server: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           router,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
		},
		webConfig: &web.FlagConfig{
			WebListenAddresses: &[]string{cfg.ListenAddress},
			WebSystemdSocket:   new(bool),
			WebConfigFile:      &cfg.WebConfigFile,
		},
	}
}

// Start runs the server until it's shut down, returning any error other
// than a clean shutdown.
func (s *Server) Start() error {
	level.Info(s.logger).Log("msg", "starting status server", "address", s.server.Addr)

	if err := web.ListenAndServe(s.server, s.webConfig, s.logger); err != nil && err != http.ErrServerClosed {
		level.Error(s.logger).Log("msg", "status server failed", "err", err)
		return err
	}

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	level.Info(s.logger).Log("msg", "stopping status server")
	return s.server.Shutdown(ctx)
}
