// Package common provides general utility helper functions and types shared
// by the agent and the burst-buffer bookkeeping subsystem.
package common

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// GetUUIDFromString returns a UUID whose 16 bytes are the xxh3 128-bit hash
// of the comma-joined strings (no UUID version bits are set). Used to mint
// a stable correlation ID for an agent request from its message type and
// target list.
func GetUUIDFromString(stringSlice []string) (string, error) {
	s := strings.Join(stringSlice, ",")
	h := xxh3.HashString128(s).Bytes()
	id, err := uuid.FromBytes(h[:])

	return id.String(), err
}

// Round returns a value less than or equal to value that is a multiple of nearest.
func Round(value int64, nearest int64) int64 {
	return (value / nearest) * nearest
}

// TimeTrack logs the elapsed execution time of a function.
func TimeTrack(start time.Time, name string, logger log.Logger) {
	level.Debug(logger).Log("msg", name, "elapsed_time", time.Since(start))
}

// MakeConfig reads a YAML config file into a freshly allocated T.
func MakeConfig[T any](filePath string) (*T, error) {
	config := new(T)

	if filePath == "" {
		return config, errors.New("config file path missing")
	}

	configFile, err := os.ReadFile(filePath)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(configFile, config); err != nil {
		return config, err
	}

	return config, nil
}

// GetFreePort returns a currently unused TCP port along with the listener
// bound to it. Closing the listener is the caller's responsibility, which
// guarantees that concurrent callers requesting a free port don't race each
// other onto the same port.
func GetFreePort() (int, *net.TCPListener, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, nil, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, nil, err
	}

	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, nil, errors.New("failed type assertion")
	}

	return tcpAddr.Port, l, nil
}

func startsOrEndsWithQuote(s string) bool {
	return strings.HasPrefix(s, "\"") || strings.HasPrefix(s, "'") ||
		strings.HasSuffix(s, "\"") || strings.HasSuffix(s, "'")
}

// ComputeExternalURL computes a sanitized external URL from a raw input. It
// infers unset URL parts from the OS and the given listen address.
func ComputeExternalURL(u, listenAddr string) (*url.URL, error) {
	if u == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, err
		}

		_, port, err := net.SplitHostPort(listenAddr)
		if err != nil {
			return nil, err
		}

		u = fmt.Sprintf("http://%s/", net.JoinHostPort(hostname, port))
	}

	if startsOrEndsWithQuote(u) {
		return nil, errors.New("URL must not begin or end with quotes")
	}

	eu, err := url.Parse(u)
	if err != nil {
		return nil, err
	}

	ppref := strings.TrimRight(eu.Path, "/")
	if ppref != "" && !strings.HasPrefix(ppref, "/") {
		ppref = "/" + ppref
	}

	eu.Path = ppref

	return eu, nil
}
