package burstbuffer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ctld/nodeagent/pkg/burstbuffer/size"
)

// searchPaths lists the directories searched, in order, for a burst
// buffer config file. Mirrors get_extra_conf_path's search of the
// Slurm config directory; generalized here to also check the working
// directory and /etc, since this agent has no installed-prefix
// convention of its own.
var searchPaths = []string{".", "/etc/nodeagent", "/etc/slurm"}

// LoadConfig finds and parses the burst-buffer config file for the given
// plugin type. It first looks for "burst_buffer.conf" on the search path,
// then falls back to "burst_buffer_<type>.conf". The file format is flat
// Key = Value lines, one setting per line, '#' starts a comment; no
// existing pack library models this particular format, so it's parsed
// directly rather than forced through a generic syntax.
func LoadConfig(pluginType string, logger log.Logger) (*Config, error) {
	path, err := findConfigFile("burst_buffer.conf")
	if err != nil {
		path, err = findConfigFile(fmt.Sprintf("burst_buffer_%s.conf", pluginType))
		if err != nil {
			return nil, fmt.Errorf("unable to find burst_buffer.conf or burst_buffer_%s.conf: %w", pluginType, err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Granularity: 1}

	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		applyConfigKey(cfg, strings.TrimSpace(key), strings.TrimSpace(value), logger)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if cfg.Granularity == 0 {
		level.Error(logger).Log("msg", "Granularity=0 is invalid")
		cfg.Granularity = 1
	}

	if cfg.PrioBoostAlloc > NiceOffset {
		level.Error(logger).Log("msg", "PrioBoostAlloc can not exceed ceiling", "ceiling", NiceOffset)
		cfg.PrioBoostAlloc = NiceOffset
	}

	if cfg.PrioBoostUse > NiceOffset {
		level.Error(logger).Log("msg", "PrioBoostUse can not exceed ceiling", "ceiling", NiceOffset)
		cfg.PrioBoostUse = NiceOffset
	}

	logConfig(cfg, logger)

	return cfg, nil
}

func findConfigFile(name string) (string, error) {
	for _, dir := range searchPaths {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s not found on search path", name)
}

func applyConfigKey(cfg *Config, key, value string, logger log.Logger) {
	switch key {
	case "AllowUsers":
		cfg.AllowUsersStr = value
		cfg.AllowUsers = size.ParseUsers(value, logger)
	case "DenyUsers":
		cfg.DenyUsersStr = value
		cfg.DenyUsers = size.ParseUsers(value, logger)
	case "GetSysState":
		cfg.GetSysState = value
	case "Granularity":
		cfg.Granularity = size.ParseSize(value, 1)
	case "Gres":
		cfg.GRES = parseGRESList(value)
	case "JobSizeLimit":
		cfg.JobSizeLimit = size.ParseSize(value, 1)
	case "PrioBoostAlloc":
		cfg.PrioBoostAlloc = parseUint32(value)
	case "PrioBoostUse":
		cfg.PrioBoostUse = parseUint32(value)
	case "PrivateData":
		v := strings.ToLower(value)
		cfg.PrivateData = v == "true" || v == "yes" || v == "1"
	case "StageInTimeout":
		cfg.StageInTimeout = parseUint32(value)
	case "StageOutTimeout":
		cfg.StageOutTimeout = parseUint32(value)
	case "StartStageIn":
		cfg.StartStageIn = value
	case "StartStageOut":
		cfg.StartStageOut = value
	case "StopStageIn":
		cfg.StopStageIn = value
	case "StopStageOut":
		cfg.StopStageOut = value
	case "UserSizeLimit":
		cfg.UserSizeLimit = size.ParseSize(value, 1)
	case "DebugFlag":
		cfg.DebugFlag = strings.EqualFold(value, "true")
	}
}

// parseGRESList parses a comma-delimited "name[:count]" list, defaulting
// to a count of 1 when no count is given.
func parseGRESList(value string) []GRES {
	var entries []GRES

	for _, tok := range strings.Split(value, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		name, countTok, hasCount := strings.Cut(tok, ":")

		count := uint32(1)
		if hasCount {
			count = size.Atoi(countTok)
		}

		entries = append(entries, GRES{Name: name, AvailCnt: count})
	}

	return entries
}

func parseUint32(value string) uint32 {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0
	}

	return uint32(n)
}

func logConfig(cfg *Config, logger log.Logger) {
	if !cfg.DebugFlag {
		return
	}

	level.Info(logger).Log("msg", "burst buffer config loaded",
		"allow_users", cfg.AllowUsersStr,
		"deny_users", cfg.DenyUsersStr,
		"get_sys_state", cfg.GetSysState,
		"granularity", cfg.Granularity,
		"job_size_limit", cfg.JobSizeLimit,
		"prio_boost_alloc", cfg.PrioBoostAlloc,
		"prio_boost_use", cfg.PrioBoostUse,
		"stage_in_timeout", cfg.StageInTimeout,
		"stage_out_timeout", cfg.StageOutTimeout,
		"user_size_limit", cfg.UserSizeLimit,
	)

	for _, g := range cfg.GRES {
		level.Info(logger).Log("msg", "burst buffer gres", "name", g.Name, "avail_cnt", g.AvailCnt)
	}
}

// ClearConfig resets cfg to its zero state with Granularity 1. When fini
// is true this is a final shutdown reset and nothing is kept. Otherwise
// the allow/deny user lists, GetSysState and the stage scripts are left in
// place so a reload doesn't have to rediscover paths it already knows, and
// each GRES entry keeps its name with its counts zeroed.
func ClearConfig(cfg *Config, fini bool) {
	allowUsers, denyUsers := cfg.AllowUsers, cfg.DenyUsers
	allowUsersStr, denyUsersStr := cfg.AllowUsersStr, cfg.DenyUsersStr
	getSysState, startIn, startOut, stopIn, stopOut := cfg.GetSysState, cfg.StartStageIn, cfg.StartStageOut, cfg.StopStageIn, cfg.StopStageOut
	gres := cfg.GRES

	*cfg = Config{Granularity: 1}

	if !fini {
		cfg.AllowUsers = allowUsers
		cfg.DenyUsers = denyUsers
		cfg.AllowUsersStr = allowUsersStr
		cfg.DenyUsersStr = denyUsersStr
		cfg.GetSysState = getSysState
		cfg.StartStageIn = startIn
		cfg.StartStageOut = startOut
		cfg.StopStageIn = stopIn
		cfg.StopStageOut = stopOut

		for _, g := range gres {
			cfg.GRES = append(cfg.GRES, GRES{Name: g.Name})
		}
	}
}
