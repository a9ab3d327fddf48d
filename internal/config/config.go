// Package config defines the node agent daemon's own YAML configuration,
// loaded with the same internal/common.MakeConfig generic the rest of the
// codebase uses for its config files.
package config

import "github.com/ctld/nodeagent/internal/common"

// AgentConfig is nodeagentd's top-level config file.
type AgentConfig struct {
	ThreadCount           int    `yaml:"thread_count"`
	CommandTimeoutSeconds int    `yaml:"command_timeout_seconds"`
	WatchdogPollSeconds   int    `yaml:"watchdog_poll_seconds"`
	ListenAddress         string `yaml:"listen_address"`
	WebConfigFile         string `yaml:"web_config_file"`
	LogLevel              string `yaml:"log_level"`
	BurstBufferType       string `yaml:"burst_buffer_type"`
}

// DefaultAgentConfig returns an AgentConfig with the same defaults
// nodeagentd falls back to when no file is given.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		ThreadCount:           10,
		CommandTimeoutSeconds: 30,
		WatchdogPollSeconds:   2,
		ListenAddress:         ":8080",
		LogLevel:              "info",
		BurstBufferType:       "generic",
	}
}

// Load reads an AgentConfig from path, or returns the defaults unchanged
// if path is empty.
func Load(path string) (AgentConfig, error) {
	cfg := DefaultAgentConfig()

	if path == "" {
		return cfg, nil
	}

	loaded, err := common.MakeConfig[AgentConfig](path)
	if err != nil {
		return cfg, err
	}

	return *loaded, nil
}
