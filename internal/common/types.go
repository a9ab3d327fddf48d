package common

// WebConfig carries the flags needed to stand up the status server's
// TLS-capable listener via exporter-toolkit.
type WebConfig struct {
	ListenAddress string `yaml:"listen_address"`
	ConfigFile    string `yaml:"web_config_file"`
}
