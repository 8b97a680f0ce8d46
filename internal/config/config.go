// Package config defines the JSON-shaped configuration structs persisted
// by the external document store (spec §3 ProxyConfig, §6 Persisted
// config). Persistence itself (load_config/save_config) is an external
// collaborator per spec §1; this package only owns the Go-side shape and
// validation.
package config

import "fmt"

// ProxyConfig is immutable once the lifecycle manager has started (spec
// §3).
type ProxyConfig struct {
	HTTPPort        int    `json:"http_port"`
	BanchoPort      int    `json:"bancho_port,omitempty"`
	InjectSupporter bool   `json:"inject_supporter"`
	DirectBaseURL   string `json:"direct_base_url"`
	APIBaseURL      string `json:"api_base_url,omitempty"`
}

// AppConfig is the single "config" document persisted by the key/value
// store (spec §6).
type AppConfig struct {
	OsuPath         string      `json:"osu_path,omitempty"`
	StartAtBoot     bool        `json:"start_at_boot"`
	MinimizeToTray  bool        `json:"minimize_to_tray"`
	StartMinimized  bool        `json:"start_minimized"`
	DebugLogging    bool        `json:"debug_logging"`
	Proxy           ProxyConfig `json:"proxy"`
}

// Default returns the configuration used when no saved document exists
// yet.
func Default() AppConfig {
	return AppConfig{
		Proxy: ProxyConfig{
			HTTPPort:        443,
			BanchoPort:      13381,
			InjectSupporter: false,
			DirectBaseURL:   "",
		},
	}
}

// Validate reports whether the config is usable by the lifecycle manager.
func (c ProxyConfig) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", c.HTTPPort)
	}
	if c.DirectBaseURL == "" {
		return fmt.Errorf("direct_base_url must be set")
	}
	return nil
}
