package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/uom-assistant/uoma-plugin-sdk/bridge/wsbridge"
	"github.com/uom-assistant/uoma-plugin-sdk/plugin"
)

// pluginctl config.toml key mapping to bridge and client settings.
type fileConfig struct {
	ID                 string `toml:"id"`
	URL                string `toml:"url"`
	Origin             string `toml:"origin"`
	Token              string `toml:"token"`
	CAFile             string `toml:"ca_file"`
	CheckTimeout       string `toml:"check_timeout"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
}

type runtimeConfig struct {
	PluginID string
	Bridge   wsbridge.Config
	Client   plugin.Config
}

const defaultBridgeURL = "ws://localhost:7300/bridge"

func defaultRuntimeConfig() runtimeConfig {
	bridgeCfg := wsbridge.DefaultConfig()
	bridgeCfg.URL = defaultBridgeURL
	return runtimeConfig{
		PluginID: "plugin-" + uuid.NewString()[:8],
		Bridge:   bridgeCfg,
		Client:   plugin.DefaultConfig(),
	}
}

// pluginctl loader for TOML config with default overlay. An empty path
// yields the defaults.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load plugin config: %w", err)
	}

	if meta.IsDefined("id") {
		cfg.PluginID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("url") {
		cfg.Bridge.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("origin") {
		cfg.Bridge.Origin = strings.TrimSpace(raw.Origin)
	}
	if meta.IsDefined("token") {
		cfg.Bridge.Token = strings.TrimSpace(raw.Token)
	}
	if meta.IsDefined("ca_file") {
		cfg.Bridge.CAFile = strings.TrimSpace(raw.CAFile)
	}
	if meta.IsDefined("max_connect_attempts") {
		if raw.MaxConnectAttempts < 0 {
			return runtimeConfig{}, fmt.Errorf("load plugin config: max_connect_attempts must be >= 0")
		}
		cfg.Bridge.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("check_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.CheckTimeout))
		if err != nil || d <= 0 {
			return runtimeConfig{}, fmt.Errorf("load plugin config: invalid check_timeout %q", raw.CheckTimeout)
		}
		cfg.Client.CheckTimeout = d
	}

	if cfg.Bridge.URL == "" {
		return runtimeConfig{}, fmt.Errorf("load plugin config: url is required")
	}
	return cfg, nil
}
