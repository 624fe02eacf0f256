package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/config"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/host"
)

// hostctl config.toml key mapping to host runtime settings.
type fileConfig struct {
	ID              string   `toml:"id"`
	Addr            string   `toml:"addr"`
	GrantsPath      string   `toml:"grants_path"`
	OriginPatterns  []string `toml:"origin_patterns"`
	CorsOrigins     []string `toml:"cors_origins"`
	Token           string   `toml:"token"`
	TLSCertFile     string   `toml:"tls_cert_file"`
	TLSKeyFile      string   `toml:"tls_key_file"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
}

// hostctl loader for TOML config with default overlay. The grants file is
// resolved relative to the config file.
func loadServiceConfig(path string) (host.ServiceConfig, config.GrantsConfig, error) {
	cfg := host.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return host.ServiceConfig{}, config.GrantsConfig{}, fmt.Errorf("load host config: %w", err)
	}

	if meta.IsDefined("id") {
		cfg.ID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("origin_patterns") {
		cfg.OriginPatterns = trimAll(raw.OriginPatterns)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = trimAll(raw.CorsOrigins)
	}
	if meta.IsDefined("token") {
		cfg.Token = strings.TrimSpace(raw.Token)
	}
	if meta.IsDefined("tls_cert_file") {
		cfg.TLSCertFile = strings.TrimSpace(raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		cfg.TLSKeyFile = strings.TrimSpace(raw.TLSKeyFile)
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return host.ServiceConfig{}, config.GrantsConfig{}, fmt.Errorf(
			"load host config: tls_cert_file and tls_key_file must be set together",
		)
	}
	if meta.IsDefined("shutdown_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ShutdownTimeout))
		if err != nil || d <= 0 {
			return host.ServiceConfig{}, config.GrantsConfig{}, fmt.Errorf(
				"load host config: invalid shutdown_timeout %q",
				raw.ShutdownTimeout,
			)
		}
		cfg.ShutdownTimeout = d
	}
	if cfg.ListenAddr == "" {
		return host.ServiceConfig{}, config.GrantsConfig{}, fmt.Errorf("load host config: addr is required")
	}

	grantsPath := strings.TrimSpace(raw.GrantsPath)
	if grantsPath == "" {
		return cfg, config.GrantsConfig{}, nil
	}
	if !filepath.IsAbs(grantsPath) {
		grantsPath = filepath.Join(filepath.Dir(path), grantsPath)
	}
	if _, err := os.Stat(grantsPath); err != nil {
		return host.ServiceConfig{}, config.GrantsConfig{}, fmt.Errorf(
			"load host config: grants path %q: %w",
			raw.GrantsPath,
			err,
		)
	}
	grants, err := config.LoadGrantsConfig(grantsPath)
	if err != nil {
		return host.ServiceConfig{}, config.GrantsConfig{}, fmt.Errorf("load host config: %w", err)
	}
	return cfg, grants, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		if v := strings.TrimSpace(raw); v != "" {
			out = append(out, v)
		}
	}
	return out
}
