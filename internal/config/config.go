package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"
	"github.com/uom-assistant/uoma-plugin-sdk/catalog"
)

const minPluginIDLen = 4

// GrantsConfig is the host's capability grant policy.
type GrantsConfig struct {
	// Default grants apply to every plugin.
	Default []string      `toml:"default"`
	Plugins []PluginGrant `toml:"plugins"`
}

type PluginGrant struct {
	ID     string   `toml:"id"`
	Grants []string `toml:"grants"`
	// Deny removes capabilities that Default would otherwise grant.
	Deny []string `toml:"deny"`
}

func LoadGrantsConfig(path string) (GrantsConfig, error) {
	var cfg GrantsConfig
	if err := loadToml(path, &cfg); err != nil {
		return GrantsConfig{}, err
	}
	if err := ValidateGrantsConfig(cfg); err != nil {
		return GrantsConfig{}, err
	}
	return cfg, nil
}

// ParseGrantsConfig decodes and validates an in-memory grants document.
func ParseGrantsConfig(data []byte) (GrantsConfig, error) {
	var cfg GrantsConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return GrantsConfig{}, fmt.Errorf("grants parse failed: %w", err)
	}
	if err := ValidateGrantsConfig(cfg); err != nil {
		return GrantsConfig{}, err
	}
	return cfg, nil
}

// ValidateSyntax checks that path holds well-formed TOML.
func ValidateSyntax(path string) error {
	var raw map[string]any
	return loadToml(path, &raw)
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateGrantsConfig(cfg GrantsConfig) error {
	if err := validateCapabilities(cfg.Default); err != nil {
		return fmt.Errorf("default grants invalid: %w", err)
	}
	seen := make(map[string]struct{}, len(cfg.Plugins))
	for i, p := range cfg.Plugins {
		if err := ValidatePluginGrant(p); err != nil {
			return fmt.Errorf("plugins[%d] invalid: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("plugins[%d] invalid: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

func ValidatePluginGrant(p PluginGrant) error {
	if utf8.RuneCountInString(strings.TrimSpace(p.ID)) < minPluginIDLen {
		return fmt.Errorf("id must be at least %d characters", minPluginIDLen)
	}
	if err := validateCapabilities(p.Grants); err != nil {
		return err
	}
	return validateCapabilities(p.Deny)
}

func validateCapabilities(list []string) error {
	for _, name := range list {
		if !catalog.IsValidCapability(name) {
			return fmt.Errorf("unknown capability %q", name)
		}
	}
	return nil
}

// Effective returns the sorted capabilities granted to pluginID.
func (cfg GrantsConfig) Effective(pluginID string) []string {
	set := make(map[string]struct{})
	for _, c := range cfg.Default {
		set[c] = struct{}{}
	}
	for _, p := range cfg.Plugins {
		if p.ID != pluginID {
			continue
		}
		for _, c := range p.Grants {
			set[c] = struct{}{}
		}
		for _, c := range p.Deny {
			delete(set, c)
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
