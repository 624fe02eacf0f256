package host

import (
	"sync"

	"github.com/uom-assistant/uoma-plugin-sdk/catalog"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/config"
)

// Policy decides whether a plugin holds a capability.
type Policy interface {
	Allows(pluginID, capability string) bool
}

// GrantPolicy evaluates a grants document; Replace swaps it atomically.
type GrantPolicy struct {
	mu  sync.RWMutex
	cfg config.GrantsConfig
}

// NewGrantPolicy wraps cfg, which is assumed already validated.
func NewGrantPolicy(cfg config.GrantsConfig) *GrantPolicy {
	return &GrantPolicy{cfg: cfg}
}

func (p *GrantPolicy) Allows(pluginID, capability string) bool {
	if !catalog.IsValidCapability(capability) {
		return false
	}
	for _, c := range p.Grants(pluginID) {
		if c == capability {
			return true
		}
	}
	return false
}

// Grants returns the effective sorted grants for pluginID.
func (p *GrantPolicy) Grants(pluginID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.Effective(pluginID)
}

// Replace validates cfg before swapping it in.
func (p *GrantPolicy) Replace(cfg config.GrantsConfig) error {
	if err := config.ValidateGrantsConfig(cfg); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	return nil
}
