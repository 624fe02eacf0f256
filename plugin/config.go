package plugin

import "time"

const (
	// DefaultCheckTimeout bounds one capability check from request to answer.
	DefaultCheckTimeout = 1000 * time.Millisecond

	MinPluginIDLen = 4
)

// Config defines client protocol settings.
type Config struct {
	CheckTimeout time.Duration
}

// DefaultConfig returns the one-second check timeout.
func DefaultConfig() Config {
	return Config{
		CheckTimeout: DefaultCheckTimeout,
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = DefaultCheckTimeout
	}
	return c
}
