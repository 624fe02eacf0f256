package plugin

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/uom-assistant/uoma-plugin-sdk/bridge"
)

// Client holds one plugin session inside one embedded window.
type Client struct {
	win bridge.Window
	cfg Config

	mu            sync.Mutex
	pluginID      string
	removeStorage func()
	subs          registry
}

// New returns a client bound to win; zero Config fields take defaults.
func New(win bridge.Window, cfg Config) *Client {
	return &Client{
		win:  win,
		cfg:  cfg.WithDefaults(),
		subs: newRegistry(),
	}
}

// Init binds the session identity. It reports false, without error, when the
// window is top-level or its parent is not a recognized host. A second
// successful Init replaces the identity.
func (c *Client) Init(pluginID string) (bool, error) {
	if utf8.RuneCountInString(pluginID) < MinPluginIDLen {
		return false, fmt.Errorf("%w: plugin id must be at least %d characters", ErrInvalidArgument, MinPluginIDLen)
	}
	parent, ok := c.win.Parent()
	if !ok {
		log.Warn().Str("plugin_id", pluginID).Msg("plugin.Client.Init: window is top-level")
		return false, nil
	}
	isHost, err := parent.IsHost()
	if err != nil || !isHost {
		log.Warn().Err(err).Str("plugin_id", pluginID).Str("parent", parent.SourceID()).
			Msg("plugin.Client.Init: parent is not a recognized host")
		return false, nil
	}

	c.mu.Lock()
	prev := c.pluginID
	c.pluginID = pluginID
	if c.removeStorage == nil {
		c.removeStorage = c.win.AddStorageListener(observeStorage)
	}
	c.mu.Unlock()

	if prev != "" && prev != pluginID {
		log.Warn().Str("plugin_id", pluginID).Str("previous", prev).Msg("plugin.Client.Init: session identity replaced")
	}
	log.Info().Str("plugin_id", pluginID).Str("origin", c.win.Origin()).Msg("plugin.Client.Init: session established")
	return true, nil
}

// PluginID returns the session identity, empty before Init.
func (c *Client) PluginID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pluginID
}

// Get gates on the session and resolves its key.
func (c *Client) Get(key string) (string, error) {
	if _, err := c.session(); err != nil {
		return "", err
	}
	return key, nil
}

// Set gates on the session and resolves its key; value is not stored.
func (c *Client) Set(key string, value any) (string, error) {
	if _, err := c.session(); err != nil {
		return "", err
	}
	return key, nil
}

func (c *Client) session() (string, error) {
	c.mu.Lock()
	id := c.pluginID
	c.mu.Unlock()
	if utf8.RuneCountInString(id) < MinPluginIDLen {
		return "", ErrNotInitialized
	}
	return id, nil
}

func observeStorage(change bridge.StorageChange) {
	log.Debug().
		Str("key", change.Key).
		Str("old", change.OldValue).
		Str("new", change.NewValue).
		Msg("plugin.Client: storage changed")
}
