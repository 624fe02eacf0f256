package plugin

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/uom-assistant/uoma-plugin-sdk/catalog"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/metrics"
)

// On registers cb for event after the host grants the event's required
// capability. The same handle may be registered more than once.
func (c *Client) On(ctx context.Context, event string, cb *Callback) error {
	id, required, err := c.subscriptionPreconditions(event, cb)
	if err != nil {
		return err
	}
	granted, err := c.checkPermission(ctx, id, required)
	if err != nil {
		metrics.RecordSubscriptionChange(event, "on", false)
		return err
	}
	if !granted {
		metrics.RecordSubscriptionChange(event, "on", false)
		return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, event, required)
	}

	c.mu.Lock()
	n := c.subs.add(event, cb)
	c.mu.Unlock()

	metrics.RecordSubscriptionChange(event, "on", true)
	log.Debug().Str("event", event).Int("callbacks", n).Msg("plugin.Client.On: subscribed")
	return nil
}

// Off removes the first registration of cb for event and returns it.
// Removal does not consult the host.
func (c *Client) Off(event string, cb *Callback) (*Callback, error) {
	if _, _, err := c.subscriptionPreconditions(event, cb); err != nil {
		return nil, err
	}

	c.mu.Lock()
	known := c.subs.has(event)
	removed := known && c.subs.remove(event, cb)
	c.mu.Unlock()

	metrics.RecordSubscriptionChange(event, "off", removed)
	if !known {
		return nil, fmt.Errorf("%w: no subscriptions for %s", ErrNotFound, event)
	}
	if !removed {
		return nil, fmt.Errorf("%w: callback not registered for %s", ErrNotFound, event)
	}
	log.Debug().Str("event", event).Msg("plugin.Client.Off: unsubscribed")
	return cb, nil
}

// Subscribers returns the callbacks registered for event in dispatch order.
func (c *Client) Subscribers(event string) []*Callback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs.snapshot(event)
}

// HasEntry reports whether event has ever been subscribed successfully.
func (c *Client) HasEntry(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs.has(event)
}

func (c *Client) subscriptionPreconditions(event string, cb *Callback) (string, string, error) {
	id, err := c.session()
	if err != nil {
		return "", "", err
	}
	if !cb.valid() {
		return "", "", fmt.Errorf("%w: callback is nil", ErrInvalidArgument)
	}
	required, ok := catalog.RequiredCapabilityFor(event)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return id, required, nil
}
