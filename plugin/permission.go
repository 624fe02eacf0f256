package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uom-assistant/uoma-plugin-sdk/bridge"
	"github.com/uom-assistant/uoma-plugin-sdk/catalog"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/metrics"
)

// CheckPermission asks the host whether capability is currently granted.
// The exchange is one request and at most one accepted response; with no
// response within Config.CheckTimeout it fails with ErrTimeout.
func (c *Client) CheckPermission(ctx context.Context, capability string) (bool, error) {
	id, err := c.session()
	if err != nil {
		return false, err
	}
	if !catalog.IsValidCapability(capability) {
		return false, fmt.Errorf("%w: unknown capability %q", ErrInvalidArgument, capability)
	}
	return c.checkPermission(ctx, id, capability)
}

func (c *Client) checkPermission(ctx context.Context, pluginID, capability string) (bool, error) {
	parent, ok := c.win.Parent()
	if !ok {
		return false, fmt.Errorf("%w: window has no parent", ErrNotInitialized)
	}
	req, err := bridge.CheckPermissionRequest(pluginID, capability)
	if err != nil {
		return false, err
	}

	source := parent.SourceID()
	action := bridge.CheckPermissionResponseAction(capability)
	result := make(chan bool, 1)
	remove := c.win.AddMessageListener(func(msg bridge.Message) {
		if msg.Source != source || msg.Envelope.Action != action {
			return
		}
		select {
		case result <- msg.Envelope.Truthy():
		default:
		}
	})
	defer remove()

	// The deadline starts before the post and also bounds it.
	start := time.Now()
	timer := time.NewTimer(c.cfg.CheckTimeout)
	defer timer.Stop()

	posted := make(chan error, 1)
	go func() {
		posted <- parent.PostMessage(req, c.win.Origin())
	}()

	for {
		select {
		case err := <-posted:
			if err != nil {
				metrics.RecordPermissionCheck(capability, metrics.OutcomeError, time.Since(start))
				return false, fmt.Errorf("plugin: post %s: %w", bridge.ActionCheckPermission, err)
			}
			posted = nil
			log.Debug().Str("plugin_id", pluginID).Str("capability", capability).Msg("plugin.Client.CheckPermission: request sent")
		case granted := <-result:
			outcome := metrics.OutcomeDenied
			if granted {
				outcome = metrics.OutcomeGranted
			}
			metrics.RecordPermissionCheck(capability, outcome, time.Since(start))
			log.Debug().Str("capability", capability).Bool("granted", granted).Msg("plugin.Client.CheckPermission: resolved")
			return granted, nil
		case <-timer.C:
			metrics.RecordPermissionCheck(capability, metrics.OutcomeTimeout, time.Since(start))
			log.Warn().Str("capability", capability).Dur("timeout", c.cfg.CheckTimeout).Msg("plugin.Client.CheckPermission: no response")
			return false, fmt.Errorf("%w: %s after %s", ErrTimeout, capability, c.cfg.CheckTimeout)
		case <-ctx.Done():
			outcome := metrics.OutcomeCancelled
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				outcome = metrics.OutcomeTimeout
			}
			metrics.RecordPermissionCheck(capability, outcome, time.Since(start))
			return false, ctx.Err()
		}
	}
}
