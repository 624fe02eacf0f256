package host

import (
	"context"
	"errors"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uom-assistant/uoma-plugin-sdk/bridge"
	"github.com/uom-assistant/uoma-plugin-sdk/bridge/wsbridge"
	"github.com/uom-assistant/uoma-plugin-sdk/catalog"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/metrics"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/observability"
)

const tokenHeader = wsbridge.TokenHeader

// handleBridge upgrades to a websocket and answers capability checks until
// the plugin disconnects.
func (s *Server) handleBridge(c *gin.Context) {
	c.Writer.Header().Set(bridge.HostFlagHeader, strconv.FormatBool(true))
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		log.Warn().Err(err).Str("origin", c.GetHeader("Origin")).Msg("host.Server.handleBridge: upgrade rejected")
		return
	}

	connID := uuid.NewString()
	c.Set(observability.ContextKeyConnID, connID)
	s.trackConn(connID, "")
	metrics.TrackBridgeConnection(1)
	defer func() {
		s.dropConn(connID)
		metrics.TrackBridgeConnection(-1)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	ctx := c.Request.Context()
	for {
		var env bridge.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				log.Debug().Str("conn_id", connID).Msg("host.Server.handleBridge: closed")
			} else {
				log.Warn().Err(err).Str("conn_id", connID).Msg("host.Server.handleBridge: read failed")
			}
			return
		}
		reply, ok := s.answer(connID, env)
		if !ok {
			continue
		}
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			log.Warn().Err(err).Str("conn_id", connID).Msg("host.Server.handleBridge: write failed")
			return
		}
	}
}

// answer builds the response for one inbound envelope. Only checkPermission
// requests are answered.
func (s *Server) answer(connID string, env bridge.Envelope) (bridge.Envelope, bool) {
	if env.Action != bridge.ActionCheckPermission {
		log.Debug().Str("conn_id", connID).Str("action", env.Action).Msg("host.Server: ignoring action")
		return bridge.Envelope{}, false
	}
	capability, err := env.RequestedCapability()
	if err != nil {
		log.Warn().Err(err).Str("conn_id", connID).Msg("host.Server: malformed checkPermission")
		return bridge.Envelope{}, false
	}
	s.trackConn(connID, env.ID)

	granted := s.policy.Allows(env.ID, capability)
	label := capability
	if !catalog.IsValidCapability(capability) {
		label = metrics.InvalidCapabilityLabel
	}
	metrics.RecordHostPermissionRequest(label, granted)
	log.Info().
		Str("conn_id", connID).
		Str("plugin_id", env.ID).
		Str("capability", capability).
		Bool("granted", granted).
		Msg("host.Server: checkPermission")

	reply, err := bridge.CheckPermissionResponse(capability, granted)
	if err != nil {
		log.Error().Err(err).Msg("host.Server: encode response")
		return bridge.Envelope{}, false
	}
	return reply, true
}
