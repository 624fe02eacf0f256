package host

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/uom-assistant/uoma-plugin-sdk/catalog"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/auth"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/config"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/metrics"
)

const maxGrantsBody = 64 * 1024

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": s.cfg.ID,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":       true,
			"connections": len(s.Connections()),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	s.router.GET("/catalog", func(c *gin.Context) {
		capabilities := make(map[string][]string)
		for _, ns := range catalog.Namespaces() {
			capabilities[ns] = catalog.Capabilities(ns)
		}
		c.JSON(http.StatusOK, gin.H{
			"capabilities": capabilities,
			"events":       catalog.EventNames(),
		})
	})

	s.router.GET("/plugins/:plugin/grants", func(c *gin.Context) {
		pluginID := c.Param("plugin")
		c.JSON(http.StatusOK, gin.H{
			"plugin": pluginID,
			"grants": s.policy.Grants(pluginID),
		})
	})

	s.router.PUT("/grants", s.requireAdmin, s.requireToken, func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxGrantsBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cfg, err := config.ParseGrantsConfig(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.policy.Replace(cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Info().Int("plugins", len(cfg.Plugins)).Msg("host.Server: grants replaced")
		c.JSON(http.StatusOK, gin.H{"status": "replaced", "plugins": len(cfg.Plugins)})
	})

	s.router.GET("/bridge", s.requireToken, s.handleBridge)
}

// requireAdmin refuses policy changes on a host running without a token;
// the bridge stays open in that mode but the grants do not.
func (s *Server) requireAdmin(c *gin.Context) {
	if strings.TrimSpace(s.cfg.Token) == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "grants admin disabled: no token configured"})
		return
	}
	c.Next()
}

func (s *Server) requireToken(c *gin.Context) {
	token := c.GetHeader(tokenHeader)
	if token == "" {
		token = c.Query("token")
	}
	if err := s.validator.Validate(token); err != nil {
		if !errors.Is(err, auth.ErrUnauthorized) {
			log.Error().Err(err).Msg("host.Server: token validation failed")
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}
