package host

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/auth"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/metrics"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/observability"
)

var ErrPolicyRequired = errors.New("host: grant policy required")

// ServiceConfig configures the host HTTP surface.
type ServiceConfig struct {
	ID         string
	ListenAddr string
	// OriginPatterns extends same-origin bridge upgrades to matching hosts.
	OriginPatterns []string
	CorsOrigins    []string
	Token          string
	// TLSCertFile and TLSKeyFile switch Serve to TLS when both are set.
	TLSCertFile     string
	TLSKeyFile      string
	ShutdownTimeout time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ID:              "uoma-host",
		ListenAddr:      ":7300",
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server answers plugin bridges against a grant policy.
type Server struct {
	cfg       ServiceConfig
	policy    *GrantPolicy
	validator auth.Validator
	router    *gin.Engine
	appeared  time.Time

	connsMu sync.Mutex
	conns   map[string]string
}

// NewServer validates cfg and builds the router around policy.
func NewServer(cfg ServiceConfig, policy *GrantPolicy) (*Server, error) {
	if policy == nil {
		return nil, ErrPolicyRequired
	}
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = DefaultServiceConfig().ID
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultServiceConfig().ShutdownTimeout
	}

	metrics.RegisterMetrics()
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(log.Logger), observability.RequestMetricsMiddleware(cfg.ID))
	if len(cfg.CorsOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.CorsOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, tokenHeader)
		router.Use(cors.New(corsCfg))
	}

	s := &Server{
		cfg:       cfg,
		policy:    policy,
		validator: auth.ForToken(cfg.Token),
		router:    router,
		appeared:  time.Now(),
		conns:     make(map[string]string),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Connections returns plugin ids keyed by bridge connection id.
func (s *Server) Connections() map[string]string {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	out := make(map[string]string, len(s.conns))
	for k, v := range s.conns {
		out[k] = v
	}
	return out
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs on ln until ctx is done, using TLS when cert and key are set.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	useTLS := s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != ""
	log.Info().Str("id", s.cfg.ID).Str("addr", ln.Addr().String()).Bool("tls", useTLS).Msg("host.Server.Serve: listening")

	serveErr := make(chan error, 1)
	go func() {
		if useTLS {
			serveErr <- srv.ServeTLS(ln, s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
			return
		}
		serveErr <- srv.Serve(ln)
	}()
	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Str("id", s.cfg.ID).Msg("host.Server.Serve: stopped")
	return nil
}

func (s *Server) trackConn(connID, pluginID string) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[connID] = pluginID
}

func (s *Server) dropConn(connID string) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, connID)
}
