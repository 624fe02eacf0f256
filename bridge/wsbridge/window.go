// Package wsbridge provides a bridge.Window whose parent is a host reached
// over a websocket.
package wsbridge

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
	"github.com/uom-assistant/uoma-plugin-sdk/bridge"
)

const TokenHeader = "X-Uoma-Token"

var (
	ErrURLRequired = errors.New("wsbridge: url required")
	ErrBadURL      = errors.New("wsbridge: url must be ws:// or wss://")
	ErrClosed      = errors.New("wsbridge: window closed")
)

type Config struct {
	URL string
	// Origin is sent as the Origin header and reported by Window.Origin.
	// Empty means the host's own origin.
	Origin string
	Token  string
	// CAFile is a PEM bundle trusted for wss:// hosts in addition to the
	// system roots.
	CAFile             string
	ConnectTimeout     time.Duration
	WriteTimeout       time.Duration
	MaxConnectAttempts int
	Backoff            BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxConnectAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero timeouts from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	return c
}

// Window is a connected plugin window. Inbound envelopes are delivered to
// message listeners with the host connection as source.
type Window struct {
	cfg        Config
	conn       *websocket.Conn
	origin     string
	hostOrigin string
	isHost     bool

	messages bridge.ListenerSet[bridge.Message]
	storage  bridge.ListenerSet[bridge.StorageChange]

	writeMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}

	errMu   sync.Mutex
	readErr error
}

// Dial connects to a host bridge endpoint, retrying with backoff.
func Dial(ctx context.Context, cfg Config) (*Window, error) {
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrURLRequired
	}
	hostOrigin, err := originOf(cfg.URL)
	if err != nil {
		return nil, err
	}
	origin := strings.TrimSpace(cfg.Origin)
	if origin == "" {
		origin = hostOrigin
	}

	httpClient, err := httpClientFor(cfg)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var attempt int
	for {
		attempt++
		w, err := dialOnce(ctx, cfg, httpClient, origin, hostOrigin)
		if err == nil {
			return w, nil
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("url", cfg.URL).Msg("wsbridge.Dial: connect failed")
		if cfg.MaxConnectAttempts > 0 && attempt >= cfg.MaxConnectAttempts {
			return nil, err
		}
		timer := time.NewTimer(NextBackoffDelay(cfg.Backoff, attempt, rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func dialOnce(ctx context.Context, cfg Config, httpClient *http.Client, origin, hostOrigin string) (*Window, error) {
	header := http.Header{}
	header.Set("Origin", origin)
	if cfg.Token != "" {
		header.Set(TokenHeader, cfg.Token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	conn, resp, err := websocket.Dial(dialCtx, cfg.URL, &websocket.DialOptions{
		HTTPClient: httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, err
	}

	isHost := false
	if resp != nil {
		isHost, _ = strconv.ParseBool(resp.Header.Get(bridge.HostFlagHeader))
	}

	readCtx, stop := context.WithCancel(context.Background())
	w := &Window{
		cfg:        cfg,
		conn:       conn,
		origin:     origin,
		hostOrigin: hostOrigin,
		isHost:     isHost,
		cancel:     stop,
		done:       make(chan struct{}),
	}
	go w.readLoop(readCtx)
	log.Info().Str("url", cfg.URL).Bool("host", isHost).Msg("wsbridge.Dial: connected")
	return w, nil
}

func (w *Window) readLoop(ctx context.Context) {
	defer close(w.done)
	source := w.sourceID()
	for {
		var env bridge.Envelope
		if err := wsjson.Read(ctx, w.conn, &env); err != nil {
			w.setErr(err)
			return
		}
		if err := env.Validate(); err != nil {
			log.Warn().Err(err).Msg("wsbridge.Window: dropping inbound envelope")
			continue
		}
		w.messages.Emit(bridge.Message{
			Source:   source,
			Origin:   w.hostOrigin,
			Envelope: env,
		})
	}
}

func (w *Window) Origin() string {
	return w.origin
}

func (w *Window) Parent() (bridge.Parent, bool) {
	return (*hostParent)(w), true
}

func (w *Window) AddMessageListener(fn bridge.Listener) func() {
	return w.messages.Add(fn)
}

// AddStorageListener registers fn for local storage notifications. A remote
// host does not relay storage mutations, so fn only fires via EmitStorage.
func (w *Window) AddStorageListener(fn bridge.StorageListener) func() {
	return w.storage.Add(fn)
}

func (w *Window) EmitStorage(change bridge.StorageChange) {
	w.storage.Emit(change)
}

// Done is closed when the read loop stops.
func (w *Window) Done() <-chan struct{} {
	return w.done
}

// Err returns the error that stopped the read loop, if any.
func (w *Window) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.readErr
}

func (w *Window) Close() error {
	err := w.conn.Close(websocket.StatusNormalClosure, "bye")
	w.cancel()
	<-w.done
	return err
}

func (w *Window) closed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *Window) setErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.readErr == nil {
		w.readErr = err
	}
}

func (w *Window) sourceID() string {
	return "wsbridge:" + w.cfg.URL
}

// hostParent is the Parent view of a Window.
type hostParent Window

func (p *hostParent) SourceID() string {
	return (*Window)(p).sourceID()
}

func (p *hostParent) IsHost() (bool, error) {
	w := (*Window)(p)
	if w.closed() {
		return false, ErrClosed
	}
	return w.isHost, nil
}

func (p *hostParent) PostMessage(env bridge.Envelope, targetOrigin string) error {
	w := (*Window)(p)
	if err := env.Validate(); err != nil {
		return err
	}
	if targetOrigin != w.hostOrigin {
		log.Debug().Str("target", targetOrigin).Str("host", w.hostOrigin).Msg("wsbridge.Window: origin mismatch, dropped")
		return nil
	}
	if w.closed() {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WriteTimeout)
	defer cancel()
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return wsjson.Write(ctx, w.conn, env)
}

// httpClientFor returns nil (the default client) unless a CA bundle is set.
func httpClientFor(cfg Config) (*http.Client, error) {
	caPath := strings.TrimSpace(cfg.CAFile)
	if caPath == "" {
		return nil, nil
	}
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if ok := pool.AppendCertsFromPEM(caPEM); !ok {
		return nil, fmt.Errorf("wsbridge: parse tls ca bundle: %s", caPath)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    pool,
	}
	return &http.Client{Transport: transport}, nil
}

func originOf(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	switch u.Scheme {
	case "ws":
		return "http://" + u.Host, nil
	case "wss":
		return "https://" + u.Host, nil
	default:
		return "", ErrBadURL
	}
}
