// ABOUTME: Gateway orchestrator that owns the HTTP server, device hub and story proxy
// ABOUTME: Manages the kv backend, tailscale listener, cron sweeps and shutdown lifecycle

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/tatasbox/internal/auth"
	"github.com/2389/tatasbox/internal/cache"
	"github.com/2389/tatasbox/internal/config"
	"github.com/2389/tatasbox/internal/devices"
	"github.com/2389/tatasbox/internal/events"
	"github.com/2389/tatasbox/internal/kv"
	"github.com/2389/tatasbox/internal/ratelimit"
	"github.com/2389/tatasbox/internal/story"
)

const (
	openTimeout         = 10 * time.Second
	limiterCleanupEvery = 5 * time.Minute
	limiterMaxIdle      = 30 * time.Minute
	deviceEvictSpec     = "@every 10m"
	deviceMaxIdle       = time.Hour
)

// Gateway serves the device stores and the story proxy over HTTP.
type Gateway struct {
	config      *config.Config
	store       kv.Store
	hub         *devices.Hub
	events      *events.Broadcaster
	stories     story.Generator
	daily       *story.Daily
	storyCache  *cache.Cache[story.Story]
	limiter     *ratelimit.Limiter
	verifier    auth.TokenVerifier
	scheduler   *cron.Cron
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// now is the clock handed to the device hub and the daily cache
	now func() time.Time
}

// options lets tests inject a backend, a story generator and a clock.
type options struct {
	store   kv.Store
	stories story.Generator
	now     func() time.Time
}

// New opens the configured backend and builds a gateway around it.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	s, err := kv.Open(ctx, kv.Options{
		Driver:        cfg.Database.Driver,
		Path:          cfg.Database.Path,
		DSN:           cfg.Database.DSN,
		EncryptionKey: cfg.Database.EncryptionKey,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gw, err := newGateway(cfg, logger, options{store: s})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

func newGateway(cfg *config.Config, logger *slog.Logger, opts options) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	gw := &Gateway{
		config: cfg,
		store:  opts.store,
		logger: logger,
		now:    opts.now,
	}

	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		gw.verifier = v
	} else {
		logger.Warn("auth.jwt_secret not set, every request acts as the local device")
	}

	gw.stories = opts.stories
	if gw.stories == nil {
		if cfg.LLM.APIKey == "" {
			logger.Warn("llm.api_key not set, story generation will fail")
		}
		gw.stories = story.NewClient(story.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
			Logger:  logger,
		})
	}
	gw.storyCache = cache.New[story.Story](cfg.Story.CacheTTL, cfg.Story.CacheSize)
	gw.daily = story.NewDaily(gw.stories, gw.storyCache, opts.now)

	gw.hub = devices.NewHub(gw.store, devices.Options{
		Logger: logger,
		Now:    opts.now,
	})
	gw.events = events.NewBroadcaster(logger)
	gw.limiter = ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, logger)

	if err := gw.setupScheduler(); err != nil {
		gw.storyCache.Close()
		gw.events.Close()
		gw.hub.Close()
		return nil, err
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// setupScheduler registers idle-device eviction and, when configured, the
// ephemeral-session sweep.
func (g *Gateway) setupScheduler() error {
	g.scheduler = cron.New()
	if _, err := g.scheduler.AddFunc(deviceEvictSpec, g.evictIdleDevices); err != nil {
		return fmt.Errorf("scheduling device eviction: %w", err)
	}

	spec := g.config.Journal.EphemeralSweep
	if spec == "" {
		return nil
	}
	if _, err := g.scheduler.AddFunc(spec, g.sweepEphemeral); err != nil {
		return fmt.Errorf("scheduling ephemeral sweep %q: %w", spec, err)
	}
	return nil
}

func (g *Gateway) evictIdleDevices() {
	g.hub.EvictIdle(deviceMaxIdle)
}

func (g *Gateway) sweepEphemeral() {
	removed := g.hub.SweepEphemeral()
	if removed == 0 {
		return
	}
	g.logger.Info("swept ephemeral sessions", "removed", removed)
	for _, id := range g.hub.IDs() {
		g.events.Publish(id, events.New(storeJournal, "sweep"), "")
	}
}

// setupTCPListener creates the plain TCP listener.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// startServer serves HTTP in a goroutine and reports failures on the returned channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts serving and blocks until ctx is canceled or the server fails.
// Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	if g.scheduler != nil {
		g.scheduler.Start()
	}
	g.limiter.StartCleanup(ctx, limiterCleanupEvery, limiterMaxIdle)

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "tatasbox", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener brings up a tsnet node and listens on it.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	return g.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleHTTPListener picks funnel, tailnet HTTPS or plain :80.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops serving, drains every device's write queue and closes the backend.
// Event streams are closed first so open SSE connections don't hold up the HTTP shutdown.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	g.events.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.scheduler != nil {
		select {
		case <-g.scheduler.Stop().Done():
		case <-ctx.Done():
		}
	}
	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	g.hub.Close()
	g.storyCache.Close()
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
