// ABOUTME: Gateway orchestrator that wires the store, agent client, correlator and hub together
// ABOUTME: Owns the HTTP server lifecycle, health endpoints and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/silverfox/internal/agent"
	"github.com/2389/silverfox/internal/config"
	"github.com/2389/silverfox/internal/dedupe"
	"github.com/2389/silverfox/internal/hub"
	"github.com/2389/silverfox/internal/metrics"
	"github.com/2389/silverfox/internal/relay"
	"github.com/2389/silverfox/internal/store"
)

// Gateway orchestrates the silverfox relay components.
type Gateway struct {
	config     *config.Config
	store      store.Store
	agent      *agent.Client
	hub        *hub.Hub
	correlator *relay.Correlator
	httpServer *http.Server
	logger     *slog.Logger

	// fingerprints remembers which replies have already been recorded
	fingerprints *dedupe.Cache
}

// initStore creates the SQLite store, honouring the SILVERFOX_DB_PATH override.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("SILVERFOX_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	return newGateway(cfg, s, logger), nil
}

// newGateway assembles the components around an already opened store.
func newGateway(cfg *config.Config, s store.Store, logger *slog.Logger) *Gateway {
	agentClient := agent.NewClient(agent.Config{
		URL:        cfg.OpenClaw.URL,
		SessionKey: cfg.OpenClaw.SessionKey,
		Timeout:    cfg.OpenClaw.RequestTimeout,
	}, logger)

	fingerprints := dedupe.New(cfg.Relay.FingerprintCapacity, dedupe.WithEvictHook(metrics.RecordEvictions))

	viewerHub := hub.New(hub.Config{
		SessionKey:       cfg.OpenClaw.SessionKey,
		MaxContentLength: cfg.Relay.MaxContentLength,
		StatusInterval:   cfg.Relay.StatusInterval,
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
	}, s, agentClient, logger)

	correlator := relay.New(relay.Options{
		Store:            s,
		Agent:            agentClient,
		Publisher:        viewerHub,
		Fingerprints:     fingerprints,
		ReplyTimeout:     cfg.Relay.ReplyTimeout,
		PollInterval:     cfg.Relay.PollInterval,
		HistoryLimit:     cfg.Relay.HistoryLimit,
		MaxContentLength: cfg.Relay.MaxContentLength,
		Logger:           logger,
	})
	viewerHub.SetSubmitter(correlator)

	gw := &Gateway{
		config:       cfg,
		store:        s,
		agent:        agentClient,
		hub:          viewerHub,
		correlator:   correlator,
		fingerprints: fingerprints,
		logger:       logger.With("component", "gateway"),
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw
}

// Handler returns the HTTP handler serving the REST API, health checks and the viewer channel.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and the hub's status loop and blocks until the
// context is canceled or either of them fails.
// Returns nil on graceful shutdown (context canceled), or the first server error.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		_ = g.gracefulShutdown()
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	g.logger.Info("starting gateway",
		"http_addr", ln.Addr().String(),
		"openclaw_url", g.config.OpenClaw.URL,
		"session_key", g.config.OpenClaw.SessionKey,
	)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		return g.hub.Run(egCtx)
	})

	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, disconnects viewers, cancels outstanding
// tickets and closes the store, in that order.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.hub.Close()
	g.correlator.Close()

	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the database is reachable.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Ping(r.Context()); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d viewers, %d pending replies)", g.hub.ViewerCount(), g.correlator.ActiveTickets())
}
