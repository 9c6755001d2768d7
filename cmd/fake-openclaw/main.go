// ABOUTME: Minimal fake OpenClaw runtime for local development and E2E testing; echoes every message back.
// ABOUTME: Usage: fake-openclaw [-addr localhost:8080] [-session agent:main:main] [-delay 1s]
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2389/silverfox/internal/agent"
	"github.com/2389/silverfox/internal/agent/agenttest"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "HTTP listen address")
	session := flag.String("session", agent.DefaultSessionKey, "Session key to serve")
	delay := flag.Duration("delay", time.Second, "Delay before the echo reply appears in history")
	model := flag.String("model", "echo-1", "Model name reported by the status endpoint")
	flag.Parse()

	if err := run(*addr, *session, *model, *delay); err != nil {
		log.Fatal(err)
	}
}

func run(addr, session, model string, delay time.Duration) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	rt := agenttest.NewRuntime(session)
	rt.SetEcho(delay)
	rt.SetStatus(agenttest.StatusBody{Runtime: "fake-openclaw", Model: model})

	srv := &http.Server{
		Addr:              addr,
		Handler:           rt,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fake openclaw listening", "addr", addr, "session", session, "delay", delay)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
