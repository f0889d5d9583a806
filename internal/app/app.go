// Package app wires the server's components together: configuration,
// logging, the token verifier, webhook signer, room registry, and the
// connection gateway's HTTP mount. Grounded on the teacher's
// internal/app.Run (construct router/sinks, then hub, then HTTP server).
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"usion-arena/server/internal/auth"
	"usion-arena/server/internal/config"
	"usion-arena/server/internal/room"
	"usion-arena/server/internal/telemetry"
	"usion-arena/server/internal/webhook"
	"usion-arena/server/internal/ws"
	"usion-arena/server/logging"
	loggingSinks "usion-arena/server/logging/sinks"
)

// Config is the top-level input to Run. A nil Logger falls back to the
// standard library logger wrapped for telemetry.
type Config struct {
	Logger telemetry.Logger
}

// Run builds and serves the arena server until ctx is cancelled or the
// HTTP listener fails.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	logConfig := logging.DefaultConfig()
	sinks := map[string]logging.Sink{
		"console": loggingSinks.NewConsole(os.Stdout),
	}
	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, log.Default(), sinks)
	if err != nil {
		return fmt.Errorf("constructing logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			telemetryLogger.Printf("closing logging router: %v", cerr)
		}
	}()

	serverCfg := config.Load()

	verifier, err := auth.NewVerifier(auth.Config{
		JWKSURL:        serverCfg.JWKSURL,
		ExpectedIssuer: serverCfg.ExpectedIssuer,
		AudiencePrefix: serverCfg.AudiencePrefix,
		CacheMaxAge:    serverCfg.JWKSCacheMaxAge,
		CacheCooldown:  serverCfg.JWKSCacheCooldown,
		RequestTimeout: serverCfg.JWKSRequestTimeout,
	}, telemetryLogger)
	if err != nil {
		return fmt.Errorf("constructing token verifier: %w", err)
	}

	signer := webhook.NewSigner(webhook.Config{
		APIURL:       serverCfg.APIURL,
		ServiceID:    serverCfg.ServiceID,
		SigningKeyID: serverCfg.SigningKeyID,
		Secret:       serverCfg.SigningSecret,
		Timeout:      serverCfg.WebhookTimeout,
	}, telemetryLogger)

	metrics := &logging.Metrics{}

	registry := room.NewRegistry(func(id string) *room.Room {
		return room.New(id, room.Deps{
			Logger:                       telemetryLogger,
			Metrics:                      telemetry.WrapMetrics(metrics),
			Webhook:                      signer,
			DeployRegion:                 os.Getenv("DEPLOY_REGION"),
			SimHz:                        serverCfg.SimTickHz,
			NetHz:                        serverCfg.NetworkHz,
			FullSnapshotIntervalNetTicks: serverCfg.FullSnapshotIntervalNetTicks,
		})
	})

	gateway := ws.NewGateway(verifier, registry, ws.Config{
		Logger:    telemetryLogger,
		ServiceID: serverCfg.ServiceID,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", gateway)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", serverCfg.Port), Handler: mux}
	telemetryLogger.Printf("server listening on %s", srv.Addr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
