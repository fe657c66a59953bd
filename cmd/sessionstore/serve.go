package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/sessionstore"
	httpAdapter "github.com/aretw0/sessionstore/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session HTTP server",
	Long: `Starts an HTTP server whose routes keep a cookie session in Redis.
GET / counts visits, /session reads, updates (PUT), drops (DELETE) and
renews (POST /session/renew) the session. /health pings Redis and /metrics
exposes Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			cfg.Listen = addr
		}
		logger := newLogger(cfg)

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		store, err := openStore(cmd.Context(), cfg, logger, sessionstore.WithRegisterer(reg))
		if err != nil {
			return err
		}
		defer store.Close()

		handler := httpAdapter.NewHandler(store.Coordinator,
			httpAdapter.WithVersion(strings.TrimSpace(sessionstore.Version)),
			httpAdapter.WithGatherer(reg),
			httpAdapter.WithHealthcheck(store.Healthcheck),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMiddlewareOptions(httpAdapter.WithCookie(httpAdapter.CookieConfig{
				Name:     cfg.CookieName,
				Secure:   cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})),
		)

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting sessionstore server",
				"addr", srv.Addr,
				"namespace", cfg.Namespace,
				"lock_scope", cfg.LockScope,
				"distributed_lock", cfg.DistributedLock,
			)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", 5*time.Second, "error", err)
				if err := srv.Close(); err != nil {
					logger.Error("Error killing server", "error", err)
				}
			}
			logger.Info("sessionstore server stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (overrides config)")
}
