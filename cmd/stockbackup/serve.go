package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/adapter/otel"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/adapter/river"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/app"
	"github.com/RomaoFilipe/StockBackup-sub000/internal/config"

	handler "github.com/RomaoFilipe/StockBackup-sub000/internal/adapter/http"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c.cfg, c.logger, cmd.OutOrStdout())
		},
	}
}

// serve runs until ctx is cancelled, then shuts down the HTTP server, the
// queue and the telemetry providers in that order.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, telemetryOut io.Writer) error {
	// --- Observability ---
	providers, err := otel.Setup(ctx, otel.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Telemetry.Environment,
		Exporter:       cfg.Telemetry.Exporter,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		MetricInterval: cfg.Telemetry.MetricInterval,
		Writer:         telemetryOut,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown", zap.Error(err))
		}
	}()

	// --- Adapters (out) ---
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var opts []app.Option
	if cfg.Queue.Enabled {
		client, err := river.Setup(ctx, db.SQL(), logger, cfg.Queue.MaxWorkers)
		if err != nil {
			return fmt.Errorf("river: %w", err)
		}
		// Stop drives queue shutdown; the signal context only stops the server.
		if err := client.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("starting river: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := client.Stop(stopCtx); err != nil {
				logger.Error("river shutdown", zap.Error(err))
			}
		}()

		notifier, err := otel.NewTracingNotifier(river.NewNotifier(client))
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
		opts = append(opts, app.WithNotifier(notifier))
	}

	// --- Application ---
	svc, err := newService(cfg, db, logger, opts...)
	if err != nil {
		return err
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(otelchi.Middleware(cfg.Telemetry.ServiceName, otelchi.WithChiRoutes(router)))
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger.Named("http")))
	router.Use(middleware.Recoverer)

	api := humachi.New(router, huma.DefaultConfig(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion))
	handler.Register(api, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stockbackup listening",
			zap.String("addr", srv.Addr),
			zap.String("blueprint", cfg.Workflow.Blueprint),
			zap.Bool("enforce_permissions", cfg.Workflow.EnforcePermissions),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

// requestLogger logs one entry per request once the response is written.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
