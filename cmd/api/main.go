package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/kirillkom/student-tax-advisor/internal/adapters/http"
	"github.com/kirillkom/student-tax-advisor/internal/bootstrap"
	"github.com/kirillkom/student-tax-advisor/internal/config"
	"github.com/kirillkom/student-tax-advisor/internal/observability/logging"
	"github.com/kirillkom/student-tax-advisor/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using environment variables")
	}
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:   logger,
		Recorder: httpMetrics.Advice(serviceName),
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	go reloadOnHangup(ctx, app, logger)

	router := httpadapter.NewRouter(cfg, app.Advisor, app.Advisor, app.Feedback, app.Profiles).
		WithMetrics(httpMetrics).
		Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "chunks", app.Engine.Current().Store().Len())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}

// reloadOnHangup rebuilds the retriever on SIGHUP so a freshly ingested
// corpus is served without a restart.
func reloadOnHangup(ctx context.Context, app *bootstrap.App, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := app.Reload(ctx); err != nil {
				logger.Error("retriever_reload_failed", "error", err)
			}
		}
	}
}
