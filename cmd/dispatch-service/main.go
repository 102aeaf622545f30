package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicq/dispatch-service/internal/announce"
	"clinicq/dispatch-service/internal/config"
	"clinicq/dispatch-service/internal/dispatch"
	"clinicq/dispatch-service/internal/httpapi"
	"clinicq/dispatch-service/internal/store/postgres"
	"clinicq/dispatch-service/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()

	shutdownTelemetry := telemetry.Setup("dispatch-service")

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	location := time.Local
	if cfg.ClinicTimezone != "" {
		loc, err := time.LoadLocation(cfg.ClinicTimezone)
		if err != nil {
			log.Fatalf("load timezone %q: %v", cfg.ClinicTimezone, err)
		}
		location = loc
	}

	entryStore := postgres.NewStore(pool)
	announcer := announce.NewProvider(cfg.AnnounceProvider, cfg.AnnounceWebhookURL, cfg.AnnounceWebhookToken)
	dispatcher := dispatch.New(entryStore, dispatch.Options{
		Announcer: announcer,
		Location:  location,
	})
	handler := httpapi.NewHandler(dispatcher, entryStore)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		ActorPerMinute: cfg.ActorRateLimitPerMinute,
		ActorBurst:     cfg.ActorRateLimitBurst,
	})

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(handler.Routes())), "dispatch-service")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("dispatch-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := shutdownTelemetry(ctx); err != nil {
		log.Printf("telemetry shutdown error: %v", err)
	}
}
