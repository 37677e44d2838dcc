package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/bet-consensus/internal/api"
	"github.com/atmx/bet-consensus/internal/config"
	"github.com/atmx/bet-consensus/internal/dispatch"
	"github.com/atmx/bet-consensus/internal/intent"
	"github.com/atmx/bet-consensus/internal/metrics"
	"github.com/atmx/bet-consensus/internal/notify"
	"github.com/atmx/bet-consensus/internal/registry"
	"github.com/atmx/bet-consensus/internal/sports"
	"github.com/atmx/bet-consensus/internal/textgen"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Lifecycle event sinks ---
	wsHub := api.NewWSHub()
	go wsHub.Run(ctx)

	events := notify.NewMulti()
	events.Add("websocket", wsHub)

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		events.Add("redis", notify.NewRedisPublisher(rdb, cfg.RedisChannel))
		slog.Info("Redis event sink enabled", "channel", cfg.RedisChannel)
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kp := notify.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		cleanup = append(cleanup, func() { kp.Close() })
		events.Add("kafka", kp)
		slog.Info("Kafka event sink enabled", "brokers", brokers, "topic", cfg.KafkaTopic)
	}

	// --- Bet registry + dispatcher ---
	bets := registry.New(registry.WithLateVotes(cfg.AllowVotesAfterFinalize))
	opts := []dispatch.Option{dispatch.WithPublisher(events)}

	if cfg.ValidationEnabled {
		gen := textgen.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		lookup := sports.NewClient(cfg.EventsBaseURL, cfg.RapidAPIKey, cfg.EventsHost, cfg.CollaboratorTimeout)
		opts = append(opts, dispatch.WithValidator(intent.NewValidator(gen, lookup, cfg.CollaboratorTimeout)))
		slog.Info("bet validation enabled", "model", cfg.OpenAIModel, "events", cfg.EventsBaseURL)
	} else {
		slog.Warn("VALIDATION_ENABLED=false, bets are registered without an event check")
	}

	handler := api.NewHandler(dispatch.New(bets, opts...))

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for browser clients.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Sender")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"bet-consensus","pending_bets":%d}`, bets.PendingCount())
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket stream of bet lifecycle events. Long-lived, so it sits
		// outside the request timeout.
		r.Get("/ws", wsHub.HandleWS)

		// Collaborator calls can take COLLABORATOR_TIMEOUT twice over.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(2*cfg.CollaboratorTimeout + 10*time.Second))
			handler.Routes(r)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("bet-consensus listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down bet-consensus...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("bet-consensus stopped")
}
