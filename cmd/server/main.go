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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/speedway/garage-engine/internal/faucet"
	"github.com/speedway/garage-engine/internal/metrics"
	"github.com/speedway/garage-engine/internal/model"
	"github.com/speedway/garage-engine/internal/store"
	"github.com/speedway/garage-engine/internal/token"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(context.Background()); err != nil {
			slog.Error("migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Engine config ---
	cfg := faucet.DefaultConfig()
	cfg.AllowDepositWhenExhausted = os.Getenv("ALLOW_DEPOSIT_WHEN_EXHAUSTED") == "true"
	cfg.StrictReferral = os.Getenv("STRICT_REFERRAL") == "true"
	if v := os.Getenv("TEAM_COLLECTOR"); v != "" {
		id, err := model.ParseIdentity(v)
		if err != nil {
			slog.Error("invalid TEAM_COLLECTOR", "err", err)
			os.Exit(1)
		}
		cfg.TeamCollector = id
	}
	if v := os.Getenv("TREASURY_WALLET"); v != "" {
		id, err := model.ParseIdentity(v)
		if err != nil {
			slog.Error("invalid TREASURY_WALLET", "err", err)
			os.Exit(1)
		}
		cfg.TreasuryWallet = id
	}

	// Token collaborators. The in-memory implementations stand in until
	// the mint/rewards subsystem is wired over RPC.
	source := token.NewMemorySource()
	mover := token.NewMemoryMover()

	// --- WebSocket hub ---
	hub := faucet.NewWSHub()
	go hub.Run()

	// --- Garage service ---
	svc := faucet.NewService(st, source, mover, cfg, hub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"garage-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time operation events.
		r.Get("/ws", hub.HandleWS)

		// Operations.
		r.Post("/garage/deposit", svc.HandleDeposit)
		r.Post("/garage/compound", svc.HandleCompound)
		r.Post("/garage/withdraw", svc.HandleWithdraw)
		r.Post("/garage/stash", svc.HandleStashIn)
		r.Post("/garage/claim-wallet", svc.HandleClaimToWallet)

		// Read API.
		r.Get("/garage/{owner}", svc.HandleGetPosition)
		r.Get("/garage/{owner}/events", svc.HandleGetEvents)
		r.Get("/ledger", svc.HandleGetLedger)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("garage-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down garage-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("garage-engine stopped")
}
