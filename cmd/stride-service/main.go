package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/strideapp/stride/internal/api"
	"github.com/strideapp/stride/internal/api/ratelimit"
	"github.com/strideapp/stride/internal/auth"
	"github.com/strideapp/stride/internal/coach"
	"github.com/strideapp/stride/internal/config"
	"github.com/strideapp/stride/internal/genai"
	"github.com/strideapp/stride/internal/insight"
	"github.com/strideapp/stride/internal/metrics"
	"github.com/strideapp/stride/internal/notify"
	"github.com/strideapp/stride/internal/platform/logger"
	"github.com/strideapp/stride/internal/push"
	"github.com/strideapp/stride/internal/scheduler"
	"github.com/strideapp/stride/internal/services"
	"github.com/strideapp/stride/internal/store"
	"github.com/strideapp/stride/internal/store/postgres"
	"github.com/strideapp/stride/internal/store/sqlite"
	"github.com/strideapp/stride/internal/trigger"
)

func main() {
	log := logger.New("stride-service")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("STRIDE_JWT_SECRET must be set")
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Bool("scheduler_disabled", cfg.SchedulerDisabled).
		Msg("Stride service starting…")

	// -------- Storage layer -----------------
	var db *sql.DB
	var st store.Store
	switch cfg.DBDriver {
	case "postgres":
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal().Err(err).Msg("Database migration failed")
		}
		db, err = postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Postgres unavailable")
		}
		st = postgres.NewWithDB(db)
	case "sqlite":
		db, err = sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("SQLite unavailable")
		}
		st = sqlite.NewWithDB(db)
	}
	defer db.Close()

	// -------- Capabilities ------------------
	gen := genai.NewClient(genai.Config{
		BaseURL:     cfg.GenBaseURL,
		APIKey:      cfg.GenAPIKey,
		Model:       cfg.GenModel,
		MaxTokens:   cfg.GenMaxTokens,
		Temperature: cfg.GenTemperature,
		Timeout:     cfg.GenTimeout,
	})
	if cfg.GenAPIKey == "" {
		log.Warn().Msg("No generation API key set; coaching messages will use fallback text")
	}

	var sender push.Sender
	if cfg.PushGatewayURL != "" {
		sender = push.NewHTTPSender(cfg.PushGatewayURL, cfg.PushAPIKey, cfg.PushTimeout, log)
	} else {
		log.Warn().Msg("No push gateway configured; notifications will be logged only")
		sender = push.NewNopSender(log)
	}
	dispatcher := notify.NewDispatcher(st.Users(), sender, log)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// -------- Engine ------------------------
	insights := insight.New(st, log)
	coachSvc := coach.New(st, insights, gen, dispatcher, collector, log)
	evaluator := trigger.New(st, coachSvc, collector, log, cfg.DeadlineWarnDays, cfg.InactivityAfter)
	sched := scheduler.New(st, coachSvc, evaluator, log,
		cfg.CheckInHour, time.Weekday(cfg.ReviewWeekday), cfg.ReviewHour, cfg.ScanInterval)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	// -------- Router & Server ---------------
	router := api.NewRouter(api.Deps{
		Users:        services.NewUserService(st, tokens, log),
		Tasks:        services.NewTaskService(st, coachSvc, log),
		Coach:        coachSvc,
		Insights:     insights,
		Store:        st,
		Tokens:       tokens,
		Gatherer:     registry,
		CoachLimiter: ratelimit.New(rate.Every(time.Minute/10), 10),
		Log:          log,
	})
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	schedDone := make(chan struct{})
	if cfg.SchedulerDisabled {
		log.Info().Msg("Scheduler disabled; serving HTTP only")
		close(schedDone)
	} else {
		go func() {
			defer close(schedDone)
			sched.Run(ctx)
		}()
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down…")
	cancel()
	<-schedDone

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}
