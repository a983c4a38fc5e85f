// Command stridectl runs one-off Stride operations: database migration and
// manual runs of the coaching pipelines that the in-process scheduler normally
// drives. It reads the same STRIDE_ environment as stride-service.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/strideapp/stride/internal/coach"
	"github.com/strideapp/stride/internal/config"
	"github.com/strideapp/stride/internal/genai"
	"github.com/strideapp/stride/internal/insight"
	"github.com/strideapp/stride/internal/notify"
	"github.com/strideapp/stride/internal/platform/logger"
	"github.com/strideapp/stride/internal/push"
	"github.com/strideapp/stride/internal/scheduler"
	"github.com/strideapp/stride/internal/store"
	"github.com/strideapp/stride/internal/store/postgres"
	"github.com/strideapp/stride/internal/store/sqlite"
	"github.com/strideapp/stride/internal/trigger"
)

var rootCmd = &cobra.Command{
	Use:   "stridectl",
	Short: "Operational CLI for the Stride coaching backend",
}

func main() {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if cfg.DBDriver != "postgres" {
				return fmt.Errorf("migrate requires DB_DRIVER=postgres; sqlite applies its schema on open")
			}
			return postgres.Migrate(cfg.PostgresDSN)
		},
	}
	rootCmd.AddCommand(migrateCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one trigger scan over all active tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				report, err := eng.evaluator.RunScan(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "scanned=%d deadline=%d stale=%d errors=%d\n",
					report.TasksScanned, report.DeadlineFired, report.StaleFired, report.Errors)
				return nil
			})
		},
	}
	rootCmd.AddCommand(scanCmd)

	checkinCmd := &cobra.Command{
		Use:   "checkin",
		Short: "Send the daily check-in to every opted-in user now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				return eng.scheduler.RunDailyCheckIn(ctx)
			})
		},
	}
	rootCmd.AddCommand(checkinCmd)

	reviewCmd := &cobra.Command{
		Use:   "weekly-review",
		Short: "Send the weekly review to every opted-in user now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				return eng.scheduler.RunWeeklyReview(ctx)
			})
		},
	}
	rootCmd.AddCommand(reviewCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type engine struct {
	evaluator *trigger.Evaluator
	scheduler *scheduler.Scheduler
}

// withEngine builds the coaching engine from the environment, runs fn against
// it, and tears the store down again.
func withEngine(fn func(context.Context, *engine) error) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	log := logger.New("stridectl")

	var db *sql.DB
	var st store.Store
	switch cfg.DBDriver {
	case "postgres":
		db, err = postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		st = postgres.NewWithDB(db)
	case "sqlite":
		db, err = sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		st = sqlite.NewWithDB(db)
	}
	defer db.Close()

	gen := genai.NewClient(genai.Config{
		BaseURL:     cfg.GenBaseURL,
		APIKey:      cfg.GenAPIKey,
		Model:       cfg.GenModel,
		MaxTokens:   cfg.GenMaxTokens,
		Temperature: cfg.GenTemperature,
		Timeout:     cfg.GenTimeout,
	})
	var sender push.Sender
	if cfg.PushGatewayURL != "" {
		sender = push.NewHTTPSender(cfg.PushGatewayURL, cfg.PushAPIKey, cfg.PushTimeout, log)
	} else {
		sender = push.NewNopSender(log)
	}
	dispatcher := notify.NewDispatcher(st.Users(), sender, log)

	insights := insight.New(st, log)
	coachSvc := coach.New(st, insights, gen, dispatcher, nil, log)
	evaluator := trigger.New(st, coachSvc, nil, log, cfg.DeadlineWarnDays, cfg.InactivityAfter)
	sched := scheduler.New(st, coachSvc, evaluator, log,
		cfg.CheckInHour, time.Weekday(cfg.ReviewWeekday), cfg.ReviewHour, cfg.ScanInterval)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return fn(ctx, &engine{evaluator: evaluator, scheduler: sched})
}
