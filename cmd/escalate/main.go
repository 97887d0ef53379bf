// Command escalate runs one overdue-task escalation pass: every internal task
// that became overdue since its due date was last set gets a task_overdue
// intent. It is intended to be invoked by an external cron job when the
// in-process sweeper is not used.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/journal-backend/internal/app"
	"github.com/heartmarshall/journal-backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		logger.Error("open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	svc := app.NewServices(logger, st, clockwork.NewRealClock(), cfg.Workflow)

	escalated, err := svc.Tasks.EscalateOverdue(ctx)
	if err != nil {
		logger.Error("escalation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("escalation completed", slog.Int("escalated", escalated))
}
