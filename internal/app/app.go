package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/journal-backend/internal/adapter/mailer"
	"github.com/heartmarshall/journal-backend/internal/auth"
	"github.com/heartmarshall/journal-backend/internal/config"
	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/service/outbox"
)

// Run is the server entry point. It loads configuration, opens storage and
// runs the HTTP API, the outbox dispatcher and the SLA sweeper until ctx is
// cancelled or one of them fails.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("storage", cfg.Storage.Driver),
	)

	st, err := OpenStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	clock := clockwork.NewRealClock()
	svc := NewServices(logger, st, clock, cfg.Workflow)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)

	handler, limiter := NewHTTPHandler(logger, svc, st, jwtManager, HTTPConfig{CORS: cfg.CORS, RateLimit: cfg.RateLimit, Clock: clock})
	defer limiter.Stop()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Outbox.Enabled {
		dispatcher := outbox.NewDispatcher(logger, st.Outbox, st.Users, newNotifier(logger, cfg.Mail), clock, outbox.Config{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
			RetryBackoff: cfg.Outbox.RetryBackoff,
			ClaimLease:   cfg.Outbox.ClaimLease,
		})
		g.Go(func() error { return dispatcher.Run(gctx) })
	}

	g.Go(func() error {
		return runSweeper(gctx, logger, clock, cfg.Workflow.SLASweepInterval, svc.Tasks.EscalateOverdue)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("application stopped")
	return nil
}

type notifier interface {
	Notify(ctx context.Context, in domain.Intent, rcpt *mailer.Recipient) error
}

func newNotifier(logger *slog.Logger, cfg config.MailConfig) notifier {
	if cfg.Enabled() {
		logger.Info("mail delivery enabled", slog.String("host", cfg.Host))
		return mailer.NewSMTPNotifier(logger, cfg)
	}
	logger.Warn("mail host not configured, intents are only logged")
	return mailer.NewLogNotifier(logger)
}

// runSweeper calls sweep on every tick until ctx is done. Sweep errors are
// logged and do not stop the loop.
func runSweeper(ctx context.Context, logger *slog.Logger, clock clockwork.Clock, interval time.Duration,
	sweep func(context.Context) (int, error),
) error {
	log := logger.With("worker", "sla_sweeper")
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			n, err := sweep(ctx)
			if err != nil {
				log.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "overdue tasks escalated", slog.Int("count", n))
			}
		}
	}
}
