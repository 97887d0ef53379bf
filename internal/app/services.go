package app

import (
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/journal-backend/internal/config"
	"github.com/heartmarshall/journal-backend/internal/service/decision"
	"github.com/heartmarshall/journal-backend/internal/service/manuscript"
	"github.com/heartmarshall/journal-backend/internal/service/production"
	"github.com/heartmarshall/journal-backend/internal/service/review"
	"github.com/heartmarshall/journal-backend/internal/service/task"
	"github.com/heartmarshall/journal-backend/internal/service/user"
	"github.com/heartmarshall/journal-backend/internal/transport/middleware"
	"github.com/heartmarshall/journal-backend/internal/transport/rest"
	"github.com/heartmarshall/journal-backend/internal/workflow"
)

// Services holds every workflow service built over one Storage.
type Services struct {
	Manuscripts *manuscript.Service
	Reviews     *review.Service
	Decisions   *decision.Service
	Production  *production.Service
	Tasks       *task.Service
	Users       *user.Service
}

// NewServices builds the engine and every service on top of st.
func NewServices(log *slog.Logger, st *Storage, clock clockwork.Clock, cfg config.WorkflowConfig) *Services {
	machine := workflow.NewMachine(clock)
	cycles := workflow.NewCycleMachine(clock, cfg.ProofWindow)
	policy := workflow.NewPolicyEngine(workflow.PolicyConfig{
		CooldownWindow:       cfg.CooldownWindow,
		MaxActiveAssignments: cfg.MaxActiveAssignments,
	}, clock)

	return &Services{
		Manuscripts: manuscript.NewService(log, st.Manuscripts, st.Assignments, st.Audit, st.Outbox, st.Tx, machine),
		Reviews: review.NewService(log, st.Manuscripts, st.Assignments, st.Users, st.Audit, st.Outbox, st.Tx,
			policy, clock, cfg.ReviewDue),
		Decisions:  decision.NewService(log, st.Manuscripts, st.Assignments, st.Drafts, st.Audit, st.Outbox, st.Tx, machine),
		Production: production.NewService(log, st.Manuscripts, st.Cycles, st.Tasks, st.Audit, st.Outbox, st.Tx, machine, cycles),
		Tasks:      task.NewService(log, st.Manuscripts, st.Tasks, st.Audit, st.Outbox, st.Tx, clock),
		Users:      user.NewService(log, st.Users, st.Audit, st.Tx, clock),
	}
}

// HTTPConfig is the subset of configuration the HTTP handler depends on.
type HTTPConfig struct {
	CORS      config.CORSConfig
	RateLimit config.RateLimitConfig
	// Clock drives rate-limit refill; the real clock when nil.
	Clock clockwork.Clock
}

// NewHTTPHandler mounts the REST API behind the middleware chain:
// Recovery, RequestID, Logger, CORS, RateLimit, then Auth on API routes.
// The returned limiter must be stopped by the caller.
func NewHTTPHandler(
	log *slog.Logger,
	svc *Services,
	st *Storage,
	validator middleware.TokenValidator,
	cfg HTTPConfig,
) (http.Handler, *middleware.RateLimiter) {
	router := rest.NewRouter(rest.Handlers{
		Health:      rest.NewHealthHandler(st, BuildVersion()),
		Manuscripts: rest.NewManuscriptHandler(svc.Manuscripts, log),
		Reviews:     rest.NewReviewHandler(svc.Reviews, log),
		Decisions:   rest.NewDecisionHandler(svc.Decisions, log),
		Production:  rest.NewProductionHandler(svc.Production, log),
		Tasks:       rest.NewTaskHandler(svc.Tasks, log),
		Users:       rest.NewUserHandler(svc.Users, log),
	}, middleware.Auth(validator))

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	limiter := middleware.NewRateLimiter(clock, cfg.RateLimit.CleanupInterval)
	chain := middleware.Chain(
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS(cfg.CORS),
		limiter.Limit(cfg.RateLimit.RequestsPerMinute, "/live", "/ready", "/health"),
	)
	return chain(router), limiter
}
