package rest

import "net/http"

// Handlers groups every handler mounted by NewRouter.
type Handlers struct {
	Health      *HealthHandler
	Manuscripts *ManuscriptHandler
	Reviews     *ReviewHandler
	Decisions   *DecisionHandler
	Production  *ProductionHandler
	Tasks       *TaskHandler
	Users       *UserHandler
}

// NewRouter registers all routes. Health endpoints are public; every other route runs
// behind auth.
func NewRouter(h Handlers, auth func(http.Handler) http.Handler) *http.ServeMux {
	api := http.NewServeMux()

	api.HandleFunc("GET /me", h.Users.Me)
	api.HandleFunc("PUT /me", h.Users.SyncMe)
	api.HandleFunc("GET /users", h.Users.List)
	api.HandleFunc("PUT /users/{id}/roles", h.Users.SetRoles)

	api.HandleFunc("POST /manuscripts", h.Manuscripts.Submit)
	api.HandleFunc("GET /manuscripts/{id}", h.Manuscripts.Get)
	api.HandleFunc("GET /manuscripts/{id}/history", h.Manuscripts.History)
	api.HandleFunc("POST /manuscripts/{id}/precheck", h.Manuscripts.QuickPrecheck)
	api.HandleFunc("POST /manuscripts/{id}/precheck/technical", h.Manuscripts.TechnicalCheck)
	api.HandleFunc("POST /manuscripts/{id}/precheck/academic", h.Manuscripts.AcademicCheck)
	api.HandleFunc("POST /manuscripts/{id}/assign-ae", h.Manuscripts.AssignAE)
	api.HandleFunc("POST /manuscripts/{id}/owner", h.Manuscripts.BindOwner)
	api.HandleFunc("POST /manuscripts/{id}/editor", h.Manuscripts.BindEditor)
	api.HandleFunc("POST /manuscripts/{id}/resubmit", h.Manuscripts.Resubmit)
	api.HandleFunc("POST /manuscripts/{id}/restart-review", h.Manuscripts.RestartReview)

	api.HandleFunc("GET /manuscripts/{id}/reviewers/{reviewerId}/policy", h.Reviews.Policy)
	api.HandleFunc("POST /manuscripts/{id}/reviewers", h.Reviews.Invite)
	api.HandleFunc("GET /manuscripts/{id}/assignments", h.Reviews.List)
	api.HandleFunc("POST /assignments/{id}/accept", h.Reviews.Accept)
	api.HandleFunc("POST /assignments/{id}/decline", h.Reviews.Decline)
	api.HandleFunc("POST /assignments/{id}/report", h.Reviews.Report)

	api.HandleFunc("PUT /manuscripts/{id}/decision/draft", h.Decisions.SaveDraft)
	api.HandleFunc("GET /manuscripts/{id}/decision/draft", h.Decisions.GetDraft)
	api.HandleFunc("POST /manuscripts/{id}/decision/final", h.Decisions.SubmitFinal)
	api.HandleFunc("GET /manuscripts/{id}/decision/letters", h.Decisions.Letters)

	api.HandleFunc("POST /manuscripts/{id}/production/advance", h.Production.Advance)
	api.HandleFunc("POST /manuscripts/{id}/production/revert", h.Production.Revert)
	api.HandleFunc("POST /manuscripts/{id}/production/payment", h.Production.Payment)
	api.HandleFunc("POST /manuscripts/{id}/production/final-file", h.Production.FinalFile)
	api.HandleFunc("POST /manuscripts/{id}/production/cycles", h.Production.OpenCycle)
	api.HandleFunc("GET /manuscripts/{id}/production/cycles", h.Production.ListCycles)
	api.HandleFunc("POST /manuscripts/{id}/production/cycles/{cycleId}/proof", h.Production.SendProof)
	api.HandleFunc("POST /manuscripts/{id}/production/cycles/{cycleId}/proofreading", h.Production.Proofreading)
	api.HandleFunc("POST /manuscripts/{id}/production/cycles/{cycleId}/layout-revision", h.Production.LayoutRevision)
	api.HandleFunc("POST /manuscripts/{id}/production/cycles/{cycleId}/approve", h.Production.Approve)

	api.HandleFunc("GET /manuscripts/{id}/tasks", h.Tasks.List)
	api.HandleFunc("POST /manuscripts/{id}/tasks", h.Tasks.Create)
	api.HandleFunc("PATCH /tasks/{id}", h.Tasks.Patch)
	api.HandleFunc("GET /tasks/summary", h.Tasks.Summaries)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /live", h.Health.Live)
	mux.HandleFunc("GET /ready", h.Health.Ready)
	mux.HandleFunc("GET /health", h.Health.Health)
	mux.Handle("/", auth(api))

	return mux
}
