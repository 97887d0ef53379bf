package workflow

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// PolicyConfig holds the reviewer invite policy constants.
type PolicyConfig struct {
	CooldownWindow       time.Duration
	MaxActiveAssignments int
}

// InviteFacts is everything the policy needs to know about one
// (manuscript, reviewer) pair.
type InviteFacts struct {
	Manuscript *domain.Manuscript
	Reviewer   domain.User
	// History holds the reviewer's assignments on this manuscript.
	History []domain.ReviewAssignment
	// Active holds the reviewer's active assignments across all manuscripts.
	Active []domain.ReviewAssignment
}

// PolicyEngine evaluates reviewer invites. Snapshots are computed fresh on
// every call.
type PolicyEngine struct {
	cfg   PolicyConfig
	clock clockwork.Clock
}

// NewPolicyEngine creates a PolicyEngine.
func NewPolicyEngine(cfg PolicyConfig, clock clockwork.Clock) *PolicyEngine {
	return &PolicyEngine{cfg: cfg, clock: clock}
}

// Evaluate computes the invite policy snapshot for the given facts and actor.
func (p *PolicyEngine) Evaluate(f InviteFacts, actor domain.Actor) domain.InvitePolicySnapshot {
	now := p.clock.Now().UTC()
	ms := f.Manuscript

	snap := domain.InvitePolicySnapshot{
		ManuscriptID:          ms.ID,
		ReviewerID:            f.Reviewer.ID,
		ActiveAssignmentCount: len(f.Active),
		AllowOverride:         actor.Can(domain.CapOverrideCooldown),
		EvaluatedAt:           now,
	}

	snap.Conflict = ms.HasAuthor(f.Reviewer.ID, f.Reviewer.Email) ||
		(ms.OwnerID != nil && *ms.OwnerID == f.Reviewer.ID)

	var until *time.Time
	for _, a := range f.History {
		respondedAt := responseTime(a)
		if respondedAt == nil {
			continue
		}
		end := respondedAt.Add(p.cfg.CooldownWindow)
		if end.After(now) && (until == nil || end.After(*until)) {
			u := end
			until = &u
		}
	}
	if until != nil {
		reason := domain.CooldownRecentResponse
		snap.CooldownActive = true
		snap.CooldownUntil = until
		snap.CooldownReason = &reason
	} else if p.cfg.MaxActiveAssignments > 0 && len(f.Active) >= p.cfg.MaxActiveAssignments {
		reason := domain.CooldownActiveLoad
		snap.CooldownActive = true
		snap.CooldownReason = &reason
	}

	for i := range f.Active {
		if f.Active[i].IsOverdue(now) {
			snap.OverdueOpenCount++
		}
	}

	snap.CanAssign = !snap.Conflict && (!snap.CooldownActive || snap.AllowOverride)
	return snap
}

// responseTime returns when the reviewer completed or declined the
// assignment, nil if it is still open.
func responseTime(a domain.ReviewAssignment) *time.Time {
	switch a.Status {
	case domain.AssignmentCompleted:
		if a.CompletedAt != nil {
			return a.CompletedAt
		}
		return a.RespondedAt
	case domain.AssignmentDeclined:
		return a.RespondedAt
	}
	return nil
}

// CheckInvite turns a snapshot into an invite decision. A conflict of
// interest is never overridable; an active cooldown passes only when override
// is requested by an actor allowed to override.
func CheckInvite(snap domain.InvitePolicySnapshot, override bool) error {
	if snap.Conflict {
		return &domain.PolicyError{
			Code:       domain.PolicyConflictOfInterest,
			ReviewerID: snap.ReviewerID,
		}
	}
	if snap.CooldownActive && !(override && snap.AllowOverride) {
		return &domain.PolicyError{
			Code:          domain.PolicyCooldownActive,
			ReviewerID:    snap.ReviewerID,
			CooldownUntil: snap.CooldownUntil,
			Overridable:   snap.AllowOverride,
		}
	}
	return nil
}
