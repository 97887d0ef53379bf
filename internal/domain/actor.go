package domain

import (
	"slices"

	"github.com/google/uuid"
)

// Role is an editorial role held by a user.
type Role string

const (
	RoleAuthor           Role = "author"
	RoleAssistantEditor  Role = "assistant_editor"
	RoleManagingEditor   Role = "managing_editor"
	RoleEditorInChief    Role = "editor_in_chief"
	RoleReviewer         Role = "reviewer"
	RoleProductionEditor Role = "production_editor"
	RoleAdmin            Role = "admin"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RoleAuthor, RoleAssistantEditor, RoleManagingEditor, RoleEditorInChief,
		RoleReviewer, RoleProductionEditor, RoleAdmin:
		return true
	}
	return false
}

// IsInternal reports whether the role belongs to the editorial office.
func (r Role) IsInternal() bool {
	switch r {
	case RoleAssistantEditor, RoleManagingEditor, RoleEditorInChief, RoleProductionEditor, RoleAdmin:
		return true
	}
	return false
}

// Capability is a single permission checked by transition guards.
type Capability string

const (
	CapAssign            Capability = "can_assign"
	CapPrecheck          Capability = "can_precheck"
	CapTechnicalCheck    Capability = "can_technical_check"
	CapAcademicCheck     Capability = "can_academic_check"
	CapInviteReviewer    Capability = "can_invite_reviewer"
	CapOverrideCooldown  Capability = "can_override_cooldown"
	CapDecide            Capability = "can_decide"
	CapViewEditorial     Capability = "can_view_editorial"
	CapManageProduction  Capability = "can_manage_production"
	CapApproveProduction Capability = "can_approve_production"
	CapConfirmPayment    Capability = "can_confirm_payment"
	CapEditTask          Capability = "can_edit_task"
)

var roleCapabilities = map[Role][]Capability{
	RoleAssistantEditor: {
		CapPrecheck, CapTechnicalCheck, CapInviteReviewer, CapViewEditorial,
	},
	RoleManagingEditor: {
		CapAssign, CapPrecheck, CapInviteReviewer, CapOverrideCooldown, CapDecide,
		CapViewEditorial, CapManageProduction, CapApproveProduction, CapConfirmPayment,
		CapEditTask,
	},
	RoleEditorInChief: {
		CapAssign, CapPrecheck, CapAcademicCheck, CapInviteReviewer, CapOverrideCooldown,
		CapDecide, CapViewEditorial, CapEditTask,
	},
	RoleProductionEditor: {
		CapViewEditorial, CapManageProduction, CapApproveProduction,
	},
	RoleAdmin: {
		CapAssign, CapPrecheck, CapTechnicalCheck, CapAcademicCheck, CapInviteReviewer,
		CapOverrideCooldown, CapDecide, CapViewEditorial, CapManageProduction,
		CapApproveProduction, CapConfirmPayment, CapEditTask,
	},
}

// CapabilitySet is the resolved set of capabilities of one actor.
type CapabilitySet map[Capability]struct{}

// ResolveCapabilities computes the capability set for the given roles.
// Unknown roles grant nothing.
func ResolveCapabilities(roles []Role) CapabilitySet {
	set := make(CapabilitySet)
	for _, r := range roles {
		for _, c := range roleCapabilities[r] {
			set[c] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Actor is the authenticated user performing an action, with capabilities
// resolved once per request.
type Actor struct {
	ID    uuid.UUID
	Email string
	Roles []Role
	Caps  CapabilitySet
}

// NewActor builds an Actor and resolves its capabilities.
func NewActor(id uuid.UUID, email string, roles []Role) Actor {
	return Actor{
		ID:    id,
		Email: email,
		Roles: roles,
		Caps:  ResolveCapabilities(roles),
	}
}

// Can reports whether the actor holds capability c.
func (a Actor) Can(c Capability) bool {
	return a.Caps.Has(c)
}

// HasRole reports whether the actor holds role r.
func (a Actor) HasRole(r Role) bool {
	return slices.Contains(a.Roles, r)
}

// IsInternalEditorFor reports whether the actor acts as an internal editor
// on the given manuscript: a role-scoped task editor, or the manuscript's
// owner or handling editor.
func (a Actor) IsInternalEditorFor(m *Manuscript) bool {
	if a.Can(CapEditTask) {
		return true
	}
	if m == nil {
		return false
	}
	if m.OwnerID != nil && *m.OwnerID == a.ID {
		return true
	}
	return m.EditorID != nil && *m.EditorID == a.ID
}
