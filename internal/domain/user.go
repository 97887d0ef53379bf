package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a person known to the editorial office. Identities are issued by
// the external identity provider; this record mirrors the profile the engine
// needs for policy checks and notifications.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Roles     []Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
