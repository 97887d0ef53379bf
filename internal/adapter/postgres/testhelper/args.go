package testhelper

import "github.com/google/uuid"

// UUIDArg matches a query argument carrying id. squirrel.Eq resolves
// driver.Valuer values before binding, so ids in WHERE clauses arrive as
// their string form while inserted ids stay uuid.UUID.
func UUIDArg(id uuid.UUID) uuidArg {
	return uuidArg(id)
}

type uuidArg uuid.UUID

// Match implements pgxmock.Argument.
func (a uuidArg) Match(v any) bool {
	switch x := v.(type) {
	case uuid.UUID:
		return x == uuid.UUID(a)
	case string:
		return x == uuid.UUID(a).String()
	}
	return false
}
