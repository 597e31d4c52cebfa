package groups

import "time"

// Kinds of groups. A user group collects user ids, a role group collects
// role ids; both take bulk permission grants.
const (
	KindUser = "user"
	KindRole = "role"
)

// Group is a named user or role set for bulk permission assignment. Members
// are user ids or role ids depending on the kind.
type Group struct {
	ID        int64
	Name      string
	Kind      string
	CreatedAt time.Time
}
