package rbac

import "time"

// Role is a node in the role-inheritance graph. ParentID links to the role it
// inherits permissions from; nil marks a root.
type Role struct {
	ID          int64
	Name        string
	Description string
	ParentID    *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability. Severity is administrative
// display metadata; authorization decisions never consult it.
type Permission struct {
	ID          int64
	Name        string
	Description string
	Severity    string
}

// Group kinds in the grant graph. The groups package administers the rows;
// resolution only filters on them.
const (
	GroupKindUser = "user"
	GroupKindRole = "role"
)
