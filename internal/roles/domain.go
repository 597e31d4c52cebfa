package roles

import "time"

// Role represents a role for management. ParentID links the inheritance
// chain administered here and consumed by authorization.
type Role struct {
	ID          int64
	Name        string
	Description string
	ParentID    *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
