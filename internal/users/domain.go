package users

import "time"

// User represents a directory entry. Accounts are provisioned by the
// platform's identity backend; this service only reads them so administrators
// can pick assignment targets.
type User struct {
	ID        int64
	OrgID     int64
	Email     string
	Name      string
	IsActive  bool
	RoleNames []string
	CreatedAt time.Time
	UpdatedAt time.Time
}
