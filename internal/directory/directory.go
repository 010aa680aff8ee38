// Package directory defines the user/role lookup interfaces the auth core
// consumes, plus the Postgres-backed implementation the portal uses and an
// in-memory implementation for development and tests.
//
// The auth core never mutates directory state except for the one-time
// default-role assignment performed during login migration.
package directory

import "context"

// UserRecord is the account row as the auth core sees it. The legacy
// boolean flags predate the roles table and are only consulted when RoleID
// is empty.
type UserRecord struct {
	ID            string
	Email         string
	FullName      string
	PasswordHash  string
	Enabled       bool
	RoleID        string
	InstitutionID string

	IsAdmin              bool
	IsInstitutionManager bool
	IsCoordinator        bool
	IsGuardian           bool
	IsTeacher            bool
	IsStudent            bool
}

// RoleRecord is a named permission set. Immutable from the core's
// perspective.
type RoleRecord struct {
	ID          string
	Name        string
	Permissions []string
}

// UserDirectory is the account lookup interface consumed by login, refresh
// and the gateway's optional liveness check.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	FindByID(ctx context.Context, id string) (UserRecord, error)

	// AssignDefaultRole sets roleID on the user iff no role is assigned yet.
	// Idempotent; the one-time legacy migration step invoked from login.
	AssignDefaultRole(ctx context.Context, userID, roleID string) error
}

// RoleDirectory resolves roles to their permission sets.
type RoleDirectory interface {
	FindByID(ctx context.Context, id string) (RoleRecord, error)
	FindByName(ctx context.Context, name string) (RoleRecord, error)
}
