package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory reads accounts and roles from the portal database.
//
// The pgx pool is owned by the caller; the directory never closes it.
// The users table carries both the role_id column and the legacy boolean
// flags; rows migrated from the old schema have role_id NULL.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory constructs a PostgresDirectory.
func NewPostgresDirectory(pool *pgxpool.Pool) (*PostgresDirectory, error) {
	if pool == nil {
		return nil, ErrConfig
	}
	return &PostgresDirectory{pool: pool}, nil
}

const userColumns = `id, email, COALESCE(full_name, ''), password, enabled,
       role_id, COALESCE(institution_id::text, ''),
       is_admin, is_institution_manager, is_coordinator,
       is_guardian, is_teacher, is_student`

// FindByEmail returns the user with the given email, matched
// case-insensitively.
func (d *PostgresDirectory) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT `+userColumns+`
		   FROM users
		  WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email),
	)
	return scanUser(row)
}

// FindByID returns the user with the given ID.
func (d *PostgresDirectory) FindByID(ctx context.Context, id string) (UserRecord, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT `+userColumns+`
		   FROM users
		  WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

// AssignDefaultRole sets role_id on the user iff no role is assigned yet.
// A zero-row update against an existing user means another login already
// assigned one, which is fine.
func (d *PostgresDirectory) AssignDefaultRole(ctx context.Context, userID, roleID string) error {
	ct, err := d.pool.Exec(ctx,
		`UPDATE users
		    SET role_id = $2, last_updated = now()
		  WHERE id = $1
		    AND role_id IS NULL`,
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("assign default role: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("assign default role: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var (
		u      UserRecord
		roleID *string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Enabled,
		&roleID, &u.InstitutionID,
		&u.IsAdmin, &u.IsInstitutionManager, &u.IsCoordinator,
		&u.IsGuardian, &u.IsTeacher, &u.IsStudent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("user lookup: %w", err)
	}
	if roleID != nil {
		u.RoleID = *roleID
	}
	return u, nil
}

// PostgresRoles resolves roles and their permissions from the roles and
// role_permissions tables.
type PostgresRoles struct {
	pool *pgxpool.Pool
}

// NewPostgresRoles constructs a PostgresRoles.
func NewPostgresRoles(pool *pgxpool.Pool) (*PostgresRoles, error) {
	if pool == nil {
		return nil, ErrConfig
	}
	return &PostgresRoles{pool: pool}, nil
}

// FindByID returns the role with the given ID.
func (d *PostgresRoles) FindByID(ctx context.Context, id string) (RoleRecord, error) {
	return d.findRole(ctx, `r.id = $1`, id)
}

// FindByName returns the role with the given name.
func (d *PostgresRoles) FindByName(ctx context.Context, name string) (RoleRecord, error) {
	return d.findRole(ctx, `r.name = $1`, name)
}

func (d *PostgresRoles) findRole(ctx context.Context, where string, arg any) (RoleRecord, error) {
	var r RoleRecord
	err := d.pool.QueryRow(ctx,
		`SELECT r.id, r.name,
		        COALESCE(array_agg(rp.permission ORDER BY rp.permission)
		                 FILTER (WHERE rp.permission IS NOT NULL), '{}')
		   FROM roles r
		   LEFT JOIN role_permissions rp ON rp.role_id = r.id
		  WHERE `+where+`
		  GROUP BY r.id, r.name`,
		arg,
	).Scan(&r.ID, &r.Name, &r.Permissions)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoleRecord{}, ErrRoleNotFound
	}
	if err != nil {
		return RoleRecord{}, fmt.Errorf("role lookup: %w", err)
	}
	return r, nil
}
