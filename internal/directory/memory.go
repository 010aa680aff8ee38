package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process UserDirectory and RoleDirectory for
// development and tests. Emails are matched case-insensitively, as in the
// Postgres store.
type MemoryDirectory struct {
	mu      sync.Mutex
	users   map[string]UserRecord // by ID
	byEmail map[string]string     // lower(email) -> ID
	roles   map[string]RoleRecord // by ID
	byName  map[string]string     // name -> ID
}

// NewMemoryDirectory constructs an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:   make(map[string]UserRecord),
		byEmail: make(map[string]string),
		roles:   make(map[string]RoleRecord),
		byName:  make(map[string]string),
	}
}

// PutUser inserts or replaces a user, allocating an ID if missing.
func (d *MemoryDirectory) PutUser(u UserRecord) UserRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if old, ok := d.users[u.ID]; ok {
		delete(d.byEmail, strings.ToLower(old.Email))
	}
	d.users[u.ID] = u
	d.byEmail[strings.ToLower(u.Email)] = u.ID
	return u
}

// PutRole inserts or replaces a role, allocating an ID if missing.
func (d *MemoryDirectory) PutRole(r RoleRecord) RoleRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if old, ok := d.roles[r.ID]; ok {
		delete(d.byName, old.Name)
	}
	d.roles[r.ID] = r
	d.byName[r.Name] = r.ID
	return r
}

// SeedBuiltinRoles inserts every built-in role with its default permission
// set. Convenient for the dev profile where no roles table exists.
func (d *MemoryDirectory) SeedBuiltinRoles() {
	for name := range defaultPermissions {
		r, _ := BuiltinRole(name)
		d.PutRole(r)
	}
}

// FindByEmail returns the user with the given email.
func (d *MemoryDirectory) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return UserRecord{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.byEmail[strings.ToLower(email)]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return d.users[id], nil
}

// FindByID returns the user with the given ID.
func (d *MemoryDirectory) FindByID(ctx context.Context, id string) (UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return UserRecord{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

// AssignDefaultRole sets roleID on the user iff no role is assigned yet.
func (d *MemoryDirectory) AssignDefaultRole(ctx context.Context, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if u.RoleID != "" {
		return nil
	}
	u.RoleID = roleID
	d.users[userID] = u
	return nil
}

// FindRoleByID returns the role with the given ID.
func (d *MemoryDirectory) FindRoleByID(ctx context.Context, id string) (RoleRecord, error) {
	if err := ctx.Err(); err != nil {
		return RoleRecord{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.roles[id]
	if !ok {
		return RoleRecord{}, ErrRoleNotFound
	}
	return r, nil
}

// FindRoleByName returns the role with the given name.
func (d *MemoryDirectory) FindRoleByName(ctx context.Context, name string) (RoleRecord, error) {
	if err := ctx.Err(); err != nil {
		return RoleRecord{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.byName[name]
	if !ok {
		return RoleRecord{}, ErrRoleNotFound
	}
	return d.roles[id], nil
}

// Roles adapts the directory to the RoleDirectory interface.
func (d *MemoryDirectory) Roles() RoleDirectory { return memoryRoles{d} }

type memoryRoles struct{ d *MemoryDirectory }

func (r memoryRoles) FindByID(ctx context.Context, id string) (RoleRecord, error) {
	return r.d.FindRoleByID(ctx, id)
}

func (r memoryRoles) FindByName(ctx context.Context, name string) (RoleRecord, error) {
	return r.d.FindRoleByName(ctx, name)
}
