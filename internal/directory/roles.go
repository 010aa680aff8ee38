package directory

// Role names used across the portal. Accounts created before the roles
// table existed carry only the boolean flags on UserRecord; LegacyRoleName
// maps those flags to one of these.
const (
	RoleSystemAdmin        = "SYSTEM_ADMIN"
	RoleInstitutionManager = "INSTITUTION_MANAGER"
	RoleCoordinator        = "COORDINATOR"
	RoleGuardian           = "GUARDIAN"
	RoleTeacher            = "TEACHER"
	RoleStudent            = "STUDENT"
)

// defaultPermissions holds the permission set granted with each built-in
// role when the role is derived from legacy flags rather than read from the
// roles table.
var defaultPermissions = map[string][]string{
	RoleSystemAdmin: {
		"system:admin",
		"users:create", "users:read", "users:update", "users:delete",
		"institutions:create", "institutions:read", "institutions:update", "institutions:delete",
		"courses:create", "courses:read", "courses:update", "courses:delete",
		"content:create", "content:read", "content:update", "content:delete",
		"analytics:read", "system:settings", "logs:read",
		"teachers:create", "teachers:read", "teachers:update", "teachers:delete",
		"students:create", "students:read", "students:update", "students:delete",
		"assignments:create", "assignments:read", "assignments:update", "assignments:delete",
		"grades:create", "grades:read", "grades:update", "grades:delete",
		"reports:create", "reports:read", "reports:update", "reports:delete",
		"settings:create", "settings:read", "settings:update", "settings:delete",
		"roles:create", "roles:read", "roles:update", "roles:delete",
		"permissions:create", "permissions:read", "permissions:update", "permissions:delete",
		"groups:create", "groups:read", "groups:update", "groups:delete",
		"notifications:create", "notifications:read", "notifications:update", "notifications:delete",
		"attendance:create", "attendance:read", "attendance:update", "attendance:delete",
		"profile:read", "profile:update",
		"modules:create", "modules:read", "modules:update", "modules:delete",
		"lessons:create", "lessons:read", "lessons:update", "lessons:delete",
		"books:create", "books:read", "books:update", "books:delete",
		"videos:create", "videos:read", "videos:update", "videos:delete",
		"collections:create", "collections:read", "collections:update", "collections:delete",
		"forum:create", "forum:read", "forum:update", "forum:delete",
		"chats:create", "chats:read", "chats:update", "chats:delete",
		"quizzes:create", "quizzes:read", "quizzes:update", "quizzes:delete",
		"certificates:create", "certificates:read", "certificates:update", "certificates:delete",
		"backup:create", "backup:read", "backup:restore",
		"maintenance:read", "maintenance:update",
		"monitoring:read", "security:read", "security:update",
	},
	RoleInstitutionManager: {
		"institution:admin",
		"users:create", "users:read", "users:update",
		"courses:create", "courses:read", "courses:update",
		"content:create", "content:read", "content:update",
		"teachers:read", "teachers:update",
		"students:read", "students:update",
		"analytics:read", "reports:read",
		"settings:read", "settings:update",
	},
	RoleCoordinator: {
		"courses:read", "courses:update",
		"content:read", "content:update",
		"students:read", "students:update",
		"teachers:read",
		"assignments:read", "assignments:update",
		"grades:read",
		"reports:read",
		"analytics:read",
	},
	RoleGuardian: {
		"students:read",
		"courses:read",
		"content:read",
		"assignments:read",
		"grades:read",
		"attendance:read",
		"reports:read",
		"profile:read", "profile:update",
		"notifications:read",
	},
	RoleTeacher: {
		"courses:create", "courses:read", "courses:update",
		"content:create", "content:read", "content:update",
		"students:read", "students:update",
		"assignments:create", "assignments:read", "assignments:update",
		"grades:create", "grades:read", "grades:update",
	},
	RoleStudent: {
		"courses:read",
		"content:read",
		"assignments:read", "assignments:submit",
		"grades:read",
		"profile:read", "profile:update",
	},
}

// LegacyRoleName derives the role from the account's boolean flags.
// Flags are checked in decreasing privilege order so an account carrying
// several resolves to the most privileged one. Returns false when no flag
// is set.
func LegacyRoleName(u UserRecord) (string, bool) {
	switch {
	case u.IsAdmin:
		return RoleSystemAdmin, true
	case u.IsInstitutionManager:
		return RoleInstitutionManager, true
	case u.IsCoordinator:
		return RoleCoordinator, true
	case u.IsGuardian:
		return RoleGuardian, true
	case u.IsTeacher:
		return RoleTeacher, true
	case u.IsStudent:
		return RoleStudent, true
	default:
		return "", false
	}
}

// BuiltinRole returns the in-code RoleRecord for one of the role name
// constants. Used when the roles table has no row for a built-in role yet.
// Returns false for unknown names.
func BuiltinRole(name string) (RoleRecord, bool) {
	perms, ok := defaultPermissions[name]
	if !ok {
		return RoleRecord{}, false
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return RoleRecord{Name: name, Permissions: out}, true
}
