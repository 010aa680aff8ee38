package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"eduportal/internal/auth/revocation"
	"eduportal/internal/auth/token"
	"eduportal/internal/directory"
)

// Service orchestrates login, refresh, logout and logout-all.
//
// The directory is the only external I/O on these paths; every lookup runs
// under the configured DirectoryTimeout and a deadline maps to
// ErrDirectoryTimeout, never to a credential failure.
type Service struct {
	cfg     Config
	codec   *token.Codec
	fp      *token.Fingerprinter
	store   Store
	revoked revocation.Store
	users   directory.UserDirectory
	roles   directory.RoleDirectory
	log     *slog.Logger
}

// NewService constructs a Service. All collaborators are required.
func NewService(
	cfg Config,
	codec *token.Codec,
	fp *token.Fingerprinter,
	store Store,
	revoked revocation.Store,
	users directory.UserDirectory,
	roles directory.RoleDirectory,
	log *slog.Logger,
) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if codec == nil || fp == nil || store == nil || revoked == nil || users == nil || roles == nil {
		return nil, ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		codec:   codec,
		fp:      fp,
		store:   store,
		revoked: revoked,
		users:   users,
		roles:   roles,
		log:     log,
	}, nil
}

// Store exposes the session registry, for the gateway and admin surfaces.
func (s *Service) Store() Store { return s.store }

// LoginInput carries the credentials and client context of a login attempt.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	Device     DeviceInfo
}

// Subject is the resolved identity returned to the client after login.
type Subject struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	FullName      string   `json:"full_name,omitempty"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions"`
	InstitutionID string   `json:"institution_id,omitempty"`
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	SessionID    string
	Subject      Subject
}

// Login authenticates the credentials, creates a session and issues both
// tokens. Unknown email and wrong password are indistinguishable to the
// caller and cost the same wall time.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	user, err := s.findByEmail(ctx, in.Email)
	if errors.Is(err, directory.ErrUserNotFound) {
		directory.VerifyDummy(in.Password)
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}

	ok, err := directory.VerifyPassword(user.PasswordHash, in.Password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("password check: %w", err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.Enabled {
		return LoginResult{}, ErrUserInactive
	}

	role, err := s.resolveRole(ctx, &user)
	if err != nil {
		return LoginResult{}, err
	}

	subject := subjectOf(user, role)
	now := s.codec.Now()

	// The session ID is allocated up front so the refresh token can embed it
	// before the session row exists.
	sessionID := uuid.NewString()

	refreshTok, _, err := s.codec.IssueRefresh(user.ID, sessionID)
	if err != nil {
		return LoginResult{}, err
	}

	sess, err := s.store.Create(ctx, now, CreateInput{
		ID:                 sessionID,
		SubjectID:          user.ID,
		RememberMe:         in.RememberMe,
		Device:             in.Device,
		RefreshFingerprint: s.fp.Fingerprint(refreshTok),
	})
	if err != nil {
		return LoginResult{}, err
	}

	accessTok, accessExp, err := s.codec.IssueAccess(token.Subject{
		ID:          user.ID,
		Email:       user.Email,
		Role:        role.Name,
		Permissions: role.Permissions,
	}, sess.ID)
	if err != nil {
		return LoginResult{}, err
	}

	s.log.InfoContext(ctx, "login succeeded",
		slog.String("subject_id", user.ID),
		slog.String("session_id", sess.ID),
		slog.String("role", role.Name),
		slog.Bool("remember_me", in.RememberMe),
	)

	return LoginResult{
		AccessToken:  accessTok,
		RefreshToken: refreshTok,
		ExpiresAt:    accessExp,
		SessionID:    sess.ID,
		Subject:      subject,
	}, nil
}

// RefreshResult is the outcome of a successful token refresh.
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Refresh exchanges a valid refresh token for a new access token bound to
// the same session, extending the session's activity window. The refresh
// token itself is not rotated; it stays bound to the session it opened.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{}, err
	}

	now := s.codec.Now()

	sess, err := s.store.Get(ctx, now, claims.SessionID)
	if err != nil {
		return RefreshResult{}, err
	}
	if sess.SubjectID != claims.Subject {
		return RefreshResult{}, ErrSessionNotFound
	}
	// A mismatched fingerprint means this token never opened this session.
	if sess.RefreshFingerprint != s.fp.Fingerprint(refreshToken) {
		return RefreshResult{}, ErrSessionNotFound
	}

	user, err := s.findByID(ctx, claims.Subject)
	if errors.Is(err, directory.ErrUserNotFound) {
		return RefreshResult{}, ErrUserInactive
	}
	if err != nil {
		return RefreshResult{}, err
	}
	if !user.Enabled {
		return RefreshResult{}, ErrUserInactive
	}

	role, err := s.resolveRole(ctx, &user)
	if err != nil {
		return RefreshResult{}, err
	}

	accessTok, accessExp, err := s.codec.IssueAccess(token.Subject{
		ID:          user.ID,
		Email:       user.Email,
		Role:        role.Name,
		Permissions: role.Permissions,
	}, sess.ID)
	if err != nil {
		return RefreshResult{}, err
	}

	if _, err := s.store.Touch(ctx, now, sess.ID); err != nil {
		return RefreshResult{}, err
	}

	s.log.DebugContext(ctx, "access token refreshed",
		slog.String("subject_id", user.ID),
		slog.String("session_id", sess.ID),
	)

	return RefreshResult{AccessToken: accessTok, ExpiresAt: accessExp}, nil
}

// Logout revokes the presented access token until its natural expiry and
// deletes its session. The refresh token dies with the session.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return err
	}

	if err := s.revoked.Revoke(ctx, s.fp.Fingerprint(accessToken), claims.ExpiresAt.Time); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, claims.SessionID); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "logout",
		slog.String("subject_id", claims.Subject),
		slog.String("session_id", claims.SessionID),
	)
	return nil
}

// LogoutAll deletes every session owned by subjectID and reports how many
// were removed. Outstanding access tokens die on their next session check;
// no per-token revocation entries are needed.
func (s *Service) LogoutAll(ctx context.Context, subjectID string) (int, error) {
	count, err := s.store.DeleteAllForSubject(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	s.log.InfoContext(ctx, "logout all",
		slog.String("subject_id", subjectID),
		slog.Int("removed_sessions", count),
	)
	return count, nil
}

// resolveRole returns the user's effective role. Accounts predating the
// roles table carry only boolean flags; the derived role is persisted once
// so the migration runs a single time per account.
func (s *Service) resolveRole(ctx context.Context, user *directory.UserRecord) (directory.RoleRecord, error) {
	if user.RoleID != "" {
		role, err := s.findRoleByID(ctx, user.RoleID)
		if err == nil {
			return role, nil
		}
		if !errors.Is(err, directory.ErrRoleNotFound) {
			return directory.RoleRecord{}, err
		}
		// Dangling role_id; fall through to the legacy flags.
	}

	name, ok := directory.LegacyRoleName(*user)
	if !ok {
		return directory.RoleRecord{}, ErrNoRoleAssigned
	}

	role, err := s.findRoleByName(ctx, name)
	switch {
	case err == nil:
		if user.RoleID == "" {
			if aerr := s.users.AssignDefaultRole(ctx, user.ID, role.ID); aerr != nil {
				s.log.WarnContext(ctx, "default role assignment failed",
					slog.String("subject_id", user.ID),
					slog.String("role", role.Name),
					slog.Any("error", aerr),
				)
			} else {
				user.RoleID = role.ID
				s.log.InfoContext(ctx, "default role assigned",
					slog.String("subject_id", user.ID),
					slog.String("role", role.Name),
				)
			}
		}
		return role, nil
	case errors.Is(err, directory.ErrRoleNotFound):
		// No roles table row yet; serve the built-in permission set without
		// persisting anything.
		role, _ := directory.BuiltinRole(name)
		return role, nil
	default:
		return directory.RoleRecord{}, err
	}
}

func subjectOf(u directory.UserRecord, r directory.RoleRecord) Subject {
	return Subject{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          r.Name,
		Permissions:   r.Permissions,
		InstitutionID: u.InstitutionID,
	}
}

func (s *Service) findByEmail(ctx context.Context, email string) (directory.UserRecord, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DirectoryTimeout)
	defer cancel()
	u, err := s.users.FindByEmail(dctx, email)
	return u, s.mapDirectoryErr(ctx, err)
}

func (s *Service) findByID(ctx context.Context, id string) (directory.UserRecord, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DirectoryTimeout)
	defer cancel()
	u, err := s.users.FindByID(dctx, id)
	return u, s.mapDirectoryErr(ctx, err)
}

func (s *Service) findRoleByID(ctx context.Context, id string) (directory.RoleRecord, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DirectoryTimeout)
	defer cancel()
	r, err := s.roles.FindByID(dctx, id)
	return r, s.mapDirectoryErr(ctx, err)
}

func (s *Service) findRoleByName(ctx context.Context, name string) (directory.RoleRecord, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DirectoryTimeout)
	defer cancel()
	r, err := s.roles.FindByName(dctx, name)
	return r, s.mapDirectoryErr(ctx, err)
}

// mapDirectoryErr turns a blown lookup deadline into ErrDirectoryTimeout.
// A cancellation of the parent request context passes through untouched.
func (s *Service) mapDirectoryErr(parent context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return ErrDirectoryTimeout
	}
	return err
}
