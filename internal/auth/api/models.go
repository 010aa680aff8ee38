package authapi

import (
	"time"

	"eduportal/internal/auth/session"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	FullName      string   `json:"fullName,omitempty"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions"`
	InstitutionID string   `json:"institutionId,omitempty"`
}

type loginResponse struct {
	Success      bool         `json:"success"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	User         userResponse `json:"user"`
}

type refreshResponse struct {
	Success     bool      `json:"success"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

type logoutAllResponse struct {
	Success         bool `json:"success"`
	RemovedSessions int  `json:"removedSessions"`
}

type sessionResponse struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	RememberMe     bool      `json:"rememberMe"`
}

type validateResponse struct {
	Success bool            `json:"success"`
	Valid   bool            `json:"valid"`
	Session sessionResponse `json:"session"`
}

type invalidResponse struct {
	Success bool   `json:"success"`
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type meResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

func toUserResponse(s session.Subject) userResponse {
	return userResponse{
		ID:            s.ID,
		Email:         s.Email,
		FullName:      s.FullName,
		Role:          s.Role,
		Permissions:   s.Permissions,
		InstitutionID: s.InstitutionID,
	}
}

func toSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{
		ID:             s.ID,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		RememberMe:     s.RememberMe,
	}
}
