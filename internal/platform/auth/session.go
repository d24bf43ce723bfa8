package auth

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole normalizes a backend role string ("PATIENT", "Doctor", ...).
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Wire returns the upper-case form the backend uses in payloads.
func (r Role) Wire() string { return strings.ToUpper(string(r)) }

// Session is the explicit auth context handed to the API client. It is safe
// for concurrent use; Invalidate clears it for every holder at once.
type Session struct {
	mu        sync.RWMutex
	token     string
	role      Role
	email     string
	expiresAt time.Time
}

// NewSession builds a session from a login response. Claims are read without
// verification, only to learn the email and expiry; the backend remains the
// authority on validity.
func NewSession(token, role string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	r, err := ParseRole(role)
	if err != nil {
		return nil, err
	}
	s := &Session{token: token, role: r}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		s.email = claims.Email
		if claims.ExpiresAt != nil {
			s.expiresAt = claims.ExpiresAt.Time
		}
	}
	return s, nil
}

func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Role() Role {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) Email() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

func (s *Session) ExpiresAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Expired reports whether the token's exp claim is at or before now. Tokens
// without an exp claim never expire locally.
func (s *Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

// Invalidate drops the token so later requests go out unauthenticated.
func (s *Session) Invalidate() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.email = ""
	s.expiresAt = time.Time{}
}
