// Package dashboard models the per-role dashboard: its tabs, the first-login
// and profile gates on entry, and the admin overview.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/platform/auth"
)

type Tab string

const (
	TabHome         Tab = "home"
	TabBook         Tab = "book"
	TabAppointments Tab = "appointments"
	TabRecords      Tab = "records"
	TabAccess       Tab = "access"
	TabHistory      Tab = "history"
	TabEmergency    Tab = "emergency"
	TabProfile      Tab = "profile"
	TabSlots        Tab = "slots"
	TabPatients     Tab = "patients"
	TabFeedback     Tab = "feedback"
	TabEmergencies  Tab = "emergencies"
	TabOverview     Tab = "overview"
	TabDoctors      Tab = "doctors"
	TabPending      Tab = "pending"
	TabLogs         Tab = "logs"
)

var roleTabs = map[auth.Role][]Tab{
	auth.RolePatient: {TabHome, TabBook, TabAppointments, TabRecords, TabAccess, TabHistory, TabEmergency, TabProfile},
	auth.RoleDoctor:  {TabHome, TabAppointments, TabSlots, TabPatients, TabFeedback, TabEmergencies, TabProfile},
	auth.RoleAdmin:   {TabOverview, TabPatients, TabDoctors, TabAppointments, TabPending, TabLogs},
}

// ErrPasswordSetupRequired is returned by Enter on a first login.
var ErrPasswordSetupRequired = errors.New("password setup required before using the dashboard")

// ProfileGateError keeps a doctor out until an admin approves the profile.
type ProfileGateError struct {
	Status  identity.ProfileStatus
	Message string
}

func (e *ProfileGateError) Error() string {
	switch e.Status {
	case identity.ProfileIncomplete:
		return "complete your profile before using the dashboard"
	case identity.ProfilePending:
		return "your profile is awaiting admin review"
	case identity.ProfileRejected:
		if e.Message != "" {
			return "your profile was rejected: " + e.Message
		}
		return "your profile was rejected"
	}
	return fmt.Sprintf("profile status %s", e.Status)
}

// API is the part of the client the shell calls.
type API interface {
	Dashboard(ctx context.Context, role auth.Role) (identity.DashboardInfo, error)
	SetPassword(ctx context.Context, role auth.Role, newPassword string) (string, error)
	ProfileCompletion(ctx context.Context) (identity.ProfileCompletion, error)
	OverviewAPI
}

// Shell is one signed-in user's dashboard. Only one tab is open at a time;
// work started under a tab's context stops when another tab opens.
type Shell struct {
	session *auth.Session
	api     API
	tokens  auth.TokenStore
	logger  zerolog.Logger

	mu     sync.Mutex
	active Tab
	cancel context.CancelFunc
}

func New(session *auth.Session, api API, tokens auth.TokenStore, logger zerolog.Logger) (*Shell, error) {
	if !session.Authenticated() {
		return nil, errors.New("dashboard requires a signed-in session")
	}
	if _, ok := roleTabs[session.Role()]; !ok {
		return nil, fmt.Errorf("no dashboard for role %q", session.Role())
	}
	return &Shell{session: session, api: api, tokens: tokens, logger: logger}, nil
}

func (s *Shell) Role() auth.Role { return s.session.Role() }

func (s *Shell) Tabs() []Tab {
	tabs := roleTabs[s.Role()]
	out := make([]Tab, len(tabs))
	copy(out, tabs)
	return out
}

func (s *Shell) Has(tab Tab) bool {
	for _, t := range roleTabs[s.Role()] {
		if t == tab {
			return true
		}
	}
	return false
}

// Enter runs the entry gates. Patients and doctors on their first login get
// ErrPasswordSetupRequired; doctors whose profile is not APPROVED get a
// *ProfileGateError. Admins pass straight through.
func (s *Shell) Enter(ctx context.Context) (identity.DashboardInfo, error) {
	role := s.Role()
	if role == auth.RoleAdmin {
		return identity.DashboardInfo{}, nil
	}

	info, err := s.api.Dashboard(ctx, role)
	if err != nil {
		return info, fmt.Errorf("load %s dashboard: %w", role, err)
	}
	if info.FirstLogin {
		return info, ErrPasswordSetupRequired
	}
	if role != auth.RoleDoctor {
		return info, nil
	}

	pc, err := s.api.ProfileCompletion(ctx)
	if err != nil {
		return info, fmt.Errorf("load profile status: %w", err)
	}
	if pc.Status != identity.ProfileApproved {
		return info, &ProfileGateError{Status: pc.Status, Message: pc.AdminMessage}
	}
	return info, nil
}

// CompletePasswordSetup sets the first password, then signs the user out so
// the next step is a fresh login with it.
func (s *Shell) CompletePasswordSetup(ctx context.Context, newPassword string) (string, error) {
	msg, err := s.api.SetPassword(ctx, s.Role(), newPassword)
	if err != nil {
		return "", fmt.Errorf("set password: %w", err)
	}
	s.Close()
	s.session.Invalidate()
	if s.tokens != nil {
		if err := s.tokens.Clear(); err != nil {
			return msg, fmt.Errorf("clear stored session: %w", err)
		}
	}
	s.logger.Info().Str("role", string(s.Role())).Msg("password set, session cleared")
	return msg, nil
}

// Open switches to tab and returns a context bound to it. The previous
// tab's context is cancelled.
func (s *Shell) Open(parent context.Context, tab Tab) (context.Context, error) {
	if !s.Has(tab) {
		return nil, fmt.Errorf("tab %q is not available to %s", tab, s.Role())
	}
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	prev := s.cancel
	s.active, s.cancel = tab, cancel
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	return ctx, nil
}

func (s *Shell) Active() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close cancels the open tab, if any.
func (s *Shell) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.active, s.cancel = "", nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
