package dashboard

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
)

type fakeAPI struct {
	info        identity.DashboardInfo
	completion  identity.ProfileCompletion
	dashCalls   int32
	passwords   []string
	overviewErr error
	calls       int32
}

func (f *fakeAPI) Dashboard(context.Context, auth.Role) (identity.DashboardInfo, error) {
	atomic.AddInt32(&f.dashCalls, 1)
	return f.info, nil
}

func (f *fakeAPI) SetPassword(_ context.Context, _ auth.Role, pw string) (string, error) {
	f.passwords = append(f.passwords, pw)
	return "Password updated", nil
}

func (f *fakeAPI) ProfileCompletion(context.Context) (identity.ProfileCompletion, error) {
	return f.completion, nil
}

func (f *fakeAPI) users(n int) ([]identity.User, error) {
	atomic.AddInt32(&f.calls, 1)
	return make([]identity.User, n), nil
}

func (f *fakeAPI) AdminPatients(context.Context) ([]identity.User, error) { return f.users(3) }
func (f *fakeAPI) AdminDoctors(context.Context) ([]identity.User, error)  { return f.users(2) }
func (f *fakeAPI) PendingRegistrations(context.Context) ([]identity.User, error) {
	return f.users(1)
}

func (f *fakeAPI) PendingDoctors(ctx context.Context) ([]identity.User, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.overviewErr != nil {
		return nil, f.overviewErr
	}
	return nil, nil
}

func (f *fakeAPI) AdminAppointments(context.Context) ([]scheduling.Appointment, error) {
	atomic.AddInt32(&f.calls, 1)
	return []scheduling.Appointment{
		{AppointmentID: 1, Status: scheduling.StatusPending},
		{AppointmentID: 2, Status: scheduling.StatusPending},
		{AppointmentID: 3, Status: scheduling.StatusCompleted},
	}, nil
}

func newShell(t *testing.T, role auth.Role, api *fakeAPI, tokens auth.TokenStore) *Shell {
	t.Helper()
	session, err := auth.NewSession("token", string(role))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	s, err := New(session, api, tokens, zerolog.Nop())
	if err != nil {
		t.Fatalf("new shell: %v", err)
	}
	return s
}

func TestNew_RequiresSession(t *testing.T) {
	if _, err := New(nil, &fakeAPI{}, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for a missing session")
	}
}

func TestTabs_PerRole(t *testing.T) {
	tests := []struct {
		role  auth.Role
		count int
		has   Tab
		not   Tab
	}{
		{auth.RolePatient, 8, TabBook, TabSlots},
		{auth.RoleDoctor, 7, TabSlots, TabBook},
		{auth.RoleAdmin, 6, TabLogs, TabProfile},
	}
	for _, tt := range tests {
		s := newShell(t, tt.role, &fakeAPI{}, nil)
		if got := len(s.Tabs()); got != tt.count {
			t.Errorf("%s: %d tabs, want %d", tt.role, got, tt.count)
		}
		if !s.Has(tt.has) || s.Has(tt.not) {
			t.Errorf("%s: unexpected tab set %v", tt.role, s.Tabs())
		}
	}
}

func TestEnter_FirstLogin(t *testing.T) {
	api := &fakeAPI{info: identity.DashboardInfo{FirstLogin: true, Message: "Set your password"}}
	s := newShell(t, auth.RolePatient, api, nil)

	info, err := s.Enter(context.Background())
	if !errors.Is(err, ErrPasswordSetupRequired) {
		t.Fatalf("expected password setup, got %v", err)
	}
	if info.Message != "Set your password" {
		t.Errorf("message = %q", info.Message)
	}
}

func TestEnter_DoctorProfileGate(t *testing.T) {
	tests := []struct {
		status identity.ProfileStatus
		gated  bool
	}{
		{identity.ProfileApproved, false},
		{identity.ProfileIncomplete, true},
		{identity.ProfilePending, true},
		{identity.ProfileRejected, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			api := &fakeAPI{completion: identity.ProfileCompletion{Status: tt.status, AdminMessage: "blurry certificate"}}
			s := newShell(t, auth.RoleDoctor, api, nil)

			_, err := s.Enter(context.Background())
			var gate *ProfileGateError
			if got := errors.As(err, &gate); got != tt.gated {
				t.Fatalf("gated = %v, want %v (err %v)", got, tt.gated, err)
			}
			if tt.gated && gate.Status != tt.status {
				t.Errorf("gate status = %s", gate.Status)
			}
			if tt.status == identity.ProfileRejected && gate.Error() != "your profile was rejected: blurry certificate" {
				t.Errorf("rejection text = %q", gate.Error())
			}
		})
	}
}

func TestEnter_AdminSkipsGates(t *testing.T) {
	api := &fakeAPI{info: identity.DashboardInfo{FirstLogin: true}}
	s := newShell(t, auth.RoleAdmin, api, nil)
	if _, err := s.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if api.dashCalls != 0 {
		t.Error("admins have no dashboard check")
	}
}

func TestCompletePasswordSetup_ClearsSession(t *testing.T) {
	tokens := auth.NewMemoryTokenStore()
	api := &fakeAPI{}
	s := newShell(t, auth.RolePatient, api, tokens)
	if err := tokens.Save(s.session); err != nil {
		t.Fatalf("save: %v", err)
	}

	msg, err := s.CompletePasswordSetup(context.Background(), "n3w-Passw0rd")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if msg != "Password updated" || len(api.passwords) != 1 {
		t.Errorf("unexpected result %q %v", msg, api.passwords)
	}
	if s.session.Authenticated() {
		t.Error("session must be invalidated")
	}
	if _, err := tokens.Load(); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("stored token must be cleared, got %v", err)
	}
}

func TestOpen_CancelsPreviousTab(t *testing.T) {
	s := newShell(t, auth.RoleDoctor, &fakeAPI{}, nil)

	first, err := s.Open(context.Background(), TabAppointments)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, err := s.Open(context.Background(), TabSlots)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !errors.Is(first.Err(), context.Canceled) {
		t.Error("opening a tab must cancel the previous one")
	}
	if second.Err() != nil || s.Active() != TabSlots {
		t.Error("the new tab must stay live")
	}
	if _, err := s.Open(context.Background(), TabBook); err == nil {
		t.Error("doctors have no booking tab")
	}

	s.Close()
	if second.Err() == nil || s.Active() != "" {
		t.Error("close must cancel the open tab")
	}
}

func TestAdminOverview(t *testing.T) {
	api := &fakeAPI{}
	s := newShell(t, auth.RoleAdmin, api, nil)

	o, err := s.AdminOverview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(o.Patients) != 3 || len(o.Doctors) != 2 || len(o.PendingRegistrations) != 1 || len(o.Appointments) != 3 {
		t.Errorf("unexpected overview %+v", o)
	}
	if api.calls != 5 {
		t.Errorf("expected five fetches, got %d", api.calls)
	}
	counts := o.StatusCounts()
	if counts[scheduling.StatusPending] != 2 || counts[scheduling.StatusCancelled] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

func TestAdminOverview_Errors(t *testing.T) {
	api := &fakeAPI{overviewErr: &client.Error{Kind: client.KindStatus, Status: http.StatusForbidden, Message: "Access denied"}}
	s := newShell(t, auth.RoleAdmin, api, nil)
	if _, err := s.AdminOverview(context.Background()); !client.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	patient := newShell(t, auth.RolePatient, &fakeAPI{}, nil)
	if _, err := patient.AdminOverview(context.Background()); err == nil {
		t.Error("patients have no overview")
	}
}
