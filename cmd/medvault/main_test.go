package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/config"
	"github.com/medvault/medvault/internal/dashboard"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/middleware"
	"github.com/medvault/medvault/internal/sandbox"
	"github.com/medvault/medvault/internal/slotpicker"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	sbCfg := &config.Config{SandboxSigningKey: "cli-test-key", SandboxSeed: 42}
	srv, err := sandbox.NewServer(sbCfg, zerolog.New(io.Discard),
		sandbox.WithHashCost(bcrypt.MinCost),
		sandbox.WithSeedConfig(sandbox.SeedConfig{Seed: 42, DoctorCount: 2, PatientCount: 2, DaysAhead: 2}),
		sandbox.WithAuthRateLimit(middleware.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 100}),
	)
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	out := &bytes.Buffer{}
	a := &app{
		cfg: &config.Config{
			APIBase:       ts.URL,
			Env:           "test",
			LogLevel:      "info",
			TokenFile:     "unused",
			HTTPTimeout:   5 * time.Second,
			WatchSchedule: "@every 30s",
		},
		logger: zerolog.Nop(),
		tokens: auth.NewMemoryTokenStore(),
		out:    out,
		now:    time.Now,
	}
	return a, out
}

// exec runs one command line and returns stdout, stderr and the exit code.
func exec(t *testing.T, a *app, out *bytes.Buffer, args ...string) (string, string, int) {
	t.Helper()
	out.Reset()
	var errOut bytes.Buffer
	code := run(a, args, &errOut)
	return out.String(), errOut.String(), code
}

func mustExec(t *testing.T, a *app, out *bytes.Buffer, args ...string) string {
	t.Helper()
	stdout, stderr, code := exec(t, a, out, args...)
	if code != 0 {
		t.Fatalf("medvault %s: exit %d: %s", strings.Join(args, " "), code, stderr)
	}
	return stdout
}

func TestLoginWhoamiLogout(t *testing.T) {
	a, out := newTestApp(t)

	got := mustExec(t, a, out, "login", "--email", sandbox.AdminEmail, "--password", sandbox.AdminPassword)
	if !strings.Contains(got, "Signed in as admin@medvault.test (admin)") {
		t.Errorf("login output %q", got)
	}
	got = mustExec(t, a, out, "whoami")
	if !strings.HasPrefix(got, "admin@medvault.test (admin)") {
		t.Errorf("whoami output %q", got)
	}
	if !strings.Contains(got, "Tabs: overview, patients, doctors, appointments, pending, logs") {
		t.Errorf("whoami must list the admin tabs, got %q", got)
	}

	mustExec(t, a, out, "logout")
	_, stderr, code := exec(t, a, out, "whoami")
	if code != 1 || !strings.Contains(stderr, "run medvault login first") {
		t.Errorf("expected login hint, got %d %q", code, stderr)
	}
}

func TestLogin_BadPasswordHasNoExpiryHint(t *testing.T) {
	a, out := newTestApp(t)
	_, stderr, code := exec(t, a, out, "login", "--email", sandbox.AdminEmail, "--password", "wrong-password")
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if strings.Contains(stderr, "session expired") {
		t.Errorf("a failed login is not an expired session: %q", stderr)
	}
}

func TestExpiredSessionIsCleared(t *testing.T) {
	a, _ := newTestApp(t)
	tok, err := auth.NewIssuer([]byte("k"), "test", time.Hour).Issue(1, "patient1@medvault.test", auth.RolePatient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	s, err := auth.NewSession(tok, "patient")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := a.tokens.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}
	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := a.signedIn(auth.RolePatient); !errors.Is(err, errSessionExpired) {
		t.Fatalf("expected expired session, got %v", err)
	}
	if _, err := a.tokens.Load(); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("expired token must be cleared, got %v", err)
	}
}

func TestHint(t *testing.T) {
	login := &cobra.Command{Use: "login"}
	other := &cobra.Command{Use: "appointments"}
	unauthorized := &client.Error{Kind: client.KindStatus, Status: http.StatusUnauthorized, Message: "Unauthorized"}

	tests := []struct {
		name string
		cmd  *cobra.Command
		err  error
		want string
	}{
		{"expired", other, fmt.Errorf("wrapped: %w", errSessionExpired), "session expired, run medvault login"},
		{"401", other, unauthorized, "session expired, run medvault login"},
		{"401 on login", login, unauthorized, ""},
		{"not logged in", other, errNotLoggedIn, "run medvault login first"},
		{"transport", other, &client.Error{Kind: client.KindTransport, Err: errors.New("refused")}, "is the backend reachable? check MEDVAULT_API_BASE or --api"},
		{"other", other, errors.New("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hint(tt.cmd, tt.err); got != tt.want {
				t.Errorf("hint = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoleMismatch(t *testing.T) {
	a, out := newTestApp(t)
	mustExec(t, a, out, "login", "--email", sandbox.PatientEmail(1), "--password", sandbox.PatientPassword)
	_, stderr, code := exec(t, a, out, "doctor", "appointments")
	if code != 1 || !strings.Contains(stderr, "needs a doctor session") {
		t.Errorf("expected role error, got %d %q", code, stderr)
	}
}

func TestTab_RejectsTabOutsideRole(t *testing.T) {
	a, out := newTestApp(t)
	mustExec(t, a, out, "login", "--email", sandbox.PatientEmail(1), "--password", sandbox.PatientPassword)
	cmd := &cobra.Command{Use: "logs"}

	if _, _, _, err := a.tab(cmd, auth.RolePatient, dashboard.TabLogs); err == nil || !strings.Contains(err.Error(), "not available to patient") {
		t.Fatalf("expected the logs tab to be refused, got %v", err)
	}

	_, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabRecords)
	if err != nil {
		t.Fatalf("open records: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("tab context must be live while open")
	}
	done()
	if ctx.Err() == nil {
		t.Error("closing the tab must cancel its context")
	}
}

func TestPatientBookAndCancel(t *testing.T) {
	a, out := newTestApp(t)
	mustExec(t, a, out, "login", "--email", sandbox.PatientEmail(1), "--password", sandbox.PatientPassword)

	if got := mustExec(t, a, out, "patient", "doctors"); !strings.Contains(got, "page 1 of 1") {
		t.Errorf("doctors output %q", got)
	}

	c, err := a.signedIn(auth.RolePatient)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	ctx := context.Background()
	doctors, err := c.SearchDoctors(ctx)
	if err != nil || len(doctors) == 0 {
		t.Fatalf("doctors: %v %v", doctors, err)
	}
	picker := a.picker(c)
	if err := picker.SetDoctor(ctx, doctors[0].ID); err != nil {
		t.Fatalf("slots: %v", err)
	}
	open := picker.Slots()
	if len(open) == 0 {
		t.Fatal("expected open slots in the sandbox")
	}

	got := mustExec(t, a, out, "patient", "book", id(doctors[0].ID), id(open[0].ID), "--reason", "checkup")
	var apptID int64
	if _, err := fmt.Sscanf(got, "Booked appointment %d", &apptID); err != nil {
		t.Fatalf("book output %q: %v", got, err)
	}

	_, stderr, code := exec(t, a, out, "patient", "cancel", id(apptID))
	if code != 1 || !strings.Contains(stderr, "reason is required") {
		t.Errorf("cancel without reason must fail locally, got %d %q", code, stderr)
	}

	got = mustExec(t, a, out, "patient", "cancel", id(apptID), "--reason", "feeling better")
	if want := fmt.Sprintf("Appointment %d: CANCELLED", apptID); !strings.Contains(got, want) {
		t.Errorf("cancel output %q, want %q", got, want)
	}
}

func TestDoctorSlotsDryRun(t *testing.T) {
	a, out := newTestApp(t)
	got := mustExec(t, a, out, "doctor", "slots", "create",
		"--date", "2024-06-10", "--start", "09:00", "--end", "10:00", "--interval", "30m", "--dry-run")
	for _, want := range []string{"09:00", "09:30", "page 1 of 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("dry run output %q is missing %q", got, want)
		}
	}
	if strings.Contains(got, "10:00") {
		t.Errorf("the range end is not a slot: %q", got)
	}
}

func TestDoctorAppointmentsShowActions(t *testing.T) {
	a, out := newTestApp(t)
	mustExec(t, a, out, "login", "--email", sandbox.DoctorEmail(1), "--password", sandbox.DoctorPassword)
	got := mustExec(t, a, out, "doctor", "appointments", "--status", "CONFIRMED")
	if strings.Contains(got, "no records") {
		return
	}
	if !strings.Contains(got, "complete,cancel") {
		t.Errorf("confirmed appointments must offer complete and cancel: %q", got)
	}
	if strings.Contains(got, "PENDING") {
		t.Errorf("status filter leaked other statuses: %q", got)
	}
}

func TestAdminOverviewAndPending(t *testing.T) {
	a, out := newTestApp(t)
	mustExec(t, a, out, "login", "--email", sandbox.AdminEmail, "--password", sandbox.AdminPassword)

	got := mustExec(t, a, out, "admin", "overview")
	for _, want := range []string{"Patients", "Pending registrations", "CONFIRMED"} {
		if !strings.Contains(got, want) {
			t.Errorf("overview output %q is missing %q", got, want)
		}
	}

	got = mustExec(t, a, out, "admin", "pending", "--search", "PENDING1@")
	if !strings.Contains(got, "pending1@medvault.test") || strings.Contains(got, "pending2@medvault.test") {
		t.Errorf("pending search output %q", got)
	}

	got = mustExec(t, a, out, "admin", "logs", "--search", "no-such-entry")
	if strings.TrimSpace(got) != "no records" {
		t.Errorf("empty log view = %q", got)
	}
}

type slotsBackend struct {
	slots []scheduling.Slot
}

func (b *slotsBackend) DoctorSlotsForPatient(context.Context, int64) ([]scheduling.Slot, error) {
	return b.slots, nil
}

func (b *slotsBackend) BookAppointment(context.Context, int64, string) (scheduling.Appointment, error) {
	return scheduling.Appointment{}, errors.New("not used")
}

func TestShowOpenSlots_AfterRejectedReschedule(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()
	early := scheduling.Slot{ID: 7, DoctorID: 4, SlotDate: "2099-01-05", SlotTime: "09:00", Status: scheduling.SlotActive}
	late := scheduling.Slot{ID: 8, DoctorID: 4, SlotDate: "2099-01-05", SlotTime: "10:30", Status: scheduling.SlotActive}
	b := &slotsBackend{slots: []scheduling.Slot{early, late}}
	p := slotpicker.New(b)
	if err := p.SetDoctor(ctx, 4); err != nil {
		t.Fatalf("set doctor: %v", err)
	}

	// Someone else took slot 7 before the move reached the backend.
	early.Booked = true
	b.slots = []scheduling.Slot{early, late}
	conflict := fmt.Errorf("reschedule appointment 1: %w",
		&client.Error{Kind: client.KindStatus, Status: http.StatusConflict, Message: "Slot already booked"})

	out.Reset()
	a.showOpenSlots(ctx, p, conflict)
	got := out.String()
	if !strings.Contains(got, "Open slots of doctor 4") || !strings.Contains(got, "10:30") {
		t.Errorf("expected the remaining slot, got %q", got)
	}
	if strings.Contains(got, "09:00") {
		t.Errorf("taken slot must not be offered, got %q", got)
	}
	if len(p.Slots()) != 1 {
		t.Errorf("expected the picker to hold 1 open slot, got %d", len(p.Slots()))
	}

	out.Reset()
	a.showOpenSlots(ctx, p, &client.Error{Kind: client.KindValidation, Message: "select a new slot first"})
	a.showOpenSlots(ctx, nil, conflict)
	if out.Len() != 0 {
		t.Errorf("nothing should print for local errors, got %q", out.String())
	}

	b.slots = []scheduling.Slot{early}
	a.showOpenSlots(ctx, p, conflict)
	if got := out.String(); !strings.Contains(got, "no open slots left") {
		t.Errorf("expected the empty notice, got %q", got)
	}
}
