package lifecycle

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
)

type call struct {
	method string
	id     int64
	status scheduling.Status
	slot   int64
	reason string
	rating int
}

type fakeBackend struct {
	calls []call
	err   error
}

func (f *fakeBackend) SetAppointmentStatus(_ context.Context, id int64, status scheduling.Status, reason string) (scheduling.Appointment, error) {
	f.calls = append(f.calls, call{method: "status", id: id, status: status, reason: reason})
	return scheduling.Appointment{AppointmentID: id, Status: status}, f.err
}

func (f *fakeBackend) CancelAppointment(_ context.Context, id int64, reason string) (scheduling.Appointment, error) {
	f.calls = append(f.calls, call{method: "cancel", id: id, reason: reason})
	return scheduling.Appointment{AppointmentID: id, Status: scheduling.StatusCancelled}, f.err
}

func (f *fakeBackend) RescheduleAppointment(_ context.Context, id, slot int64, reason string) (scheduling.Appointment, error) {
	f.calls = append(f.calls, call{method: "reschedule", id: id, slot: slot, reason: reason})
	return scheduling.Appointment{AppointmentID: id}, f.err
}

func (f *fakeBackend) SubmitFeedback(_ context.Context, id int64, text string, rating int) (string, error) {
	f.calls = append(f.calls, call{method: "feedback", id: id, reason: text, rating: rating})
	return "ok", f.err
}

type fakeStore struct{ loads int }

func (s *fakeStore) Load(context.Context) error {
	s.loads++
	return nil
}

func appointment(status scheduling.Status) scheduling.Appointment {
	return scheduling.Appointment{AppointmentID: 9, DoctorID: 1, PatientID: 10, SlotID: 100, Status: status}
}

func TestAllowed_Doctor(t *testing.T) {
	tests := map[scheduling.Status][]Action{
		scheduling.StatusPending:   {ActionConfirm, ActionCancel},
		scheduling.StatusConfirmed: {ActionComplete, ActionCancel},
		scheduling.StatusCompleted: nil,
		scheduling.StatusCancelled: nil,
	}
	for status, want := range tests {
		got := Allowed(auth.RoleDoctor, appointment(status))
		if !reflect.DeepEqual(got, want) {
			t.Errorf("doctor %s: got %v, want %v", status, got, want)
		}
	}
}

func TestAllowed_Patient(t *testing.T) {
	tests := map[scheduling.Status][]Action{
		scheduling.StatusPending:   {ActionCancel, ActionReschedule},
		scheduling.StatusConfirmed: {ActionReschedule},
		scheduling.StatusCompleted: {ActionFeedback},
		scheduling.StatusCancelled: nil,
	}
	for status, want := range tests {
		got := Allowed(auth.RolePatient, appointment(status))
		if !reflect.DeepEqual(got, want) {
			t.Errorf("patient %s: got %v, want %v", status, got, want)
		}
	}

	done := appointment(scheduling.StatusCompleted)
	done.FeedbackSubmitted = true
	if got := Allowed(auth.RolePatient, done); len(got) != 0 {
		t.Errorf("feedback must be offered once, got %v", got)
	}
	if got := Allowed(auth.RoleAdmin, appointment(scheduling.StatusPending)); len(got) != 0 {
		t.Errorf("admin has no appointment actions, got %v", got)
	}
}

func TestRules_MatchServerTransitions(t *testing.T) {
	for _, r := range Rules {
		if r.To == "" {
			continue
		}
		if !scheduling.CanTransition(r.From, r.To) {
			t.Errorf("%s %s: %s -> %s is rejected by the backend", r.Role, r.Action, r.From, r.To)
		}
	}
	for _, s := range scheduling.Statuses {
		if s.Terminal() {
			for _, role := range []auth.Role{auth.RoleDoctor, auth.RolePatient} {
				for _, a := range Allowed(role, appointment(s)) {
					if a != ActionFeedback {
						t.Errorf("terminal %s offers %s to %s", s, a, role)
					}
				}
			}
		}
	}
}

func TestDispatch_ValidationSendsNothing(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		role   auth.Role
		status scheduling.Status
		action Action
		req    Request
	}{
		{"patient cancel without reason", auth.RolePatient, scheduling.StatusPending, ActionCancel, Request{Reason: "  "}},
		{"doctor cancel without reason", auth.RoleDoctor, scheduling.StatusConfirmed, ActionCancel, Request{}},
		{"reschedule without slot", auth.RolePatient, scheduling.StatusPending, ActionReschedule, Request{Reason: "travel"}},
		{"reschedule to another doctor", auth.RolePatient, scheduling.StatusConfirmed, ActionReschedule,
			Request{Reason: "travel", NewSlot: &scheduling.Slot{ID: 5, DoctorID: 2}}},
		{"reschedule without reason", auth.RolePatient, scheduling.StatusPending, ActionReschedule,
			Request{NewSlot: &scheduling.Slot{ID: 5, DoctorID: 1}}},
		{"feedback rating out of range", auth.RolePatient, scheduling.StatusCompleted, ActionFeedback, Request{Reason: "good", Rating: 0}},
		{"feedback without text", auth.RolePatient, scheduling.StatusCompleted, ActionFeedback, Request{Rating: 4}},
		{"confirm a completed appointment", auth.RoleDoctor, scheduling.StatusCompleted, ActionConfirm, Request{}},
		{"patient confirms", auth.RolePatient, scheduling.StatusPending, ActionConfirm, Request{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be, store := &fakeBackend{}, &fakeStore{}
			ctrl := NewController(tt.role, be, store, zerolog.Nop())
			err := ctrl.Dispatch(ctx, appointment(tt.status), tt.action, tt.req)
			if !client.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(be.calls) != 0 || store.loads != 0 {
				t.Errorf("expected no request and no reload, got %d calls %d loads", len(be.calls), store.loads)
			}
		})
	}
}

func TestDispatch_SendsAndReloads(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		role   auth.Role
		status scheduling.Status
		action Action
		req    Request
		want   call
	}{
		{"doctor confirm", auth.RoleDoctor, scheduling.StatusPending, ActionConfirm, Request{Reason: "ignored"},
			call{method: "status", id: 9, status: scheduling.StatusConfirmed}},
		{"doctor complete", auth.RoleDoctor, scheduling.StatusConfirmed, ActionComplete, Request{},
			call{method: "status", id: 9, status: scheduling.StatusCompleted}},
		{"doctor cancel", auth.RoleDoctor, scheduling.StatusPending, ActionCancel, Request{Reason: "sick"},
			call{method: "status", id: 9, status: scheduling.StatusCancelled, reason: "sick"}},
		{"patient cancel", auth.RolePatient, scheduling.StatusPending, ActionCancel, Request{Reason: "better"},
			call{method: "cancel", id: 9, reason: "better"}},
		{"patient reschedule", auth.RolePatient, scheduling.StatusConfirmed, ActionReschedule,
			Request{Reason: "travel", NewSlot: &scheduling.Slot{ID: 5, DoctorID: 1}},
			call{method: "reschedule", id: 9, slot: 5, reason: "travel"}},
		{"patient feedback", auth.RolePatient, scheduling.StatusCompleted, ActionFeedback, Request{Reason: "kind", Rating: 5},
			call{method: "feedback", id: 9, reason: "kind", rating: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be, store := &fakeBackend{}, &fakeStore{}
			ctrl := NewController(tt.role, be, store, zerolog.Nop())
			if err := ctrl.Dispatch(ctx, appointment(tt.status), tt.action, tt.req); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if len(be.calls) != 1 || be.calls[0] != tt.want {
				t.Errorf("calls = %+v, want %+v", be.calls, tt.want)
			}
			if store.loads != 1 {
				t.Errorf("expected one reload, got %d", store.loads)
			}
		})
	}
}

func TestDispatch_BackendErrorSkipsReload(t *testing.T) {
	be := &fakeBackend{err: &client.Error{Kind: client.KindStatus, Status: http.StatusConflict, Message: "already confirmed"}}
	store := &fakeStore{}
	ctrl := NewController(auth.RoleDoctor, be, store, zerolog.Nop())

	err := ctrl.Dispatch(context.Background(), appointment(scheduling.StatusPending), ActionConfirm, Request{})
	if !client.IsConflict(err) {
		t.Fatalf("expected the conflict to surface, got %v", err)
	}
	if store.loads != 0 {
		t.Errorf("a failed action must not reload, got %d loads", store.loads)
	}
}
