package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medvault/medvault/internal/platform/apperr"
	"github.com/medvault/medvault/internal/platform/validate"
)

// -- Fake Directory --

type fakeDirectory struct {
	doctors  map[int64]DoctorRef
	patients map[int64]PatientRef
}

func (d *fakeDirectory) Doctor(_ context.Context, id int64) (DoctorRef, error) {
	ref, ok := d.doctors[id]
	if !ok {
		return DoctorRef{}, apperr.New(apperr.ErrNotFound, "doctor %d not found", id)
	}
	return ref, nil
}

func (d *fakeDirectory) Patient(_ context.Context, id int64) (PatientRef, error) {
	ref, ok := d.patients[id]
	if !ok {
		return PatientRef{}, apperr.New(apperr.ErrNotFound, "patient %d not found", id)
	}
	return ref, nil
}

func (d *fakeDirectory) ApprovedDoctors(_ context.Context) ([]DoctorRef, error) {
	out := make([]DoctorRef, 0, len(d.doctors))
	for _, id := range []int64{1, 2} {
		if ref, ok := d.doctors[id]; ok {
			out = append(out, ref)
		}
	}
	return out, nil
}

const (
	drAlice int64 = 1
	drBob   int64 = 2
	patCara int64 = 10
	patDan  int64 = 11
)

var testNow = time.Date(2024, 6, 9, 12, 0, 0, 0, time.UTC)

func newTestService() *Service {
	dir := &fakeDirectory{
		doctors: map[int64]DoctorRef{
			drAlice: {ID: drAlice, Name: "Dr. Alice", Specialization: "Cardiology", Hospital: "City"},
			drBob:   {ID: drBob, Name: "Dr. Bob", Specialization: "Dermatology", Hospital: "North"},
		},
		patients: map[int64]PatientRef{
			patCara: {ID: patCara, Name: "Cara"},
			patDan:  {ID: patDan, Name: "Dan"},
		},
	}
	svc := NewService(NewMemorySlotRepo(), NewMemoryAppointmentRepo(), NewMemoryFeedbackRepo(), dir)
	svc.SetClock(func() time.Time { return testNow })
	return svc
}

func mustCreateSlots(t *testing.T, svc *Service, doctorID int64, date, start, end string) []*Slot {
	t.Helper()
	slots, err := svc.CreateSlots(context.Background(), doctorID, validate.CreateSlotsForm{
		SlotDate: date, StartTime: start, EndTime: end, SlotIntervalMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create slots: %v", err)
	}
	return slots
}

func mustBook(t *testing.T, svc *Service, patientID, slotID int64) *Appointment {
	t.Helper()
	a, err := svc.Book(context.Background(), patientID, slotID, "checkup")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return a
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

// -- Slots --

func TestService_CreateSlots(t *testing.T) {
	svc := newTestService()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].At() != "09:00" || slots[1].At() != "09:30" {
		t.Errorf("unexpected starts %s, %s", slots[0].At(), slots[1].At())
	}
	if slots[0].Status != SlotActive {
		t.Errorf("new slots should be ACTIVE, got %s", slots[0].Status)
	}
}

func TestService_CreateSlots_SkipsExisting(t *testing.T) {
	svc := newTestService()
	mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	more := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:30", "10:30")
	if len(more) != 1 || more[0].At() != "10:00" {
		t.Fatalf("expected only 10:00 to be created, got %v", more)
	}

	_, err := svc.CreateSlots(context.Background(), drAlice, validate.CreateSlotsForm{
		SlotDate: "2024-06-10", StartTime: "09:00", EndTime: "10:00", SlotIntervalMinutes: 30,
	})
	expectKind(t, err, apperr.ErrConflict)
}

func TestService_CreateSlots_Rejects(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, err := svc.CreateSlots(ctx, drAlice, validate.CreateSlotsForm{SlotDate: "2024-06-01", StartTime: "09:00", EndTime: "10:00", SlotIntervalMinutes: 30})
	expectKind(t, err, apperr.ErrInvalid)

	_, err = svc.CreateSlots(ctx, drAlice, validate.CreateSlotsForm{SlotDate: "2024-06-10", StartTime: "10:00", EndTime: "09:00", SlotIntervalMinutes: 30})
	expectKind(t, err, apperr.ErrInvalid)
}

func TestService_SlotStatusAndDelete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")

	sl, err := svc.SetSlotStatus(ctx, drAlice, slots[0].ID, SlotInactive)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if sl.Status != SlotInactive {
		t.Errorf("expected INACTIVE, got %s", sl.Status)
	}

	_, err = svc.SetSlotStatus(ctx, drBob, slots[0].ID, SlotActive)
	expectKind(t, err, apperr.ErrForbidden)

	mustBook(t, svc, patCara, slots[1].ID)
	expectKind(t, svc.DeleteSlot(ctx, drAlice, slots[1].ID), apperr.ErrConflict)

	if err := svc.DeleteSlot(ctx, drAlice, slots[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	left, _ := svc.DoctorSlots(ctx, drAlice, "")
	if len(left) != 1 {
		t.Errorf("expected 1 slot left, got %d", len(left))
	}
}

func TestService_AvailableSlots(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "11:00")
	svc.SetSlotStatus(ctx, drAlice, slots[0].ID, SlotInactive)
	mustBook(t, svc, patCara, slots[1].ID)

	avail, err := svc.AvailableSlots(ctx, drAlice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(avail) != 2 {
		t.Fatalf("expected 2 available slots, got %d", len(avail))
	}
	for _, sl := range avail {
		if sl.ID == slots[0].ID || sl.ID == slots[1].ID {
			t.Errorf("slot %d should not be available", sl.ID)
		}
	}
}

// -- Booking --

func TestService_Book(t *testing.T) {
	svc := newTestService()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	a := mustBook(t, svc, patCara, slots[0].ID)

	if a.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", a.Status)
	}
	if a.DoctorName != "Dr. Alice" || a.PatientName != "Cara" {
		t.Errorf("expected names to be resolved, got %q / %q", a.DoctorName, a.PatientName)
	}
	if a.Day() != "2024-06-10" || a.At() != "09:00" {
		t.Errorf("unexpected when %s %s", a.Day(), a.At())
	}

	_, err := svc.Book(context.Background(), patDan, slots[0].ID, "")
	expectKind(t, err, apperr.ErrConflict)
}

func TestService_Book_UnknownSlot(t *testing.T) {
	svc := newTestService()
	_, err := svc.Book(context.Background(), patCara, 999, "")
	expectKind(t, err, apperr.ErrNotFound)
}

func TestService_DoctorAppointments_SortedAndFiltered(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	day2 := mustCreateSlots(t, svc, drAlice, "2024-06-11", "09:00", "10:00")
	day1 := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	mustBook(t, svc, patCara, day2[0].ID)
	mustBook(t, svc, patDan, day1[1].ID)
	a := mustBook(t, svc, patCara, day1[0].ID)
	if _, err := svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "CONFIRMED"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	list, err := svc.DoctorAppointments(ctx, drAlice, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2024-06-10 09:00", "2024-06-10 09:30", "2024-06-11 09:00"}
	for i, a := range list {
		if got := a.Day() + " " + a.At(); got != want[i] {
			t.Errorf("position %d = %s, want %s", i, got, want[i])
		}
	}

	byDate, _ := svc.DoctorAppointments(ctx, drAlice, "2024-06-11", "")
	if len(byDate) != 1 {
		t.Errorf("expected 1 appointment on 2024-06-11, got %d", len(byDate))
	}
	confirmed, _ := svc.DoctorAppointments(ctx, drAlice, "", StatusConfirmed)
	if len(confirmed) != 1 || confirmed[0].AppointmentID != a.AppointmentID {
		t.Errorf("expected the confirmed appointment, got %v", confirmed)
	}
}

// -- Transitions --

func TestService_ChangeStatus(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	a := mustBook(t, svc, patCara, slots[0].ID)

	got, err := svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "CONFIRMED"})
	if err != nil || got.Status != StatusConfirmed {
		t.Fatalf("confirm: %v / %v", got, err)
	}
	got, err = svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "COMPLETED"})
	if err != nil || got.Status != StatusCompleted {
		t.Fatalf("complete: %v / %v", got, err)
	}
	_, err = svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "CANCELLED", CancelReason: "late"})
	expectKind(t, err, apperr.ErrConflict)
}

func TestService_ChangeStatus_CancelFreesSlot(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	a := mustBook(t, svc, patCara, slots[0].ID)

	_, err := svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "CANCELLED"})
	expectKind(t, err, apperr.ErrInvalid)

	got, err := svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "CANCELLED", CancelReason: "sick"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.CancelReason != "sick" {
		t.Errorf("expected cancel reason, got %q", got.CancelReason)
	}
	if _, err := svc.Book(ctx, patDan, slots[0].ID, ""); err != nil {
		t.Errorf("expected freed slot to be bookable: %v", err)
	}
}

func TestService_ChangeStatus_OtherDoctor(t *testing.T) {
	svc := newTestService()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	a := mustBook(t, svc, patCara, slots[0].ID)
	_, err := svc.ChangeStatus(context.Background(), drBob, a.AppointmentID, validate.StatusChangeForm{Status: "CONFIRMED"})
	expectKind(t, err, apperr.ErrForbidden)
}

func TestService_PatientCancel(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	a := mustBook(t, svc, patCara, slots[0].ID)

	_, err := svc.Cancel(ctx, patCara, a.AppointmentID, "  ")
	expectKind(t, err, apperr.ErrInvalid)
	_, err = svc.Cancel(ctx, patDan, a.AppointmentID, "not mine")
	expectKind(t, err, apperr.ErrForbidden)

	got, err := svc.Cancel(ctx, patCara, a.AppointmentID, "feeling better")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}

	b := mustBook(t, svc, patCara, slots[1].ID)
	svc.ChangeStatus(ctx, drAlice, b.AppointmentID, validate.StatusChangeForm{Status: "CONFIRMED"})
	_, err = svc.Cancel(ctx, patCara, b.AppointmentID, "changed mind")
	expectKind(t, err, apperr.ErrConflict)
}

func TestService_Reschedule(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	bobSlots := mustCreateSlots(t, svc, drBob, "2024-06-10", "09:00", "10:00")
	a := mustBook(t, svc, patCara, slots[0].ID)
	svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "CONFIRMED"})

	_, err := svc.Reschedule(ctx, patCara, a.AppointmentID, bobSlots[0].ID, "travel")
	expectKind(t, err, apperr.ErrInvalid)
	_, err = svc.Reschedule(ctx, patCara, a.AppointmentID, slots[1].ID, "")
	expectKind(t, err, apperr.ErrInvalid)

	got, err := svc.Reschedule(ctx, patCara, a.AppointmentID, slots[1].ID, "travel")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if got.At() != "09:30" || !got.Rescheduled || got.RescheduleReason != "travel" {
		t.Errorf("unexpected rescheduled appointment %+v", got)
	}
	if got.Status != StatusPending {
		t.Errorf("expected reschedule to return to PENDING, got %s", got.Status)
	}
	if _, err := svc.Book(ctx, patDan, slots[0].ID, ""); err != nil {
		t.Errorf("expected old slot to be released: %v", err)
	}
}

func TestService_Reschedule_SlotTaken(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	a := mustBook(t, svc, patCara, slots[0].ID)
	mustBook(t, svc, patDan, slots[1].ID)

	_, err := svc.Reschedule(ctx, patCara, a.AppointmentID, slots[1].ID, "travel")
	expectKind(t, err, apperr.ErrConflict)
	still, _ := svc.PatientAppointments(ctx, patCara)
	if still[0].At() != "09:00" {
		t.Errorf("failed reschedule must leave appointment untouched, got %s", still[0].At())
	}
}

// -- Feedback --

func TestService_Feedback(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "10:00")
	a := mustBook(t, svc, patCara, slots[0].ID)

	expectKind(t, svc.SubmitFeedback(ctx, patCara, a.AppointmentID, "great", 5), apperr.ErrConflict)

	svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "CONFIRMED"})
	svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "COMPLETED"})

	expectKind(t, svc.SubmitFeedback(ctx, patCara, a.AppointmentID, "great", 6), apperr.ErrInvalid)
	if err := svc.SubmitFeedback(ctx, patCara, a.AppointmentID, "great", 4); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	expectKind(t, svc.SubmitFeedback(ctx, patCara, a.AppointmentID, "again", 5), apperr.ErrConflict)

	list, _ := svc.PatientAppointments(ctx, patCara)
	if !list[0].FeedbackSubmitted {
		t.Error("expected feedbackSubmitted to be set")
	}

	fb, _ := svc.DoctorFeedback(ctx, drAlice)
	if len(fb) != 1 || fb[0].Rating != 4 || fb[0].PatientName != "Cara" {
		t.Errorf("unexpected doctor feedback %v", fb)
	}

	docs, _ := svc.SearchDoctors(ctx)
	if docs[0].AverageRating != 4 || docs[0].RatingCount != 1 {
		t.Errorf("expected rating to be aggregated, got %+v", docs[0])
	}
	if docs[1].RatingCount != 0 {
		t.Errorf("expected Dr. Bob to have no ratings, got %+v", docs[1])
	}
}

type recordingNotifier struct {
	events []StatusEvent
}

func (n *recordingNotifier) AppointmentChanged(_ context.Context, ev StatusEvent) {
	n.events = append(n.events, ev)
}

func TestService_NotifiesStatusChanges(t *testing.T) {
	svc := newTestService()
	rec := &recordingNotifier{}
	svc.SetNotifier(rec)
	ctx := context.Background()

	slots := mustCreateSlots(t, svc, drAlice, "2024-06-10", "09:00", "11:00")
	a := mustBook(t, svc, patCara, slots[0].ID)
	if _, err := svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "CONFIRMED"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Reschedule(ctx, patCara, a.AppointmentID, slots[1].ID, "travel"); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if _, err := svc.Cancel(ctx, patCara, a.AppointmentID, "better now"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Rejected transitions stay silent.
	svc.ChangeStatus(ctx, drAlice, a.AppointmentID, validate.StatusChangeForm{Status: "COMPLETED"})

	want := []StatusEvent{
		{AppointmentID: a.AppointmentID, PatientID: patCara, DoctorID: drAlice, To: StatusPending},
		{AppointmentID: a.AppointmentID, PatientID: patCara, DoctorID: drAlice, From: StatusPending, To: StatusConfirmed},
		{AppointmentID: a.AppointmentID, PatientID: patCara, DoctorID: drAlice, From: StatusConfirmed, To: StatusPending, Rescheduled: true},
		{AppointmentID: a.AppointmentID, PatientID: patCara, DoctorID: drAlice, From: StatusPending, To: StatusCancelled},
	}
	if len(rec.events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event %d: expected %+v, got %+v", i, want[i], rec.events[i])
		}
	}
}
