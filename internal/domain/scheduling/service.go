package scheduling

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medvault/medvault/internal/platform/apperr"
	"github.com/medvault/medvault/internal/platform/validate"
)

type DoctorRef struct {
	ID             int64
	Name           string
	Specialization string
	Hospital       string
}

type PatientRef struct {
	ID   int64
	Name string
}

// Directory resolves user names owned by the identity domain.
type Directory interface {
	Doctor(ctx context.Context, id int64) (DoctorRef, error)
	Patient(ctx context.Context, id int64) (PatientRef, error)
	ApprovedDoctors(ctx context.Context) ([]DoctorRef, error)
}

// Notifier hears about every committed status change.
type Notifier interface {
	AppointmentChanged(ctx context.Context, ev StatusEvent)
}

type Service struct {
	notifier     Notifier
	slots        SlotRepository
	appointments AppointmentRepository
	feedback     FeedbackRepository
	dir          Directory
	now          func() time.Time

	// book serializes slot claims so a slot is never handed out twice.
	book sync.Mutex
}

func NewService(slots SlotRepository, appts AppointmentRepository, fb FeedbackRepository, dir Directory) *Service {
	return &Service{slots: slots, appointments: appts, feedback: fb, dir: dir, now: time.Now}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) notify(ctx context.Context, a *Appointment, from Status, rescheduled bool) {
	if s.notifier == nil {
		return
	}
	s.notifier.AppointmentChanged(ctx, StatusEvent{
		AppointmentID: a.AppointmentID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		From:          from,
		To:            a.Status,
		Rescheduled:   rescheduled,
	})
}

// -- Slots --

// CreateSlots splits [start, end) on the given date into fixed-interval
// slots for the doctor. Starts that already exist are skipped.
func (s *Service) CreateSlots(ctx context.Context, doctorID int64, form validate.CreateSlotsForm) ([]*Slot, error) {
	if err := validate.Struct(form); err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	loc := s.now().Location()
	start, err := time.ParseInLocation(DateLayout+" "+TimeLayout, form.SlotDate+" "+form.StartTime, loc)
	if err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "invalid start: %v", err)
	}
	end, err := time.ParseInLocation(DateLayout+" "+TimeLayout, form.SlotDate+" "+form.EndTime, loc)
	if err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "invalid end: %v", err)
	}
	if !start.After(s.now()) {
		return nil, apperr.New(apperr.ErrInvalid, "cannot create slots in the past")
	}
	starts, err := TimeRange{Start: start, End: end}.Split(time.Duration(form.SlotIntervalMinutes) * time.Minute)
	if err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "%v", err)
	}

	existing, err := s.slots.ListByDoctor(ctx, doctorID, form.SlotDate)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	for _, sl := range existing {
		taken[sl.At()] = true
	}

	var created []*Slot
	for _, t := range starts {
		at := t.Format(TimeLayout)
		if taken[at] {
			continue
		}
		sl := &Slot{DoctorID: doctorID, SlotDate: form.SlotDate, SlotTime: at, StartTime: at, Status: SlotActive}
		if err := s.slots.Create(ctx, sl); err != nil {
			return nil, err
		}
		created = append(created, sl)
	}
	if len(created) == 0 {
		return nil, apperr.New(apperr.ErrConflict, "all slots in this range already exist")
	}
	return created, nil
}

func (s *Service) DoctorSlots(ctx context.Context, doctorID int64, date string) ([]*Slot, error) {
	slots, err := s.slots.ListByDoctor(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	sortSlots(slots)
	return slots, nil
}

func (s *Service) ownSlot(ctx context.Context, doctorID, slotID int64) (*Slot, error) {
	sl, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "slot %d not found", slotID)
		}
		return nil, err
	}
	if sl.DoctorID != doctorID {
		return nil, apperr.New(apperr.ErrForbidden, "slot %d belongs to another doctor", slotID)
	}
	return sl, nil
}

func (s *Service) SetSlotStatus(ctx context.Context, doctorID, slotID int64, status SlotStatus) (*Slot, error) {
	if status != SlotActive && status != SlotInactive {
		return nil, apperr.New(apperr.ErrInvalid, "status must be ACTIVE or INACTIVE")
	}
	sl, err := s.ownSlot(ctx, doctorID, slotID)
	if err != nil {
		return nil, err
	}
	sl.Status = status
	if err := s.slots.Update(ctx, sl); err != nil {
		return nil, err
	}
	return sl, nil
}

// DeleteSlot removes an unbooked slot.
func (s *Service) DeleteSlot(ctx context.Context, doctorID, slotID int64) error {
	sl, err := s.ownSlot(ctx, doctorID, slotID)
	if err != nil {
		return err
	}
	if sl.Booked {
		return apperr.New(apperr.ErrConflict, "slot %d is booked and cannot be deleted", slotID)
	}
	return s.slots.Delete(ctx, slotID)
}

// AvailableSlots lists what a patient may book with the doctor.
func (s *Service) AvailableSlots(ctx context.Context, doctorID int64) ([]*Slot, error) {
	all, err := s.slots.ListByDoctor(ctx, doctorID, "")
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*Slot, 0, len(all))
	for _, sl := range all {
		if sl.Bookable(now) {
			out = append(out, sl)
		}
	}
	sortSlots(out)
	return out, nil
}

// -- Doctors --

func (s *Service) SearchDoctors(ctx context.Context) ([]DoctorSummary, error) {
	docs, err := s.dir.ApprovedDoctors(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DoctorSummary, 0, len(docs))
	for _, d := range docs {
		fb, err := s.feedback.ListByDoctor(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		sum := DoctorSummary{ID: d.ID, Name: d.Name, Specialization: d.Specialization, Hospital: d.Hospital, RatingCount: len(fb)}
		if len(fb) > 0 {
			total := 0
			for _, f := range fb {
				total += f.Rating
			}
			sum.AverageRating = math.Round(float64(total)/float64(len(fb))*10) / 10
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Service) DoctorFeedback(ctx context.Context, doctorID int64) ([]*FeedbackEntry, error) {
	return s.feedback.ListByDoctor(ctx, doctorID)
}

// -- Appointments --

func (s *Service) claimSlot(ctx context.Context, slotID int64) (*Slot, error) {
	sl, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "slot %d not found", slotID)
		}
		return nil, err
	}
	switch {
	case sl.Booked:
		return nil, apperr.New(apperr.ErrConflict, "slot %d is already booked", slotID)
	case sl.Status != SlotActive:
		return nil, apperr.New(apperr.ErrConflict, "slot %d is not available", slotID)
	case !sl.Bookable(s.now()):
		return nil, apperr.New(apperr.ErrConflict, "slot %d is in the past", slotID)
	}
	return sl, nil
}

func (s *Service) releaseSlot(ctx context.Context, slotID int64) error {
	sl, err := s.slots.GetByID(ctx, slotID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	sl.Booked = false
	return s.slots.Update(ctx, sl)
}

// Book creates a PENDING appointment on a free slot.
func (s *Service) Book(ctx context.Context, patientID, slotID int64, reason string) (*Appointment, error) {
	s.book.Lock()
	defer s.book.Unlock()

	sl, err := s.claimSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	doc, err := s.dir.Doctor(ctx, sl.DoctorID)
	if err != nil {
		return nil, err
	}
	pat, err := s.dir.Patient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	sl.Booked = true
	if err := s.slots.Update(ctx, sl); err != nil {
		return nil, err
	}
	a := &Appointment{
		PatientID:   patientID,
		PatientName: pat.Name,
		DoctorID:    doc.ID,
		DoctorName:  doc.Name,
		SlotID:      sl.ID,
		SlotDate:    sl.SlotDate,
		SlotTime:    sl.At(),
		Status:      StatusPending,
		Reason:      strings.TrimSpace(reason),
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}
	s.notify(ctx, a, "", false)
	return a, nil
}

// DoctorAppointments returns the doctor's appointments sorted by date then
// time, optionally filtered by exact date and status.
func (s *Service) DoctorAppointments(ctx context.Context, doctorID int64, date string, status Status) ([]*Appointment, error) {
	all, err := s.appointments.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if date != "" && a.Day() != date {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sortAppointments(out)
	return out, nil
}

func (s *Service) PatientAppointments(ctx context.Context, patientID int64) ([]*Appointment, error) {
	all, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sortAppointments(all)
	return all, nil
}

func (s *Service) AllAppointments(ctx context.Context) ([]*Appointment, error) {
	all, err := s.appointments.List(ctx)
	if err != nil {
		return nil, err
	}
	sortAppointments(all)
	return all, nil
}

func (s *Service) getAppointment(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "appointment %d not found", id)
		}
		return nil, err
	}
	return a, nil
}

func (s *Service) doctorAppointment(ctx context.Context, doctorID, id int64) (*Appointment, error) {
	a, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != doctorID {
		return nil, apperr.New(apperr.ErrForbidden, "appointment %d belongs to another doctor", id)
	}
	return a, nil
}

func (s *Service) patientAppointment(ctx context.Context, patientID, id int64) (*Appointment, error) {
	a, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, apperr.New(apperr.ErrForbidden, "appointment %d belongs to another patient", id)
	}
	return a, nil
}

// ChangeStatus applies a doctor's confirm, complete or cancel.
func (s *Service) ChangeStatus(ctx context.Context, doctorID, id int64, form validate.StatusChangeForm) (*Appointment, error) {
	if err := validate.Struct(form); err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	a, err := s.doctorAppointment(ctx, doctorID, id)
	if err != nil {
		return nil, err
	}
	to := Status(form.Status)
	if !CanTransition(a.Status, to) {
		return nil, apperr.New(apperr.ErrConflict, "cannot change appointment from %s to %s", a.Status, to)
	}
	from := a.Status
	a.Status = to
	if to == StatusCancelled {
		a.CancelReason = strings.TrimSpace(form.CancelReason)
		if err := s.releaseSlot(ctx, a.SlotID); err != nil {
			return nil, err
		}
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	s.notify(ctx, a, from, false)
	return a, nil
}

// Cancel is the patient's cancellation, allowed while PENDING.
func (s *Service) Cancel(ctx context.Context, patientID, id int64, reason string) (*Appointment, error) {
	if err := validate.Struct(validate.CancelForm{Reason: reason}); err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	a, err := s.patientAppointment(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPending {
		return nil, apperr.New(apperr.ErrConflict, "only pending appointments can be cancelled, this one is %s", a.Status)
	}
	a.Status = StatusCancelled
	a.CancelReason = strings.TrimSpace(reason)
	if err := s.releaseSlot(ctx, a.SlotID); err != nil {
		return nil, err
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	s.notify(ctx, a, StatusPending, false)
	return a, nil
}

// Reschedule moves a PENDING or CONFIRMED appointment to another free slot
// of the same doctor. The appointment returns to PENDING for the doctor to
// confirm again.
func (s *Service) Reschedule(ctx context.Context, patientID, id, newSlotID int64, reason string) (*Appointment, error) {
	if err := validate.Struct(validate.RescheduleForm{NewSlotID: newSlotID, Reason: reason}); err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	s.book.Lock()
	defer s.book.Unlock()

	a, err := s.patientAppointment(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPending && a.Status != StatusConfirmed {
		return nil, apperr.New(apperr.ErrConflict, "cannot reschedule a %s appointment", a.Status)
	}
	sl, err := s.claimSlot(ctx, newSlotID)
	if err != nil {
		return nil, err
	}
	if sl.DoctorID != a.DoctorID {
		return nil, apperr.New(apperr.ErrInvalid, "slot %d belongs to a different doctor", newSlotID)
	}

	if err := s.releaseSlot(ctx, a.SlotID); err != nil {
		return nil, err
	}
	sl.Booked = true
	if err := s.slots.Update(ctx, sl); err != nil {
		return nil, err
	}
	from := a.Status
	a.SlotID = sl.ID
	a.SlotDate = sl.SlotDate
	a.SlotTime = sl.At()
	a.Status = StatusPending
	a.Rescheduled = true
	a.RescheduleReason = strings.TrimSpace(reason)
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	s.notify(ctx, a, from, true)
	return a, nil
}

// SubmitFeedback records the one-time rating for a COMPLETED appointment.
func (s *Service) SubmitFeedback(ctx context.Context, patientID, id int64, text string, rating int) error {
	if err := validate.Struct(validate.FeedbackForm{Feedback: text, Rating: rating}); err != nil {
		return apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	a, err := s.patientAppointment(ctx, patientID, id)
	if err != nil {
		return err
	}
	if a.Status != StatusCompleted {
		return apperr.New(apperr.ErrConflict, "feedback is only accepted for completed appointments")
	}
	if a.FeedbackSubmitted {
		return apperr.New(apperr.ErrConflict, "feedback already submitted")
	}
	entry := &FeedbackEntry{AppointmentID: a.AppointmentID, PatientName: a.PatientName, Feedback: strings.TrimSpace(text), Rating: rating}
	if err := s.feedback.Create(ctx, a.DoctorID, entry); err != nil {
		return err
	}
	a.FeedbackSubmitted = true
	return s.appointments.Update(ctx, a)
}

func sortAppointments(list []*Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Day() != list[j].Day() {
			return list[i].Day() < list[j].Day()
		}
		return list[i].At() < list[j].At()
	})
}

func sortSlots(list []*Slot) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].SlotDate != list[j].SlotDate {
			return list[i].SlotDate < list[j].SlotDate
		}
		return list[i].At() < list[j].At()
	})
}
