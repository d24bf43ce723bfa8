// Package slotpicker lets a patient choose one open slot of a doctor and
// book it.
package slotpicker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/validate"
)

// Backend is the part of the API client the picker needs.
type Backend interface {
	DoctorSlotsForPatient(ctx context.Context, doctorID int64) ([]scheduling.Slot, error)
	BookAppointment(ctx context.Context, slotID int64, reason string) (scheduling.Appointment, error)
}

type Option func(*Picker)

// WithClock replaces time.Now when deciding which slots are in the past.
func WithClock(now func() time.Time) Option {
	return func(p *Picker) { p.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Picker) { p.logger = l }
}

// Picker holds the open slots of one doctor and at most one selection.
// It is not safe for concurrent use.
type Picker struct {
	backend  Backend
	now      func() time.Time
	logger   zerolog.Logger
	doctorID int64
	slots    []scheduling.Slot
	selected int64
	reason   string
}

func New(backend Backend, opts ...Option) *Picker {
	p := &Picker{backend: backend, now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetDoctor switches to another doctor and loads their slots. The selection
// is cleared whenever the doctor changes.
func (p *Picker) SetDoctor(ctx context.Context, doctorID int64) error {
	if doctorID != p.doctorID {
		p.doctorID = doctorID
		p.slots = nil
		p.Clear()
	}
	return p.Refresh(ctx)
}

func (p *Picker) DoctorID() int64 { return p.doctorID }

// Refresh refetches the current doctor's slots, keeping only ACTIVE,
// unbooked and future ones. A selection that is no longer offered is dropped.
func (p *Picker) Refresh(ctx context.Context) error {
	if p.doctorID == 0 {
		return invalid("choose a doctor first")
	}
	all, err := p.backend.DoctorSlotsForPatient(ctx, p.doctorID)
	if err != nil {
		return fmt.Errorf("load slots of doctor %d: %w", p.doctorID, err)
	}
	now := p.now()
	open := make([]scheduling.Slot, 0, len(all))
	for _, s := range all {
		if s.Bookable(now) {
			open = append(open, s)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if open[i].SlotDate != open[j].SlotDate {
			return open[i].SlotDate < open[j].SlotDate
		}
		return open[i].At() < open[j].At()
	})
	p.slots = open
	if _, ok := p.find(p.selected); !ok {
		p.selected = 0
	}
	return nil
}

// Slots returns the open slots in chronological order.
func (p *Picker) Slots() []scheduling.Slot {
	out := make([]scheduling.Slot, len(p.slots))
	copy(out, p.slots)
	return out
}

func (p *Picker) find(id int64) (scheduling.Slot, bool) {
	if id == 0 {
		return scheduling.Slot{}, false
	}
	for _, s := range p.slots {
		if s.ID == id {
			return s, true
		}
	}
	return scheduling.Slot{}, false
}

// Select marks slotID as the chosen slot. Only an offered slot can be chosen.
func (p *Picker) Select(slotID int64) error {
	if _, ok := p.find(slotID); !ok {
		return invalid("slot %d is not available", slotID)
	}
	p.selected = slotID
	return nil
}

// Selected returns the chosen slot, if any.
func (p *Picker) Selected() (scheduling.Slot, bool) {
	s, ok := p.find(p.selected)
	if ok && s.DoctorID == 0 {
		s.DoctorID = p.doctorID
	}
	return s, ok
}

func (p *Picker) Clear() { p.selected = 0 }

func (p *Picker) SetReason(reason string) { p.reason = reason }

func (p *Picker) Reason() string { return p.reason }

// Book books the selected slot with the current reason. On success the
// selection and reason are reset and the slot list reloaded. When the
// backend rejects the booking, for instance because someone else took the
// slot, the list is reloaded too and the error returned.
func (p *Picker) Book(ctx context.Context) (scheduling.Appointment, error) {
	slot, ok := p.Selected()
	if !ok {
		return scheduling.Appointment{}, invalid("select a slot first")
	}
	if err := validate.Struct(validate.BookingForm{SlotID: slot.ID, Reason: p.reason}); err != nil {
		return scheduling.Appointment{}, &client.Error{Kind: client.KindValidation, Message: err.Error(), Err: err}
	}

	appt, err := p.backend.BookAppointment(ctx, slot.ID, p.reason)
	if err != nil {
		var apiErr *client.Error
		if errors.As(err, &apiErr) && apiErr.Kind == client.KindStatus {
			if rerr := p.Refresh(ctx); rerr != nil {
				p.logger.Warn().Err(rerr).Int64("doctor_id", p.doctorID).Msg("reload slots after rejected booking")
			}
		}
		return scheduling.Appointment{}, fmt.Errorf("book slot %d: %w", slot.ID, err)
	}

	p.logger.Debug().Int64("slot_id", slot.ID).Int64("appointment_id", appt.AppointmentID).Msg("slot booked")
	p.selected = 0
	p.reason = ""
	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn().Err(err).Int64("doctor_id", p.doctorID).Msg("reload slots after booking")
	}
	return appt, nil
}

func invalid(format string, args ...interface{}) error {
	return &client.Error{Kind: client.KindValidation, Message: fmt.Sprintf(format, args...)}
}
