package scheduling

import (
	"context"

	"github.com/medvault/medvault/internal/platform/apperr"
)

// ErrNotFound is returned by repositories for unknown ids.
var ErrNotFound = apperr.ErrNotFound

type SlotRepository interface {
	Create(ctx context.Context, sl *Slot) error
	GetByID(ctx context.Context, id int64) (*Slot, error)
	Update(ctx context.Context, sl *Slot) error
	Delete(ctx context.Context, id int64) error
	ListByDoctor(ctx context.Context, doctorID int64, date string) ([]*Slot, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByDoctor(ctx context.Context, doctorID int64) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error)
	List(ctx context.Context) ([]*Appointment, error)
}

type FeedbackRepository interface {
	Create(ctx context.Context, doctorID int64, f *FeedbackEntry) error
	ListByDoctor(ctx context.Context, doctorID int64) ([]*FeedbackEntry, error)
}
