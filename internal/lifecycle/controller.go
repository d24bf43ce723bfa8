package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/validate"
)

// Backend is the subset of the API client the controller drives.
type Backend interface {
	SetAppointmentStatus(ctx context.Context, id int64, status scheduling.Status, cancelReason string) (scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, id int64, reason string) (scheduling.Appointment, error)
	RescheduleAppointment(ctx context.Context, id, newSlotID int64, reason string) (scheduling.Appointment, error)
	SubmitFeedback(ctx context.Context, id int64, text string, rating int) (string, error)
}

// Refresher reloads the collection the appointment came from.
type Refresher interface {
	Load(ctx context.Context) error
}

// Request carries the user input of an action. Reason doubles as the
// feedback text.
type Request struct {
	Reason  string
	NewSlot *scheduling.Slot
	Rating  int
}

// Controller dispatches appointment actions for one role. A successful
// action is followed by a full reload of the collection; a failed one leaves
// it untouched.
type Controller struct {
	role    auth.Role
	backend Backend
	store   Refresher
	logger  zerolog.Logger
}

func NewController(role auth.Role, backend Backend, store Refresher, logger zerolog.Logger) *Controller {
	return &Controller{role: role, backend: backend, store: store, logger: logger}
}

func (c *Controller) Role() auth.Role { return c.role }

func (c *Controller) Actions(a scheduling.Appointment) []Action {
	return Allowed(c.role, a)
}

func invalid(format string, args ...interface{}) error {
	return &client.Error{Kind: client.KindValidation, Message: fmt.Sprintf(format, args...)}
}

// check rejects missing input before anything is sent.
func check(rule Rule, a scheduling.Appointment, req Request) error {
	if rule.Needs&NeedsSlot != 0 {
		if req.NewSlot == nil {
			return invalid("select a new slot first")
		}
		if req.NewSlot.DoctorID != 0 && req.NewSlot.DoctorID != a.DoctorID {
			return invalid("the new slot must be with the same doctor")
		}
		if req.NewSlot.ID == a.SlotID {
			return invalid("the new slot is the current slot")
		}
	}
	if rule.Needs&NeedsRating != 0 {
		if err := validate.Struct(validate.FeedbackForm{Feedback: req.Reason, Rating: req.Rating}); err != nil {
			return &client.Error{Kind: client.KindValidation, Message: err.Error(), Err: err}
		}
		return nil
	}
	if rule.Needs&NeedsReason != 0 && strings.TrimSpace(req.Reason) == "" {
		return invalid("a reason is required to %s", rule.Action)
	}
	return nil
}

// Dispatch performs action on a and reloads the collection on success.
func (c *Controller) Dispatch(ctx context.Context, a scheduling.Appointment, action Action, req Request) error {
	rule, ok := Lookup(c.role, a.Status, action)
	if !ok || !Can(c.role, a, action) {
		return invalid("cannot %s a %s appointment", action, strings.ToLower(string(a.Status)))
	}
	if err := check(rule, a, req); err != nil {
		return err
	}

	if err := c.send(ctx, rule, a, req); err != nil {
		return fmt.Errorf("%s appointment %d: %w", action, a.AppointmentID, err)
	}
	c.logger.Debug().
		Int64("appointment_id", a.AppointmentID).
		Str("action", string(action)).
		Str("role", string(c.role)).
		Msg("appointment action sent")

	if c.store == nil {
		return nil
	}
	if err := c.store.Load(ctx); err != nil {
		return fmt.Errorf("refresh appointments: %w", err)
	}
	return nil
}

func (c *Controller) send(ctx context.Context, rule Rule, a scheduling.Appointment, req Request) error {
	var err error
	switch {
	case c.role == auth.RoleDoctor:
		reason := ""
		if rule.To == scheduling.StatusCancelled {
			reason = req.Reason
		}
		_, err = c.backend.SetAppointmentStatus(ctx, a.AppointmentID, rule.To, reason)
	case rule.Action == ActionCancel:
		_, err = c.backend.CancelAppointment(ctx, a.AppointmentID, req.Reason)
	case rule.Action == ActionReschedule:
		_, err = c.backend.RescheduleAppointment(ctx, a.AppointmentID, req.NewSlot.ID, req.Reason)
	case rule.Action == ActionFeedback:
		_, err = c.backend.SubmitFeedback(ctx, a.AppointmentID, req.Reason, req.Rating)
	default:
		err = invalid("unsupported action %s", rule.Action)
	}
	return err
}
