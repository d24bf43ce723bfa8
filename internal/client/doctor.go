package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/medvault/medvault/internal/domain/clinical"
	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/validate"
)

// -- Appointments --

// DoctorAppointments lists the doctor's appointments. date and status are
// sent to the backend as filters when set.
func (c *Client) DoctorAppointments(ctx context.Context, date string, status scheduling.Status) ([]scheduling.Appointment, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if status != "" {
		q.Set("status", string(status))
	}
	var out []scheduling.Appointment
	err := c.do(ctx, http.MethodGet, "/doctor/appointments", q, nil, &out)
	return out, err
}

// SetAppointmentStatus moves an appointment to status. A cancellation needs
// a reason; the request is not sent without one.
func (c *Client) SetAppointmentStatus(ctx context.Context, id int64, status scheduling.Status, cancelReason string) (scheduling.Appointment, error) {
	var out scheduling.Appointment
	form := validate.StatusChangeForm{Status: string(status)}
	if status == scheduling.StatusCancelled {
		form.CancelReason = cancelReason
	}
	if err := check(form); err != nil {
		return out, err
	}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/doctor/appointments/%d/status", id), nil, form, &out)
	return out, err
}

func (c *Client) DoctorFeedback(ctx context.Context) ([]scheduling.FeedbackEntry, error) {
	var out []scheduling.FeedbackEntry
	err := c.do(ctx, http.MethodGet, "/doctor/appointments/feedback", nil, nil, &out)
	return out, err
}

// -- Slots --

func (c *Client) DoctorSlots(ctx context.Context, date string) ([]scheduling.Slot, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	var out []scheduling.Slot
	err := c.do(ctx, http.MethodGet, "/doctor/slots", q, nil, &out)
	return out, err
}

// CreateSlots bulk-creates slots and returns the backend's text reply.
func (c *Client) CreateSlots(ctx context.Context, form validate.CreateSlotsForm) (string, error) {
	if err := check(form); err != nil {
		return "", err
	}
	var msg string
	err := c.do(ctx, http.MethodPost, "/doctor/create-slots", nil, form, &msg)
	return msg, err
}

func (c *Client) SetSlotStatus(ctx context.Context, id int64, status scheduling.SlotStatus) (scheduling.Slot, error) {
	var out scheduling.Slot
	form := validate.SlotStatusForm{Status: string(status)}
	if err := check(form); err != nil {
		return out, err
	}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/doctor/slots/%d/status", id), nil, form, &out)
	return out, err
}

func (c *Client) DeleteSlot(ctx context.Context, id int64) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/doctor/slots/%d", id), nil, nil, &msg)
	return msg, err
}

// -- Emergencies --

func (c *Client) DoctorEmergencies(ctx context.Context) ([]clinical.Emergency, error) {
	var out []clinical.Emergency
	err := c.do(ctx, http.MethodGet, "/doctor/emergencies", nil, nil, &out)
	return out, err
}

func (c *Client) AcceptedEmergencies(ctx context.Context) ([]clinical.Emergency, error) {
	var out []clinical.Emergency
	err := c.do(ctx, http.MethodGet, "/doctor/emergencies/accepted", nil, nil, &out)
	return out, err
}

func (c *Client) AcceptEmergency(ctx context.Context, id int64) (clinical.Emergency, error) {
	var out clinical.Emergency
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/doctor/emergency/accept/%d", id), nil, nil, &out)
	return out, err
}

// -- Patients and records --

// PatientSummary is a patient the doctor has a confirmed appointment with.
type PatientSummary struct {
	ID           int64
	Name         string
	Appointments int
}

// DoctorPatients derives the doctor's patient list from CONFIRMED
// appointments, sorted by name.
func (c *Client) DoctorPatients(ctx context.Context) ([]PatientSummary, error) {
	appts, err := c.DoctorAppointments(ctx, "", scheduling.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*PatientSummary)
	for _, a := range appts {
		if a.Status != scheduling.StatusConfirmed {
			continue
		}
		p, ok := byID[a.PatientID]
		if !ok {
			p = &PatientSummary{ID: a.PatientID, Name: a.PatientName}
			byID[a.PatientID] = p
		}
		p.Appointments++
	}
	out := make([]PatientSummary, 0, len(byID))
	for _, p := range byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// PatientRecordsForDoctor lists the patient's records shared with the caller.
func (c *Client) PatientRecordsForDoctor(ctx context.Context, patientID int64) ([]clinical.SharedRecord, error) {
	var out []clinical.SharedRecord
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/doctor/patients/%d/medical-records", patientID), nil, nil, &out)
	return out, err
}

// PatientHistoriesForDoctor returns the patient's history. Without approval
// the backend answers 403 and files an access request.
func (c *Client) PatientHistoriesForDoctor(ctx context.Context, patientID int64) ([]clinical.History, error) {
	var out []clinical.History
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/doctor/patients/%d/histories", patientID), nil, nil, &out)
	return out, err
}

// RequestRecordAccess asks for the patient's records for days (0 leaves the
// backend default).
func (c *Client) RequestRecordAccess(ctx context.Context, patientID int64, days int) ([]clinical.RecordAccess, error) {
	if days < 0 || days > clinical.MaxAccessDays {
		return nil, invalid("access days must be between 1 and %d", clinical.MaxAccessDays)
	}
	q := url.Values{}
	if days > 0 {
		q.Set("accessDays", strconv.Itoa(days))
	}
	var out []clinical.RecordAccess
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/doctor/patients/%d/medical-records/request", patientID), q, nil, &out)
	return out, err
}

// SharedRecords lists every record currently shared with the caller.
func (c *Client) SharedRecords(ctx context.Context) ([]clinical.SharedRecord, error) {
	var out []clinical.SharedRecord
	err := c.do(ctx, http.MethodGet, "/doctor/medical-records", nil, nil, &out)
	return out, err
}

func (c *Client) ViewRecordAsDoctor(ctx context.Context, recordID int64) (*Blob, error) {
	return c.doBlob(ctx, fmt.Sprintf("/doctor/medical-records/%d/view", recordID))
}

// -- Profile --

func (c *Client) ProfileCompletion(ctx context.Context) (identity.ProfileCompletion, error) {
	var out identity.ProfileCompletion
	err := c.do(ctx, http.MethodGet, "/doctor/check-profile-completion", nil, nil, &out)
	return out, err
}
