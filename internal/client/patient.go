package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/medvault/medvault/internal/domain/clinical"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/validate"
)

// -- Doctors and booking --

func (c *Client) SearchDoctors(ctx context.Context) ([]scheduling.DoctorSummary, error) {
	var out []scheduling.DoctorSummary
	err := c.do(ctx, http.MethodGet, "/patient/search-doctors", nil, nil, &out)
	return out, err
}

// DoctorSlotsForPatient lists the doctor's bookable slots.
func (c *Client) DoctorSlotsForPatient(ctx context.Context, doctorID int64) ([]scheduling.Slot, error) {
	var out []scheduling.Slot
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/patient/doctor/%d/slots", doctorID), nil, nil, &out)
	return out, err
}

// BookAppointment claims a slot. The body is an empty object; the reason
// travels as a query parameter.
func (c *Client) BookAppointment(ctx context.Context, slotID int64, reason string) (scheduling.Appointment, error) {
	var out scheduling.Appointment
	if err := check(validate.BookingForm{SlotID: slotID, Reason: reason}); err != nil {
		return out, err
	}
	q := url.Values{}
	if reason != "" {
		q.Set("reason", reason)
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/patient/book-appointment/%d", slotID), q, struct{}{}, &out)
	return out, err
}

// -- Appointments --

func (c *Client) PatientAppointments(ctx context.Context) ([]scheduling.Appointment, error) {
	var out []scheduling.Appointment
	err := c.do(ctx, http.MethodGet, "/patient/appointments", nil, nil, &out)
	return out, err
}

// CancelAppointment cancels with a mandatory reason.
func (c *Client) CancelAppointment(ctx context.Context, id int64, reason string) (scheduling.Appointment, error) {
	var out scheduling.Appointment
	if err := check(validate.CancelForm{Reason: reason}); err != nil {
		return out, err
	}
	q := url.Values{"reason": {reason}}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/patient/appointments/%d/cancel", id), q, nil, &out)
	return out, err
}

// RescheduleAppointment moves the appointment to newSlotID. Same-doctor
// checks are left to the caller and the backend.
func (c *Client) RescheduleAppointment(ctx context.Context, id, newSlotID int64, reason string) (scheduling.Appointment, error) {
	var out scheduling.Appointment
	if err := check(validate.RescheduleForm{NewSlotID: newSlotID, Reason: reason}); err != nil {
		return out, err
	}
	q := url.Values{
		"newSlotId": {strconv.FormatInt(newSlotID, 10)},
		"reason":    {reason},
	}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/patient/appointments/%d/reschedule", id), q, nil, &out)
	return out, err
}

func (c *Client) SubmitFeedback(ctx context.Context, id int64, text string, rating int) (string, error) {
	if err := check(validate.FeedbackForm{Feedback: text, Rating: rating}); err != nil {
		return "", err
	}
	q := url.Values{
		"feedback": {text},
		"rating":   {strconv.Itoa(rating)},
	}
	var msg string
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/patient/appointments/%d/feedback", id), q, nil, &msg)
	return msg, err
}

// -- Records --

func (c *Client) Records(ctx context.Context) ([]clinical.MedicalRecord, error) {
	var out []clinical.MedicalRecord
	err := c.do(ctx, http.MethodGet, "/patient/medical-records", nil, nil, &out)
	return out, err
}

// UploadRecord uploads a document under a display name. A blank name lets
// the backend use the file name.
func (c *Client) UploadRecord(ctx context.Context, name, fileName, contentType string, data io.Reader) (clinical.MedicalRecord, error) {
	var out clinical.MedicalRecord
	if data == nil || fileName == "" {
		return out, invalid("a file is required")
	}
	fields := map[string]string{}
	if name != "" {
		fields["name"] = name
	}
	file := FilePart{Field: "file", FileName: fileName, ContentType: contentType, Data: data}
	err := c.doMultipart(ctx, http.MethodPost, "/patient/medical-records/upload", fields, []FilePart{file}, &out)
	return out, err
}

func (c *Client) DeleteRecord(ctx context.Context, id int64) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/patient/medical-records/%d", id), nil, nil, &msg)
	return msg, err
}

func (c *Client) ViewRecord(ctx context.Context, id int64) (*Blob, error) {
	return c.doBlob(ctx, fmt.Sprintf("/patient/medical-records/%d/view", id))
}

// -- Access requests --

func (c *Client) PendingAccessRequests(ctx context.Context) ([]clinical.RecordAccess, error) {
	var out []clinical.RecordAccess
	err := c.do(ctx, http.MethodGet, "/patient/records/pending-access", nil, nil, &out)
	return out, err
}

func (c *Client) ApproveAccess(ctx context.Context, id int64) (string, error) {
	return c.decide(ctx, fmt.Sprintf("/patient/records/access/%d/approve", id))
}

func (c *Client) RejectAccess(ctx context.Context, id int64) (string, error) {
	return c.decide(ctx, fmt.Sprintf("/patient/records/access/%d/reject", id))
}

func (c *Client) HistoryAccessRequests(ctx context.Context) ([]clinical.HistoryAccess, error) {
	var out []clinical.HistoryAccess
	err := c.do(ctx, http.MethodGet, "/patient/history/requests", nil, nil, &out)
	return out, err
}

func (c *Client) ApproveHistoryAccess(ctx context.Context, id int64) (string, error) {
	return c.decide(ctx, fmt.Sprintf("/patient/history/requests/%d/approve", id))
}

func (c *Client) RejectHistoryAccess(ctx context.Context, id int64) (string, error) {
	return c.decide(ctx, fmt.Sprintf("/patient/history/requests/%d/reject", id))
}

func (c *Client) decide(ctx context.Context, path string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, path, nil, nil, &msg)
	return msg, err
}

// -- History --

func (c *Client) Histories(ctx context.Context) ([]clinical.History, error) {
	var out []clinical.History
	err := c.do(ctx, http.MethodGet, "/patient/history", nil, nil, &out)
	return out, err
}

func (c *Client) AddHistory(ctx context.Context, form validate.HistoryForm) (clinical.History, error) {
	var out clinical.History
	if err := check(form); err != nil {
		return out, err
	}
	err := c.do(ctx, http.MethodPost, "/patient/history", nil, form, &out)
	return out, err
}

func (c *Client) UpdateHistory(ctx context.Context, id int64, form validate.HistoryForm) (clinical.History, error) {
	var out clinical.History
	if err := check(form); err != nil {
		return out, err
	}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/patient/history/%d", id), nil, form, &out)
	return out, err
}

func (c *Client) DeleteHistory(ctx context.Context, id int64) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/patient/history/%d", id), nil, nil, &msg)
	return msg, err
}

// -- Emergencies --

func (c *Client) PatientEmergencies(ctx context.Context) ([]clinical.Emergency, error) {
	var out []clinical.Emergency
	err := c.do(ctx, http.MethodGet, "/patient/emergencies", nil, nil, &out)
	return out, err
}

func (c *Client) RaiseEmergency(ctx context.Context, form validate.EmergencyForm) (clinical.Emergency, error) {
	var out clinical.Emergency
	if err := check(form); err != nil {
		return out, err
	}
	err := c.do(ctx, http.MethodPost, "/patient/emergency", nil, form, &out)
	return out, err
}
