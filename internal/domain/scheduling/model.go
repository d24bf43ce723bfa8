package scheduling

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every appointment status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an appointment may move from one status to
// another. The path is PENDING -> CONFIRMED -> COMPLETED, with CANCELLED
// reachable from either non-terminal status.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusEvent records an appointment moving between statuses. From is empty
// for a new booking.
type StatusEvent struct {
	AppointmentID int64  `json:"appointmentId"`
	PatientID     int64  `json:"patientId"`
	DoctorID      int64  `json:"doctorId"`
	From          Status `json:"from,omitempty"`
	To            Status `json:"to"`
	Rescheduled   bool   `json:"rescheduled,omitempty"`
}

type Appointment struct {
	AppointmentID     int64  `json:"appointmentId"`
	PatientID         int64  `json:"patientId"`
	PatientName       string `json:"patientName,omitempty"`
	DoctorID          int64  `json:"doctorId"`
	DoctorName        string `json:"doctorName,omitempty"`
	SlotID            int64  `json:"slotId,omitempty"`
	SlotDate          string `json:"slotDate,omitempty"`
	SlotTime          string `json:"slotTime,omitempty"`
	Date              string `json:"date,omitempty"`
	Time              string `json:"time,omitempty"`
	Status            Status `json:"status"`
	Reason            string `json:"reason,omitempty"`
	ReasonForBooking  string `json:"reasonForBooking,omitempty"`
	Rescheduled       bool   `json:"rescheduled"`
	RescheduleReason  string `json:"rescheduleReason,omitempty"`
	CancelReason      string `json:"cancelReason,omitempty"`
	FeedbackSubmitted bool   `json:"feedbackSubmitted"`
}

// Day returns the appointment date whichever field the backend filled.
func (a Appointment) Day() string {
	if a.SlotDate != "" {
		return a.SlotDate
	}
	return a.Date
}

// At returns the time of day whichever field the backend filled.
func (a Appointment) At() string {
	if a.SlotTime != "" {
		return a.SlotTime
	}
	return a.Time
}

func (a Appointment) BookingReason() string {
	if a.Reason != "" {
		return a.Reason
	}
	return a.ReasonForBooking
}

// DoctorView is the shape returned on doctor routes.
func (a Appointment) DoctorView() Appointment {
	v := a
	v.SlotDate, v.SlotTime = a.Day(), a.At()
	v.Date, v.Time = "", ""
	v.Reason, v.ReasonForBooking = a.BookingReason(), ""
	return v
}

// PatientView is the shape returned on patient routes.
func (a Appointment) PatientView() Appointment {
	v := a
	v.Date, v.Time = a.Day(), a.At()
	v.SlotDate, v.SlotTime = "", ""
	v.ReasonForBooking, v.Reason = a.BookingReason(), ""
	return v
}

type SlotStatus string

const (
	SlotActive   SlotStatus = "ACTIVE"
	SlotInactive SlotStatus = "INACTIVE"
)

type Slot struct {
	ID        int64      `json:"id"`
	DoctorID  int64      `json:"doctorId,omitempty"`
	SlotDate  string     `json:"slotDate"`
	SlotTime  string     `json:"slotTime,omitempty"`
	StartTime string     `json:"startTime,omitempty"`
	Status    SlotStatus `json:"status"`
	Booked    bool       `json:"booked"`
}

func (s Slot) At() string {
	if s.SlotTime != "" {
		return s.SlotTime
	}
	return s.StartTime
}

// StartsAt combines the slot date and time in loc.
func (s Slot) StartsAt(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, s.SlotDate+" "+s.At(), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("slot %d: %w", s.ID, err)
	}
	return t, nil
}

// Bookable reports whether a patient may take the slot at now.
func (s Slot) Bookable(now time.Time) bool {
	if s.Status != SlotActive || s.Booked {
		return false
	}
	start, err := s.StartsAt(now.Location())
	if err != nil {
		return false
	}
	return start.After(now)
}

// DoctorSummary is a row of the patient's doctor search.
type DoctorSummary struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Specialization string  `json:"specialization"`
	Hospital       string  `json:"hospital"`
	AverageRating  float64 `json:"averageRating"`
	RatingCount    int     `json:"ratingCount"`
}

type FeedbackEntry struct {
	AppointmentID int64  `json:"appointmentId"`
	PatientName   string `json:"patientName"`
	Feedback      string `json:"feedback"`
	Rating        int    `json:"rating"`
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Split cuts the range into consecutive starts spaced by interval. A tail
// shorter than interval is dropped.
func (r TimeRange) Split(interval time.Duration) ([]time.Time, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("slot interval must be positive")
	}
	if !r.End.After(r.Start) {
		return nil, fmt.Errorf("end must be after start")
	}
	var starts []time.Time
	for t := r.Start; !t.Add(interval).After(r.End); t = t.Add(interval) {
		starts = append(starts, t)
	}
	return starts, nil
}
