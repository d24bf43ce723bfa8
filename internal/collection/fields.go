package collection

import (
	"strconv"

	"github.com/medvault/medvault/internal/domain/clinical"
	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/domain/scheduling"
)

// AppointmentFields searches names, reason and id.
var AppointmentFields = Fields[scheduling.Appointment]{
	Text: func(a scheduling.Appointment) []string {
		return []string{a.PatientName, a.DoctorName, a.BookingReason(), strconv.FormatInt(a.AppointmentID, 10)}
	},
	Date:   func(a scheduling.Appointment) string { return a.Day() },
	Status: func(a scheduling.Appointment) string { return string(a.Status) },
}

var SlotFields = Fields[scheduling.Slot]{
	Text:   func(s scheduling.Slot) []string { return []string{s.At(), s.SlotDate} },
	Date:   func(s scheduling.Slot) string { return s.SlotDate },
	Status: func(s scheduling.Slot) string { return string(s.Status) },
}

var DoctorFields = Fields[scheduling.DoctorSummary]{
	Text: func(d scheduling.DoctorSummary) []string {
		return []string{d.Name, d.Specialization, d.Hospital}
	},
}

// UserFields backs the admin tables.
var UserFields = Fields[identity.User]{
	Text: func(u identity.User) []string {
		return []string{u.Name, u.Email, u.Phone, u.Specialization, u.Hospital}
	},
	Status: func(u identity.User) string { return string(u.ProfileStatus) },
}

var LogFields = Fields[identity.AuditLog]{
	Text: func(l identity.AuditLog) []string { return []string{l.Username, l.Email, l.Action} },
	Date: func(l identity.AuditLog) string { return l.Timestamp.Format(scheduling.DateLayout) },
}

var RecordFields = Fields[clinical.MedicalRecord]{
	Text: func(r clinical.MedicalRecord) []string { return []string{r.Name, r.FileName} },
	Date: func(r clinical.MedicalRecord) string { return r.UploadedAt.Format(scheduling.DateLayout) },
}

var HistoryFields = Fields[clinical.History]{
	Text:   func(h clinical.History) []string { return []string{h.Problem, h.Notes} },
	Date:   func(h clinical.History) string { return h.Date },
	Status: func(h clinical.History) string { return h.Intensity },
}

var EmergencyFields = Fields[clinical.Emergency]{
	Text:   func(e clinical.Emergency) []string { return []string{e.PatientName, e.Problem, e.Location, e.DoctorName} },
	Status: func(e clinical.Emergency) string { return string(e.Status) },
}
