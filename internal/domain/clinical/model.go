// Package clinical holds patient-owned data: medical records, medical
// history, the access grants doctors request for them, and emergencies.
package clinical

import "time"

type AccessStatus string

const (
	AccessPending  AccessStatus = "PENDING"
	AccessApproved AccessStatus = "APPROVED"
	AccessRejected AccessStatus = "REJECTED"
)

// DefaultAccessDays applies when a doctor does not ask for a duration.
const (
	DefaultAccessDays = 7
	MaxAccessDays     = 90
)

type MedicalRecord struct {
	RecordID    int64     `json:"recordId"`
	PatientID   int64     `json:"patientId"`
	Name        string    `json:"name"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	BlobID      string    `json:"-"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// RecordAccess is a doctor's request to view one medical record.
type RecordAccess struct {
	ID          int64        `json:"id"`
	RecordID    int64        `json:"recordId"`
	RecordName  string       `json:"recordName"`
	PatientID   int64        `json:"patientId"`
	DoctorID    int64        `json:"doctorId"`
	DoctorName  string       `json:"doctorName"`
	Status      AccessStatus `json:"status"`
	AccessDays  int          `json:"accessDays"`
	RequestedAt time.Time    `json:"requestedAt"`
	ExpiresAt   *time.Time   `json:"expiresAt,omitempty"`
}

// Active reports whether the grant lets the doctor open the record at now.
func (a *RecordAccess) Active(now time.Time) bool {
	return a.Status == AccessApproved && a.ExpiresAt != nil && now.Before(*a.ExpiresAt)
}

// SharedRecord is a record as a doctor with an active grant sees it.
type SharedRecord struct {
	RecordID    int64     `json:"recordId"`
	Name        string    `json:"name"`
	PatientID   int64     `json:"patientId"`
	PatientName string    `json:"patientName"`
	FileName    string    `json:"fileName"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type History struct {
	ID        int64     `json:"id"`
	PatientID int64     `json:"patientId"`
	Problem   string    `json:"problem"`
	Date      string    `json:"date"`
	Intensity string    `json:"intensity"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryAccess is a doctor's request to read a patient's whole history.
type HistoryAccess struct {
	ID          int64        `json:"id"`
	PatientID   int64        `json:"patientId"`
	DoctorID    int64        `json:"doctorId"`
	DoctorName  string       `json:"doctorName"`
	Status      AccessStatus `json:"status"`
	RequestedAt time.Time    `json:"requestedAt"`
}

type EmergencyStatus string

const (
	EmergencyOpen     EmergencyStatus = "OPEN"
	EmergencyAccepted EmergencyStatus = "ACCEPTED"
)

type Emergency struct {
	ID          int64           `json:"id"`
	PatientID   int64           `json:"patientId"`
	PatientName string          `json:"patientName"`
	Problem     string          `json:"problem"`
	Intensity   string          `json:"intensity"`
	Message     string          `json:"message"`
	Location    string          `json:"location"`
	Status      EmergencyStatus `json:"status"`
	DoctorID    int64           `json:"doctorId,omitempty"`
	DoctorName  string          `json:"doctorName,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	AcceptedAt  *time.Time      `json:"acceptedAt,omitempty"`
}
