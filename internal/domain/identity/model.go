package identity

import (
	"time"

	"github.com/medvault/medvault/internal/platform/auth"
)

type ProfileStatus string

const (
	ProfileApproved   ProfileStatus = "APPROVED"
	ProfileIncomplete ProfileStatus = "INCOMPLETE"
	ProfilePending    ProfileStatus = "PENDING"
	ProfileRejected   ProfileStatus = "REJECTED"
)

// User is a patient, doctor or admin account. Doctor-only fields stay empty
// for other roles.
type User struct {
	ID                    int64         `json:"id"`
	Name                  string        `json:"name"`
	Email                 string        `json:"email"`
	PasswordHash          []byte        `json:"-"`
	Role                  string        `json:"role"`
	Phone                 string        `json:"phone,omitempty"`
	Gender                string        `json:"gender,omitempty"`
	DOB                   string        `json:"dob,omitempty"`
	Address               string        `json:"address,omitempty"`
	EmergencyContactPhone string        `json:"emergencyContactPhone,omitempty"`
	Specialization        string        `json:"specialization,omitempty"`
	Hospital              string        `json:"hospital,omitempty"`
	Experience            int           `json:"experience,omitempty"`
	ConsultationFees      float64       `json:"consultationFees,omitempty"`
	Approved              bool          `json:"approved"`
	FirstLogin            bool          `json:"-"`
	ProfileStatus         ProfileStatus `json:"profileStatus,omitempty"`
	AdminMessage          string        `json:"adminMessage,omitempty"`
	GovernmentID          string        `json:"-"`
	DoctorCertificate     string        `json:"-"`
	CreatedAt             time.Time     `json:"createdAt"`
}

// RoleOf returns the normalized role, or "" for malformed records.
func (u *User) RoleOf() auth.Role {
	r, _ := auth.ParseRole(u.Role)
	return r
}

type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// DashboardInfo tells the client whether the password must be set first.
type DashboardInfo struct {
	FirstLogin bool   `json:"firstLogin"`
	Message    string `json:"message"`
	Name       string `json:"name,omitempty"`
}

type ProfileCompletion struct {
	Status       ProfileStatus `json:"status"`
	AdminMessage string        `json:"adminMessage,omitempty"`
}

type AuditLog struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Audit actions.
const (
	ActionLogin               = "LOGIN"
	ActionRegister            = "REGISTER"
	ActionApproveRegistration = "APPROVE_REGISTRATION"
	ActionRejectRegistration  = "REJECT_REGISTRATION"
	ActionApproveDoctor       = "APPROVE_DOCTOR"
	ActionRejectDoctor        = "REJECT_DOCTOR"
	ActionDeleteUser          = "DELETE_USER"
	ActionAddUser             = "ADD_USER"
	ActionUpdateUser          = "UPDATE_USER"
	ActionPasswordReset       = "PASSWORD_RESET"
	ActionPasswordSet         = "PASSWORD_SET"
)

// Certificate types served by the admin certificate viewer.
const (
	CertificateDoctor       = "certificate"
	CertificateGovernmentID = "governmentId"
)
