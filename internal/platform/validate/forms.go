package validate

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterForm is used for self-registration and for admin-created users.
type RegisterForm struct {
	Name                  string  `json:"name" validate:"notblank"`
	Email                 string  `json:"email" validate:"required,email"`
	Password              string  `json:"password" validate:"required,min=6"`
	Phone                 string  `json:"phone,omitempty"`
	Gender                string  `json:"gender,omitempty"`
	DOB                   string  `json:"dob,omitempty" validate:"omitempty,day"`
	Address               string  `json:"address,omitempty"`
	EmergencyContactPhone string  `json:"emergencyContactPhone,omitempty"`
	Specialization        string  `json:"specialization,omitempty"`
	Hospital              string  `json:"hospital,omitempty"`
	Experience            int     `json:"experience,omitempty" validate:"min=0"`
	ConsultationFees      float64 `json:"consultationFees,omitempty" validate:"min=0"`
	Role                  string  `json:"role" validate:"oneof=PATIENT DOCTOR"`
}

type ForgotPasswordForm struct {
	Email string `json:"email" validate:"required,email"`
}

type OTPForm struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type ResetPasswordForm struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type SetPasswordForm struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// CancelForm backs a patient cancellation; the reason travels as a query parameter.
type CancelForm struct {
	Reason string `json:"reason" validate:"notblank"`
}

// StatusChangeForm is the doctor's PUT body for appointment status changes.
// A cancellation must carry a reason.
type StatusChangeForm struct {
	Status       string `json:"status" validate:"oneof=CONFIRMED COMPLETED CANCELLED"`
	CancelReason string `json:"cancelReason,omitempty"`
}

func statusChangeRules(sl validator.StructLevel) {
	f := sl.Current().Interface().(StatusChangeForm)
	if f.Status == "CANCELLED" && isBlank(f.CancelReason) {
		sl.ReportError(f.CancelReason, "cancelReason", "CancelReason", "notblank", "")
	}
}

type RescheduleForm struct {
	NewSlotID int64  `json:"newSlotId" validate:"gt=0"`
	Reason    string `json:"reason" validate:"notblank"`
}

type FeedbackForm struct {
	Feedback string `json:"feedback" validate:"notblank"`
	Rating   int    `json:"rating" validate:"min=1,max=5"`
}

type BookingForm struct {
	SlotID int64  `json:"slotId" validate:"gt=0"`
	Reason string `json:"reason" validate:"max=500"`
}

type CreateSlotsForm struct {
	SlotDate            string `json:"slotDate" validate:"required,day"`
	StartTime           string `json:"startTime" validate:"required,clock"`
	EndTime             string `json:"endTime" validate:"required,clock"`
	SlotIntervalMinutes int    `json:"slotIntervalMinutes" validate:"min=5,max=240"`
}

func createSlotsRules(sl validator.StructLevel) {
	f := sl.Current().Interface().(CreateSlotsForm)
	start, err1 := time.Parse("15:04", f.StartTime)
	end, err2 := time.Parse("15:04", f.EndTime)
	if err1 != nil || err2 != nil {
		return
	}
	if !end.After(start) {
		sl.ReportError(f.EndTime, "endTime", "EndTime", "gtfield", "startTime")
	}
}

type SlotStatusForm struct {
	Status string `json:"status" validate:"oneof=ACTIVE INACTIVE"`
}

type EmergencyForm struct {
	Problem   string `json:"problem" validate:"notblank"`
	Intensity string `json:"intensity" validate:"oneof=LOW MEDIUM HIGH CRITICAL"`
	Message   string `json:"message" validate:"notblank"`
	Location  string `json:"location" validate:"notblank"`
}

type HistoryForm struct {
	Problem   string `json:"problem" validate:"notblank"`
	Date      string `json:"date" validate:"required,day"`
	Intensity string `json:"intensity" validate:"oneof=LOW MEDIUM HIGH CRITICAL"`
	Notes     string `json:"notes,omitempty"`
}

// ProfileForm carries the text fields of a multipart profile update or a
// JSON admin edit. Doctor profiles additionally fill the professional fields.
type ProfileForm struct {
	Name                  string  `json:"name" form:"name" validate:"notblank"`
	DOB                   string  `json:"dob,omitempty" form:"dob" validate:"omitempty,day"`
	Gender                string  `json:"gender,omitempty" form:"gender"`
	Phone                 string  `json:"phone,omitempty" form:"phone"`
	Address               string  `json:"address,omitempty" form:"address"`
	EmergencyContactPhone string  `json:"emergencyContactPhone,omitempty" form:"emergencyContactPhone"`
	Specialization        string  `json:"specialization,omitempty" form:"specialization"`
	ConsultationFees      float64 `json:"consultationFees,omitempty" form:"consultationFees" validate:"min=0"`
	Hospital              string  `json:"hospital,omitempty" form:"hospital"`
	Experience            int     `json:"experience,omitempty" form:"experience" validate:"min=0"`
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
