package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/validate"
)

// Login exchanges credentials for a session. The returned session is not
// attached to c; use WithSession.
func (c *Client) Login(ctx context.Context, form validate.LoginForm) (*auth.Session, error) {
	if err := check(form); err != nil {
		return nil, err
	}
	var resp identity.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, form, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	s, err := auth.NewSession(resp.Token, resp.Role)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return s, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	form := validate.ForgotPasswordForm{Email: email}
	if err := check(form); err != nil {
		return "", err
	}
	var msg string
	err := c.do(ctx, http.MethodPost, "/auth/forgot-password", nil, form, &msg)
	return msg, err
}

func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	form := validate.OTPForm{Email: email, OTP: otp}
	if err := check(form); err != nil {
		return "", err
	}
	var msg string
	err := c.do(ctx, http.MethodPost, "/auth/verify-otp", nil, form, &msg)
	return msg, err
}

func (c *Client) ResetPassword(ctx context.Context, form validate.ResetPasswordForm) (string, error) {
	if err := check(form); err != nil {
		return "", err
	}
	var msg string
	err := c.do(ctx, http.MethodPost, "/auth/reset-password", nil, form, &msg)
	return msg, err
}

// Register files a self-registration for the role. The account stays
// pending until an admin approves it.
func (c *Client) Register(ctx context.Context, role auth.Role, form validate.RegisterForm) (string, error) {
	if role == auth.RoleAdmin {
		return "", invalid("admins cannot self-register")
	}
	form.Role = role.Wire()
	if err := check(form); err != nil {
		return "", err
	}
	var msg string
	err := c.do(ctx, http.MethodPost, "/register/"+string(role), nil, form, &msg)
	return msg, err
}

// Dashboard reports first-login state for the role's dashboard.
func (c *Client) Dashboard(ctx context.Context, role auth.Role) (identity.DashboardInfo, error) {
	var info identity.DashboardInfo
	err := c.do(ctx, http.MethodGet, "/"+string(role)+"/dashboard", nil, nil, &info)
	return info, err
}

func (c *Client) SetPassword(ctx context.Context, role auth.Role, newPassword string) (string, error) {
	form := validate.SetPasswordForm{NewPassword: newPassword}
	if err := check(form); err != nil {
		return "", err
	}
	var msg string
	err := c.do(ctx, http.MethodPost, "/"+string(role)+"/set-password", nil, form, &msg)
	return msg, err
}

// Profile returns the caller's own account.
func (c *Client) Profile(ctx context.Context) (identity.User, error) {
	var u identity.User
	role, err := c.role()
	if err != nil {
		return u, err
	}
	err = c.do(ctx, http.MethodGet, "/"+string(role)+"/profile", nil, nil, &u)
	return u, err
}

// ProfileFiles are the optional documents of a profile update.
type ProfileFiles struct {
	GovernmentID      *FilePart
	DoctorCertificate *FilePart
}

// UpdateProfile sends a multipart profile edit for the caller.
func (c *Client) UpdateProfile(ctx context.Context, form validate.ProfileForm, files ProfileFiles) (identity.User, error) {
	var u identity.User
	role, err := c.role()
	if err != nil {
		return u, err
	}
	if err := check(form); err != nil {
		return u, err
	}
	fields := map[string]string{"name": form.Name}
	setIf := func(k, v string) {
		if v != "" {
			fields[k] = v
		}
	}
	setIf("dob", form.DOB)
	setIf("gender", form.Gender)
	setIf("phone", form.Phone)
	setIf("address", form.Address)
	setIf("emergencyContactPhone", form.EmergencyContactPhone)
	setIf("specialization", form.Specialization)
	setIf("hospital", form.Hospital)
	if form.Experience > 0 {
		fields["experience"] = strconv.Itoa(form.Experience)
	}
	if form.ConsultationFees > 0 {
		fields["consultationFees"] = strconv.FormatFloat(form.ConsultationFees, 'f', -1, 64)
	}

	var parts []FilePart
	if f := files.GovernmentID; f != nil {
		f.Field = "governmentId"
		parts = append(parts, *f)
	}
	if f := files.DoctorCertificate; f != nil {
		f.Field = "doctorCertificate"
		parts = append(parts, *f)
	}
	err = c.doMultipart(ctx, http.MethodPut, "/"+string(role)+"/update-profile", fields, parts, &u)
	return u, err
}

// PatientProfile and DoctorProfile are role-named aliases of Profile.
func (c *Client) PatientProfile(ctx context.Context) (identity.User, error) { return c.Profile(ctx) }
func (c *Client) DoctorProfile(ctx context.Context) (identity.User, error)  { return c.Profile(ctx) }

func (c *Client) UpdatePatientProfile(ctx context.Context, form validate.ProfileForm, files ProfileFiles) (identity.User, error) {
	return c.UpdateProfile(ctx, form, files)
}

func (c *Client) UpdateDoctorProfile(ctx context.Context, form validate.ProfileForm, files ProfileFiles) (identity.User, error) {
	return c.UpdateProfile(ctx, form, files)
}
