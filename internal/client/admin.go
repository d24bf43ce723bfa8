package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/validate"
)

func (c *Client) listUsers(ctx context.Context, path string) ([]identity.User, error) {
	var out []identity.User
	err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out, err
}

func (c *Client) AdminPatients(ctx context.Context) ([]identity.User, error) {
	return c.listUsers(ctx, "/admin/patients")
}

func (c *Client) AdminDoctors(ctx context.Context) ([]identity.User, error) {
	return c.listUsers(ctx, "/admin/doctors")
}

func (c *Client) PendingRegistrations(ctx context.Context) ([]identity.User, error) {
	return c.listUsers(ctx, "/admin/pending")
}

// PendingDoctors lists doctor profiles awaiting review.
func (c *Client) PendingDoctors(ctx context.Context) ([]identity.User, error) {
	return c.listUsers(ctx, "/admin/doctors/pending")
}

func (c *Client) AdminAppointments(ctx context.Context) ([]scheduling.Appointment, error) {
	var out []scheduling.Appointment
	err := c.do(ctx, http.MethodGet, "/admin/appointments", nil, nil, &out)
	return out, err
}

func (c *Client) Logs(ctx context.Context) ([]identity.AuditLog, error) {
	var out []identity.AuditLog
	err := c.do(ctx, http.MethodGet, "/admin/logs", nil, nil, &out)
	return out, err
}

func (c *Client) ApproveRegistration(ctx context.Context, id int64) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/admin/register/approve/%d", id), nil, nil, &msg)
	return msg, err
}

// RejectRegistration deletes a pending registration. msg is passed along
// for the backend's records.
func (c *Client) RejectRegistration(ctx context.Context, id int64, msg string) (string, error) {
	q := url.Values{}
	if msg != "" {
		q.Set("message", msg)
	}
	var reply string
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/register/reject/%d", id), q, nil, &reply)
	return reply, err
}

func (c *Client) ApproveDoctor(ctx context.Context, id int64, msg string) (string, error) {
	q := url.Values{}
	if msg != "" {
		q.Set("message", msg)
	}
	var reply string
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/admin/doctors/approve/%d", id), q, nil, &reply)
	return reply, err
}

// RejectDoctor requires a message the doctor will see on their profile.
func (c *Client) RejectDoctor(ctx context.Context, id int64, msg string) (string, error) {
	if strings.TrimSpace(msg) == "" {
		return "", invalid("a rejection message is required")
	}
	var reply string
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/admin/doctors/reject/%d", id), url.Values{"message": {msg}}, nil, &reply)
	return reply, err
}

func (c *Client) DeleteUser(ctx context.Context, role auth.Role, id int64) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/delete/%s/%d", role, id), nil, nil, &msg)
	return msg, err
}

func (c *Client) AddUser(ctx context.Context, role auth.Role, form validate.RegisterForm) (identity.User, error) {
	var out identity.User
	if role == auth.RoleAdmin {
		return out, invalid("admins cannot be added")
	}
	form.Role = role.Wire()
	if err := check(form); err != nil {
		return out, err
	}
	err := c.do(ctx, http.MethodPost, "/admin/add/"+string(role), nil, form, &out)
	return out, err
}

func (c *Client) UpdateUser(ctx context.Context, role auth.Role, id int64, form validate.ProfileForm) (identity.User, error) {
	var out identity.User
	if err := check(form); err != nil {
		return out, err
	}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/admin/update/%s/%d", role, id), nil, form, &out)
	return out, err
}

// DoctorCertificate downloads a doctor's certificate or government ID.
func (c *Client) DoctorCertificate(ctx context.Context, doctorID int64, kind string) (*Blob, error) {
	if kind != identity.CertificateDoctor && kind != identity.CertificateGovernmentID {
		return nil, invalid("certificate type must be %q or %q", identity.CertificateDoctor, identity.CertificateGovernmentID)
	}
	return c.doBlob(ctx, fmt.Sprintf("/admin/doctors/certificate/view/%d/%s", doctorID, kind))
}
