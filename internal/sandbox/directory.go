package sandbox

import (
	"context"

	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/apperr"
	"github.com/medvault/medvault/internal/platform/auth"
)

// identityDirectory adapts the identity service to the name lookups the
// scheduling and clinical services need.
type identityDirectory struct {
	svc *identity.Service
}

func newIdentityDirectory(svc *identity.Service) *identityDirectory {
	return &identityDirectory{svc: svc}
}

func (d *identityDirectory) user(ctx context.Context, id int64, role auth.Role) (*identity.User, error) {
	u, err := d.svc.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.RoleOf() != role {
		return nil, apperr.New(apperr.ErrNotFound, "%s %d not found", role, id)
	}
	return u, nil
}

func doctorRef(u *identity.User) scheduling.DoctorRef {
	return scheduling.DoctorRef{ID: u.ID, Name: u.Name, Specialization: u.Specialization, Hospital: u.Hospital}
}

// Doctor implements scheduling.Directory.
func (d *identityDirectory) Doctor(ctx context.Context, id int64) (scheduling.DoctorRef, error) {
	u, err := d.user(ctx, id, auth.RoleDoctor)
	if err != nil {
		return scheduling.DoctorRef{}, err
	}
	return doctorRef(u), nil
}

// Patient implements scheduling.Directory.
func (d *identityDirectory) Patient(ctx context.Context, id int64) (scheduling.PatientRef, error) {
	u, err := d.user(ctx, id, auth.RolePatient)
	if err != nil {
		return scheduling.PatientRef{}, err
	}
	return scheduling.PatientRef{ID: u.ID, Name: u.Name}, nil
}

// ApprovedDoctors implements scheduling.Directory.
func (d *identityDirectory) ApprovedDoctors(ctx context.Context) ([]scheduling.DoctorRef, error) {
	docs, err := d.svc.ActiveDoctors(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]scheduling.DoctorRef, 0, len(docs))
	for _, u := range docs {
		out = append(out, doctorRef(u))
	}
	return out, nil
}

// DoctorName implements clinical.Directory.
func (d *identityDirectory) DoctorName(ctx context.Context, id int64) (string, error) {
	u, err := d.user(ctx, id, auth.RoleDoctor)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

// PatientName implements clinical.Directory.
func (d *identityDirectory) PatientName(ctx context.Context, id int64) (string, error) {
	u, err := d.user(ctx, id, auth.RolePatient)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}
