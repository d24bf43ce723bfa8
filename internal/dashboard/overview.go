package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
)

// OverviewAPI lists what the admin overview shows.
type OverviewAPI interface {
	AdminPatients(ctx context.Context) ([]identity.User, error)
	AdminDoctors(ctx context.Context) ([]identity.User, error)
	PendingRegistrations(ctx context.Context) ([]identity.User, error)
	PendingDoctors(ctx context.Context) ([]identity.User, error)
	AdminAppointments(ctx context.Context) ([]scheduling.Appointment, error)
}

type Overview struct {
	Patients             []identity.User
	Doctors              []identity.User
	PendingRegistrations []identity.User
	PendingDoctors       []identity.User
	Appointments         []scheduling.Appointment
}

// StatusCounts tallies appointments per status, zero counts included.
func (o Overview) StatusCounts() map[scheduling.Status]int {
	counts := make(map[scheduling.Status]int, len(scheduling.Statuses))
	for _, s := range scheduling.Statuses {
		counts[s] = 0
	}
	for _, a := range o.Appointments {
		counts[a.Status]++
	}
	return counts
}

// AdminOverview fetches the five overview lists concurrently. Each fetch
// fills its own field; the first failure cancels the others.
func (s *Shell) AdminOverview(ctx context.Context) (Overview, error) {
	if s.Role() != auth.RoleAdmin {
		return Overview{}, fmt.Errorf("overview is only available to admins")
	}

	var o Overview
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		o.Patients, err = s.api.AdminPatients(ctx)
		return wrap("patients", err)
	})
	g.Go(func() (err error) {
		o.Doctors, err = s.api.AdminDoctors(ctx)
		return wrap("doctors", err)
	})
	g.Go(func() (err error) {
		o.PendingRegistrations, err = s.api.PendingRegistrations(ctx)
		return wrap("pending registrations", err)
	})
	g.Go(func() (err error) {
		o.PendingDoctors, err = s.api.PendingDoctors(ctx)
		return wrap("pending doctors", err)
	})
	g.Go(func() (err error) {
		o.Appointments, err = s.api.AdminAppointments(ctx)
		return wrap("appointments", err)
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return o, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", what, err)
}
