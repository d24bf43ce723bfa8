package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/collection"
	"github.com/medvault/medvault/internal/dashboard"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/lifecycle"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/pagination"
)

// appointmentFetcher returns the role's appointment list. Doctors pass the
// date and status filters to the backend as well; the store applies them
// again locally, which is a no-op on an already narrowed list.
func appointmentFetcher(role auth.Role, c *client.Client, q collection.Query) collection.Fetcher[scheduling.Appointment] {
	switch role {
	case auth.RoleDoctor:
		return func(ctx context.Context) ([]scheduling.Appointment, error) {
			return c.DoctorAppointments(ctx, q.Date, scheduling.Status(q.Status))
		}
	case auth.RoleAdmin:
		return c.AdminAppointments
	}
	return c.PatientAppointments
}

func appointmentsListCmd(a *app, role auth.Role) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, role, dashboard.TabAppointments)
			if err != nil {
				return err
			}
			defer done()
			size := pagination.CardSize
			if role == auth.RoleAdmin {
				size = pagination.AdminTableSize
			}
			q := lf.query()
			return listView(ctx, a.out, appointmentFetcher(role, c, q), collection.AppointmentFields,
				size, q, appointmentHeader, appointmentRow(role))
		},
	}
	lf.bind(cmd, true, true)
	return cmd
}

// dispatch opens the appointments tab, applies action to appointment
// appointmentID and prints the status the reloaded list reports.
// prepare builds the action input once the appointment is known.
func dispatch(cmd *cobra.Command, a *app, role auth.Role, appointmentID int64, action lifecycle.Action,
	prepare func(context.Context, *client.Client, scheduling.Appointment) (lifecycle.Request, error)) error {
	c, ctx, done, err := a.tab(cmd, role, dashboard.TabAppointments)
	if err != nil {
		return err
	}
	defer done()
	store := collection.New(appointmentFetcher(role, c, collection.Query{}), collection.AppointmentFields, pagination.CardSize)
	if err := store.Load(ctx); err != nil {
		return err
	}
	byID := func(x scheduling.Appointment) bool { return x.AppointmentID == appointmentID }
	appt, ok := store.Find(byID)
	if !ok {
		return fmt.Errorf("appointment %d not found", appointmentID)
	}

	req, err := prepare(ctx, c, appt)
	if err != nil {
		return err
	}
	ctrl := lifecycle.NewController(role, c, store, a.logger)
	if err := ctrl.Dispatch(ctx, appt, action, req); err != nil {
		return err
	}

	if updated, ok := store.Find(byID); ok {
		a.printf("Appointment %d: %s\n", appointmentID, updated.Status)
	} else {
		a.printf("Appointment %d: %s sent\n", appointmentID, action)
	}
	return nil
}

func withReason(reason string) func(context.Context, *client.Client, scheduling.Appointment) (lifecycle.Request, error) {
	return func(context.Context, *client.Client, scheduling.Appointment) (lifecycle.Request, error) {
		return lifecycle.Request{Reason: reason}, nil
	}
}

func actionCmd(a *app, role auth.Role, action lifecycle.Action, short string, needsReason bool) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   string(action) + " APPOINTMENT_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apptID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return dispatch(cmd, a, role, apptID, action, withReason(reason))
		},
	}
	if needsReason {
		cmd.Flags().StringVar(&reason, "reason", "", "Reason, required")
	}
	return cmd
}
