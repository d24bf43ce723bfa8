package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/collection"
	"github.com/medvault/medvault/internal/dashboard"
	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/pagination"
)

func adminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administration",
	}
	cmd.AddCommand(
		adminOverviewCmd(a),
		adminUsersCmd(a, "patients", "List patients", dashboard.TabPatients, (*client.Client).AdminPatients),
		adminUsersCmd(a, "doctors", "List doctors", dashboard.TabDoctors, (*client.Client).AdminDoctors),
		adminUsersCmd(a, "pending", "List registrations awaiting approval", dashboard.TabPending, (*client.Client).PendingRegistrations),
		adminUsersCmd(a, "pending-doctors", "List doctor profiles awaiting review", dashboard.TabPending, (*client.Client).PendingDoctors),
		appointmentsListCmd(a, auth.RoleAdmin),
		adminLogsCmd(a),
		adminApproveCmd(a),
		adminRejectCmd(a),
		adminDeleteCmd(a),
	)
	return cmd
}

func adminOverviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Counts across the system",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.signedIn(auth.RoleAdmin)
			if err != nil {
				return err
			}
			shell, err := dashboard.New(c.Session(), c, a.tokens, a.logger)
			if err != nil {
				return err
			}
			defer shell.Close()
			ctx, err := shell.Open(ctxOf(cmd), dashboard.TabOverview)
			if err != nil {
				return err
			}
			o, err := shell.AdminOverview(ctx)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Patients", fmt.Sprint(len(o.Patients))},
				{"Doctors", fmt.Sprint(len(o.Doctors))},
				{"Pending registrations", fmt.Sprint(len(o.PendingRegistrations))},
				{"Pending doctor profiles", fmt.Sprint(len(o.PendingDoctors))},
				{"Appointments", fmt.Sprint(len(o.Appointments))},
			}
			counts := o.StatusCounts()
			for _, s := range scheduling.Statuses {
				rows = append(rows, []string{"  " + string(s), fmt.Sprint(counts[s])})
			}
			return table(a.out, []string{"", "COUNT"}, rows)
		},
	}
}

type userLister func(*client.Client, context.Context) ([]identity.User, error)

func adminUsersCmd(a *app, use, short string, tab dashboard.Tab, fetch userLister) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RoleAdmin, tab)
			if err != nil {
				return err
			}
			defer done()
			load := func(ctx context.Context) ([]identity.User, error) { return fetch(c, ctx) }
			return listView(ctx, a.out, load, collection.UserFields,
				pagination.AdminTableSize, lf.query(), userHeader, userRow)
		},
	}
	lf.bind(cmd, false, true)
	return cmd
}

func adminLogsCmd(a *app) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RoleAdmin, dashboard.TabLogs)
			if err != nil {
				return err
			}
			defer done()
			return listView(ctx, a.out, c.Logs, collection.LogFields,
				pagination.AdminTableSize, lf.query(), logHeader, logRow)
		},
	}
	lf.bind(cmd, true, false)
	return cmd
}

func adminApproveCmd(a *app) *cobra.Command {
	var (
		doctor  bool
		message string
	)
	cmd := &cobra.Command{
		Use:   "approve USER_ID",
		Short: "Approve a registration, or a doctor profile with --doctor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RoleAdmin, dashboard.TabPending)
			if err != nil {
				return err
			}
			defer done()
			var msg string
			if doctor {
				msg, err = c.ApproveDoctor(ctx, userID, message)
			} else {
				msg, err = c.ApproveRegistration(ctx, userID)
			}
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&doctor, "doctor", false, "Approve a doctor profile instead of a registration")
	cmd.Flags().StringVar(&message, "message", "", "Note for the doctor")
	return cmd
}

func adminRejectCmd(a *app) *cobra.Command {
	var (
		doctor  bool
		message string
	)
	cmd := &cobra.Command{
		Use:   "reject USER_ID",
		Short: "Reject a registration, or a doctor profile with --doctor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RoleAdmin, dashboard.TabPending)
			if err != nil {
				return err
			}
			defer done()
			var msg string
			if doctor {
				msg, err = c.RejectDoctor(ctx, userID, message)
			} else {
				msg, err = c.RejectRegistration(ctx, userID, message)
			}
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&doctor, "doctor", false, "Reject a doctor profile instead of a registration")
	cmd.Flags().StringVar(&message, "message", "", "Reason, required for doctor profiles")
	return cmd
}

func adminDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ROLE USER_ID",
		Short: "Delete a patient or doctor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := auth.ParseRole(args[0])
			if err != nil {
				return err
			}
			userID, err := parseID(args[1])
			if err != nil {
				return err
			}
			tab := dashboard.TabPatients
			if role == auth.RoleDoctor {
				tab = dashboard.TabDoctors
			}
			c, ctx, done, err := a.tab(cmd, auth.RoleAdmin, tab)
			if err != nil {
				return err
			}
			defer done()
			msg, err := c.DeleteUser(ctx, role, userID)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
}
