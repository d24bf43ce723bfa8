package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/collection"
	"github.com/medvault/medvault/internal/dashboard"
	"github.com/medvault/medvault/internal/domain/clinical"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/lifecycle"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/validate"
	"github.com/medvault/medvault/internal/slotpicker"
	"github.com/medvault/medvault/pkg/pagination"
)

func doctorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Doctor dashboard",
	}
	cmd.AddCommand(
		appointmentsListCmd(a, auth.RoleDoctor),
		actionCmd(a, auth.RoleDoctor, lifecycle.ActionConfirm, "Confirm a pending appointment", false),
		actionCmd(a, auth.RoleDoctor, lifecycle.ActionComplete, "Mark a confirmed appointment completed", false),
		actionCmd(a, auth.RoleDoctor, lifecycle.ActionCancel, "Cancel an appointment", true),
		doctorSlotsCmd(a),
		doctorPatientsCmd(a),
		doctorFeedbackCmd(a),
		doctorEmergenciesCmd(a),
		doctorAcceptEmergencyCmd(a),
		doctorRecordsCmd(a),
		profileCmd(a, auth.RoleDoctor),
	)
	return cmd
}

func doctorSlotsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Manage availability slots",
	}

	var lf listFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List own slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabSlots)
			if err != nil {
				return err
			}
			defer done()
			q := lf.query()
			fetch := func(ctx context.Context) ([]scheduling.Slot, error) { return c.DoctorSlots(ctx, q.Date) }
			return listView(ctx, a.out, fetch, collection.SlotFields, pagination.CardSize, q, slotHeader, slotRow)
		},
	}
	lf.bind(list, true, true)

	var (
		form     validate.CreateSlotsForm
		interval time.Duration
		dryRun   bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create slots between two times",
		RunE: func(cmd *cobra.Command, args []string) error {
			form.SlotIntervalMinutes = int(interval / time.Minute)
			if err := validate.Struct(form); err != nil {
				return err
			}
			if dryRun {
				slots, err := slotpicker.Generate(form.SlotDate, form.StartTime, form.EndTime, interval)
				if err != nil {
					return err
				}
				return renderPage(a.out, pagination.Paginate(slots, 1, len(slots)), []string{"DATE", "TIME"},
					func(s scheduling.Slot) []string { return []string{s.SlotDate, s.SlotTime} })
			}
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabSlots)
			if err != nil {
				return err
			}
			defer done()
			msg, err := c.CreateSlots(ctx, form)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	create.Flags().StringVar(&form.SlotDate, "date", "", "Date, YYYY-MM-DD")
	create.Flags().StringVar(&form.StartTime, "start", "09:00", "First slot start, HH:MM")
	create.Flags().StringVar(&form.EndTime, "end", "", "End of the range, HH:MM")
	create.Flags().DurationVar(&interval, "interval", 30*time.Minute, "Slot length")
	create.Flags().BoolVar(&dryRun, "dry-run", false, "Preview the slots without creating them")

	toggle := func(use string, status scheduling.SlotStatus) *cobra.Command {
		return &cobra.Command{
			Use:   use + " SLOT_ID",
			Short: "Set a slot " + string(status),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				slotID, err := parseID(args[0])
				if err != nil {
					return err
				}
				c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabSlots)
				if err != nil {
					return err
				}
				defer done()
				s, err := c.SetSlotStatus(ctx, slotID, status)
				if err != nil {
					return err
				}
				a.printf("Slot %d is %s\n", s.ID, s.Status)
				return nil
			},
		}
	}

	del := &cobra.Command{
		Use:   "delete SLOT_ID",
		Short: "Delete an unbooked slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slotID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabSlots)
			if err != nil {
				return err
			}
			defer done()
			msg, err := c.DeleteSlot(ctx, slotID)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}

	cmd.AddCommand(list, create, toggle("activate", scheduling.SlotActive), toggle("deactivate", scheduling.SlotInactive), del)
	return cmd
}

func doctorPatientsCmd(a *app) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "List patients with confirmed appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabPatients)
			if err != nil {
				return err
			}
			defer done()
			fields := collection.Fields[client.PatientSummary]{
				Text: func(p client.PatientSummary) []string { return []string{p.Name} },
			}
			return listView(ctx, a.out, c.DoctorPatients, fields,
				pagination.DoctorPatientsSize, lf.query(), patientSummaryHeader, patientSummaryRow)
		},
	}
	lf.bind(cmd, false, false)
	return cmd
}

func doctorFeedbackCmd(a *app) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "List patient feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabFeedback)
			if err != nil {
				return err
			}
			defer done()
			fields := collection.Fields[scheduling.FeedbackEntry]{
				Text: func(f scheduling.FeedbackEntry) []string { return []string{f.PatientName, f.Feedback} },
			}
			return listView(ctx, a.out, c.DoctorFeedback, fields,
				pagination.CardSize, lf.query(), feedbackHeader, feedbackRow)
		},
	}
	lf.bind(cmd, false, false)
	return cmd
}

func doctorEmergenciesCmd(a *app) *cobra.Command {
	var (
		lf       listFlags
		accepted bool
	)
	cmd := &cobra.Command{
		Use:   "emergencies",
		Short: "List open emergencies, or the ones you accepted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabEmergencies)
			if err != nil {
				return err
			}
			defer done()
			fetch := c.DoctorEmergencies
			if accepted {
				fetch = c.AcceptedEmergencies
			}
			return listView(ctx, a.out, collection.Fetcher[clinical.Emergency](fetch), collection.EmergencyFields,
				pagination.CardSize, lf.query(), emergencyHeader, emergencyRow)
		},
	}
	lf.bind(cmd, false, false)
	cmd.Flags().BoolVar(&accepted, "accepted", false, "Show emergencies you accepted")
	return cmd
}

func doctorAcceptEmergencyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "accept-emergency EMERGENCY_ID",
		Short: "Take an open emergency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			emID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabEmergencies)
			if err != nil {
				return err
			}
			defer done()
			e, err := c.AcceptEmergency(ctx, emID)
			if err != nil {
				return err
			}
			a.printf("Emergency %d %s\n", e.ID, e.Status)
			return nil
		},
	}
}

func doctorRecordsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Request and read patients' records",
	}

	var days int
	request := &cobra.Command{
		Use:   "request PATIENT_ID",
		Short: "Ask a patient for access to their records and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabPatients)
			if err != nil {
				return err
			}
			defer done()
			reqs, err := c.RequestRecordAccess(ctx, patientID, days)
			if err != nil {
				return err
			}
			a.printf("Sent %d access request(s)\n", len(reqs))
			return nil
		},
	}
	request.Flags().IntVar(&days, "days", 0, "Access duration in days, 0 for the default")

	shared := &cobra.Command{
		Use:   "shared",
		Short: "List records patients shared with you",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabPatients)
			if err != nil {
				return err
			}
			defer done()
			recs, err := c.SharedRecords(ctx)
			if err != nil {
				return err
			}
			return renderPage(a.out, pagination.Paginate(recs, 1, len(recs)), sharedRecordHeader, sharedRecordRow)
		},
	}

	history := &cobra.Command{
		Use:   "history PATIENT_ID",
		Short: "Read a patient's medical history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabPatients)
			if err != nil {
				return err
			}
			defer done()
			hs, err := c.PatientHistoriesForDoctor(ctx, patientID)
			if err != nil {
				return err
			}
			return renderPage(a.out, pagination.Paginate(hs, 1, len(hs)), historyHeader, historyRow)
		},
	}

	var out string
	view := &cobra.Command{
		Use:   "view RECORD_ID",
		Short: "Download a shared record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RoleDoctor, dashboard.TabPatients)
			if err != nil {
				return err
			}
			defer done()
			blob, err := c.ViewRecordAsDoctor(ctx, recID)
			if err != nil {
				return err
			}
			return a.saveBlob(blob, out)
		},
	}
	view.Flags().StringVar(&out, "out", "", "Output path")

	cmd.AddCommand(request, shared, history, view)
	return cmd
}
