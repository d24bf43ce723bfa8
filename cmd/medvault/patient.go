package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/collection"
	"github.com/medvault/medvault/internal/dashboard"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/lifecycle"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/validate"
	"github.com/medvault/medvault/internal/slotpicker"
	"github.com/medvault/medvault/pkg/pagination"
)

func patientCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Patient dashboard",
	}
	cmd.AddCommand(
		patientDoctorsCmd(a),
		patientSlotsCmd(a),
		patientBookCmd(a),
		appointmentsListCmd(a, auth.RolePatient),
		actionCmd(a, auth.RolePatient, lifecycle.ActionCancel, "Cancel an appointment", true),
		patientRescheduleCmd(a),
		patientFeedbackCmd(a),
		patientRecordsCmd(a),
		patientAccessCmd(a),
		patientHistoryCmd(a),
		patientEmergencyCmd(a),
		profileCmd(a, auth.RolePatient),
	)
	return cmd
}

func patientDoctorsCmd(a *app) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "Search approved doctors",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabBook)
			if err != nil {
				return err
			}
			defer done()
			return listView(ctx, a.out, c.SearchDoctors, collection.DoctorFields,
				pagination.DoctorSearchSize, lf.query(), doctorHeader, doctorRow)
		},
	}
	lf.bind(cmd, false, false)
	return cmd
}

func (a *app) picker(c *client.Client) *slotpicker.Picker {
	return slotpicker.New(c, slotpicker.WithClock(a.now), slotpicker.WithLogger(a.logger))
}

func patientSlotsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "slots DOCTOR_ID",
		Short: "List a doctor's open slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabBook)
			if err != nil {
				return err
			}
			defer done()
			p := a.picker(c)
			if err := p.SetDoctor(ctx, doctorID); err != nil {
				return err
			}
			slots := p.Slots()
			return renderPage(a.out, pagination.Paginate(slots, 1, len(slots)), slotHeader, slotRow)
		},
	}
}

func patientBookCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "book DOCTOR_ID SLOT_ID",
		Short: "Book an open slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := parseID(args[0])
			if err != nil {
				return err
			}
			slotID, err := parseID(args[1])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabBook)
			if err != nil {
				return err
			}
			defer done()
			p := a.picker(c)
			if err := p.SetDoctor(ctx, doctorID); err != nil {
				return err
			}
			if err := p.Select(slotID); err != nil {
				return err
			}
			p.SetReason(reason)
			appt, err := p.Book(ctx)
			if err != nil {
				return err
			}
			a.printf("Booked appointment %d on %s at %s (%s)\n", appt.AppointmentID, appt.Day(), appt.At(), appt.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason for the visit")
	return cmd
}

func patientRescheduleCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reschedule APPOINTMENT_ID SLOT_ID",
		Short: "Move an appointment to another slot of the same doctor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apptID, err := parseID(args[0])
			if err != nil {
				return err
			}
			slotID, err := parseID(args[1])
			if err != nil {
				return err
			}
			var p *slotpicker.Picker
			err = dispatch(cmd, a, auth.RolePatient, apptID, lifecycle.ActionReschedule,
				func(ctx context.Context, c *client.Client, appt scheduling.Appointment) (lifecycle.Request, error) {
					p = a.picker(c)
					if err := p.SetDoctor(ctx, appt.DoctorID); err != nil {
						return lifecycle.Request{}, err
					}
					if err := p.Select(slotID); err != nil {
						return lifecycle.Request{}, err
					}
					slot, _ := p.Selected()
					return lifecycle.Request{Reason: reason, NewSlot: &slot}, nil
				})
			if err != nil {
				a.showOpenSlots(ctxOf(cmd), p, err)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason, required")
	return cmd
}

// showOpenSlots reloads the picker after the backend refused a slot and
// lists what the doctor still has open. Local validation errors print
// nothing.
func (a *app) showOpenSlots(ctx context.Context, p *slotpicker.Picker, err error) {
	var apiErr *client.Error
	if p == nil || !errors.As(err, &apiErr) || apiErr.Kind != client.KindStatus {
		return
	}
	if rerr := p.Refresh(ctx); rerr != nil {
		a.logger.Warn().Err(rerr).Int64("doctor_id", p.DoctorID()).Msg("reload slots after rejected reschedule")
		return
	}
	slots := p.Slots()
	if len(slots) == 0 {
		a.printf("Doctor %d has no open slots left\n", p.DoctorID())
		return
	}
	a.printf("Open slots of doctor %d:\n", p.DoctorID())
	if rerr := renderPage(a.out, pagination.Paginate(slots, 1, len(slots)), slotHeader, slotRow); rerr != nil {
		a.logger.Warn().Err(rerr).Msg("print open slots")
	}
}

func patientFeedbackCmd(a *app) *cobra.Command {
	var (
		text   string
		rating int
	)
	cmd := &cobra.Command{
		Use:   "feedback APPOINTMENT_ID",
		Short: "Rate a completed appointment, once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apptID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return dispatch(cmd, a, auth.RolePatient, apptID, lifecycle.ActionFeedback,
				func(context.Context, *client.Client, scheduling.Appointment) (lifecycle.Request, error) {
					return lifecycle.Request{Reason: text, Rating: rating}, nil
				})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Feedback text")
	cmd.Flags().IntVar(&rating, "rating", 0, "Rating from 1 to 5")
	return cmd
}

func patientRecordsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage medical records",
	}

	var lf listFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List uploaded records",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabRecords)
			if err != nil {
				return err
			}
			defer done()
			return listView(ctx, a.out, c.Records, collection.RecordFields,
				pagination.CardSize, lf.query(), recordHeader, recordRow)
		},
	}
	lf.bind(list, true, false)

	var name string
	upload := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabRecords)
			if err != nil {
				return err
			}
			defer done()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			base := filepath.Base(args[0])
			if name == "" {
				name = base
			}
			ct := mime.TypeByExtension(filepath.Ext(base))
			if ct == "" {
				ct = "application/octet-stream"
			}
			rec, err := c.UploadRecord(ctx, name, base, ct, f)
			if err != nil {
				return err
			}
			a.printf("Uploaded record %d (%s)\n", rec.RecordID, rec.Name)
			return nil
		},
	}
	upload.Flags().StringVar(&name, "name", "", "Display name, defaults to the file name")

	del := &cobra.Command{
		Use:   "delete RECORD_ID",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabRecords)
			if err != nil {
				return err
			}
			defer done()
			msg, err := c.DeleteRecord(ctx, recID)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}

	var out string
	view := &cobra.Command{
		Use:   "view RECORD_ID",
		Short: "Download a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabRecords)
			if err != nil {
				return err
			}
			defer done()
			blob, err := c.ViewRecord(ctx, recID)
			if err != nil {
				return err
			}
			return a.saveBlob(blob, out)
		},
	}
	view.Flags().StringVar(&out, "out", "", "Output path, defaults to the record's file name")

	cmd.AddCommand(list, upload, del, view)
	return cmd
}

// saveBlob writes a downloaded document to path, or to its own file name.
func (a *app) saveBlob(b *client.Blob, path string) error {
	if path == "" {
		path = filepath.Base(b.FileName)
	}
	if path == "" || path == "." || path == "/" {
		path = "document"
	}
	if err := os.WriteFile(path, b.Data, 0o600); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	a.printf("Saved %s (%s, %d bytes)\n", path, dash(b.ContentType), len(b.Data))
	return nil
}

func patientAccessCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Review doctors' access requests",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List pending record and history requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabAccess)
			if err != nil {
				return err
			}
			defer done()
			records, err := c.PendingAccessRequests(ctx)
			if err != nil {
				return err
			}
			histories, err := c.HistoryAccessRequests(ctx)
			if err != nil {
				return err
			}
			var rows [][]string
			for _, r := range records {
				rows = append(rows, []string{id(r.ID), "record", r.DoctorName, r.RecordName, fmt.Sprintf("%d days", r.AccessDays), string(r.Status)})
			}
			for _, h := range histories {
				rows = append(rows, []string{id(h.ID), "history", h.DoctorName, "-", "-", string(h.Status)})
			}
			if len(rows) == 0 {
				a.printf("no records\n")
				return nil
			}
			return table(a.out, []string{"ID", "KIND", "DOCTOR", "RECORD", "DURATION", "STATUS"}, rows)
		},
	}

	decide := func(use string, record, history func(*client.Client) func(context.Context, int64) (string, error)) *cobra.Command {
		var forHistory bool
		c := &cobra.Command{
			Use:   use + " REQUEST_ID",
			Short: use + " an access request",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				reqID, err := parseID(args[0])
				if err != nil {
					return err
				}
				cl, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabAccess)
				if err != nil {
					return err
				}
				defer done()
				fn := record(cl)
				if forHistory {
					fn = history(cl)
				}
				msg, err := fn(ctx, reqID)
				if err != nil {
					return err
				}
				a.printf("%s\n", msg)
				return nil
			},
		}
		c.Flags().BoolVar(&forHistory, "history", false, "The request is for the medical history")
		return c
	}

	cmd.AddCommand(
		list,
		decide("approve",
			func(c *client.Client) func(context.Context, int64) (string, error) { return c.ApproveAccess },
			func(c *client.Client) func(context.Context, int64) (string, error) { return c.ApproveHistoryAccess }),
		decide("reject",
			func(c *client.Client) func(context.Context, int64) (string, error) { return c.RejectAccess },
			func(c *client.Client) func(context.Context, int64) (string, error) { return c.RejectHistoryAccess }),
	)
	return cmd
}

func historyFlags(cmd *cobra.Command, form *validate.HistoryForm) {
	cmd.Flags().StringVar(&form.Problem, "problem", "", "Problem")
	cmd.Flags().StringVar(&form.Date, "date", "", "Date, YYYY-MM-DD")
	cmd.Flags().StringVar(&form.Intensity, "intensity", "LOW", "LOW, MEDIUM, HIGH or CRITICAL")
	cmd.Flags().StringVar(&form.Notes, "notes", "", "Notes")
}

func patientHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the medical history",
	}

	var lf listFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabHistory)
			if err != nil {
				return err
			}
			defer done()
			return listView(ctx, a.out, c.Histories, collection.HistoryFields,
				pagination.CardSize, lf.query(), historyHeader, historyRow)
		},
	}
	lf.bind(list, true, true)

	var addForm validate.HistoryForm
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a history entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabHistory)
			if err != nil {
				return err
			}
			defer done()
			h, err := c.AddHistory(ctx, addForm)
			if err != nil {
				return err
			}
			a.printf("Added history entry %d\n", h.ID)
			return nil
		},
	}
	historyFlags(add, &addForm)

	var updForm validate.HistoryForm
	update := &cobra.Command{
		Use:   "update ENTRY_ID",
		Short: "Replace a history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabHistory)
			if err != nil {
				return err
			}
			defer done()
			h, err := c.UpdateHistory(ctx, entryID, updForm)
			if err != nil {
				return err
			}
			a.printf("Updated history entry %d\n", h.ID)
			return nil
		},
	}
	historyFlags(update, &updForm)

	del := &cobra.Command{
		Use:   "delete ENTRY_ID",
		Short: "Delete a history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabHistory)
			if err != nil {
				return err
			}
			defer done()
			msg, err := c.DeleteHistory(ctx, entryID)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}

	cmd.AddCommand(list, add, update, del)
	return cmd
}

func patientEmergencyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emergency",
		Short: "Raise and follow emergencies",
	}

	var lf listFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List raised emergencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabEmergency)
			if err != nil {
				return err
			}
			defer done()
			return listView(ctx, a.out, c.PatientEmergencies, collection.EmergencyFields,
				pagination.CardSize, lf.query(), emergencyHeader, emergencyRow)
		},
	}
	lf.bind(list, false, true)

	var form validate.EmergencyForm
	raise := &cobra.Command{
		Use:   "raise",
		Short: "Raise an emergency to every doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, auth.RolePatient, dashboard.TabEmergency)
			if err != nil {
				return err
			}
			defer done()
			e, err := c.RaiseEmergency(ctx, form)
			if err != nil {
				return err
			}
			a.printf("Raised emergency %d (%s)\n", e.ID, e.Status)
			return nil
		},
	}
	raise.Flags().StringVar(&form.Problem, "problem", "", "Problem")
	raise.Flags().StringVar(&form.Intensity, "intensity", "HIGH", "LOW, MEDIUM, HIGH or CRITICAL")
	raise.Flags().StringVar(&form.Message, "message", "", "Message to the doctors")
	raise.Flags().StringVar(&form.Location, "location", "", "Where you are")

	cmd.AddCommand(list, raise)
	return cmd
}

func profileCmd(a *app, role auth.Role) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, role, dashboard.TabProfile)
			if err != nil {
				return err
			}
			defer done()
			u, err := c.Profile(ctx)
			if err != nil {
				return err
			}
			return printUser(a.out, u)
		},
	}

	var (
		form            validate.ProfileForm
		govID, certPath string
	)
	update := &cobra.Command{
		Use:   "update",
		Short: "Update the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, role, dashboard.TabProfile)
			if err != nil {
				return err
			}
			defer done()
			var files client.ProfileFiles
			for _, f := range []struct {
				path  string
				field string
				dst   **client.FilePart
			}{
				{govID, "governmentId", &files.GovernmentID},
				{certPath, "doctorCertificate", &files.DoctorCertificate},
			} {
				if f.path == "" {
					continue
				}
				fh, err := os.Open(f.path)
				if err != nil {
					return err
				}
				defer fh.Close()
				*f.dst = &client.FilePart{
					Field:       f.field,
					FileName:    filepath.Base(f.path),
					ContentType: mime.TypeByExtension(filepath.Ext(f.path)),
					Data:        fh,
				}
			}
			u, err := c.UpdateProfile(ctx, form, files)
			if err != nil {
				return err
			}
			a.printf("Profile updated\n")
			return printUser(a.out, u)
		},
	}
	fl := update.Flags()
	fl.StringVar(&form.Name, "name", "", "Full name")
	fl.StringVar(&form.DOB, "dob", "", "Date of birth, YYYY-MM-DD")
	fl.StringVar(&form.Gender, "gender", "", "Gender")
	fl.StringVar(&form.Phone, "phone", "", "Phone")
	fl.StringVar(&form.Address, "address", "", "Address")
	fl.StringVar(&form.EmergencyContactPhone, "emergency-phone", "", "Emergency contact phone")
	fl.StringVar(&govID, "government-id", "", "Government ID document to attach")
	if role == auth.RoleDoctor {
		fl.StringVar(&form.Specialization, "specialization", "", "Specialization")
		fl.StringVar(&form.Hospital, "hospital", "", "Hospital")
		fl.IntVar(&form.Experience, "experience", 0, "Years of experience")
		fl.Float64Var(&form.ConsultationFees, "fees", 0, "Consultation fees")
		fl.StringVar(&certPath, "certificate", "", "Medical certificate to attach")
	}

	cmd.AddCommand(update)
	return cmd
}
