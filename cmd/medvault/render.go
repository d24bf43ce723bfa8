package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/client"
	"github.com/medvault/medvault/internal/collection"
	"github.com/medvault/medvault/internal/domain/clinical"
	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/lifecycle"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/pagination"
)

func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

// renderPage prints one page as a table followed by its footer.
func renderPage[T any](w io.Writer, p pagination.Page[T], header []string, row func(T) []string) error {
	if p.Empty() {
		_, err := fmt.Fprintln(w, p.Footer())
		return err
	}
	rows := make([][]string, 0, len(p.Items))
	for _, it := range p.Items {
		rows = append(rows, row(it))
	}
	if err := table(w, header, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, p.Footer())
	return err
}

// listView loads a collection once and prints the requested page.
func listView[T any](ctx context.Context, w io.Writer, fetch collection.Fetcher[T], fields collection.Fields[T], size int, q collection.Query, header []string, row func(T) []string) error {
	store := collection.New(fetch, fields, size)
	if err := store.Load(ctx); err != nil {
		return err
	}
	return renderPage(w, store.View(q), header, row)
}

// listFlags are the filter and page flags shared by list commands.
type listFlags struct {
	search string
	date   string
	status string
	page   int
}

func (f *listFlags) bind(cmd *cobra.Command, date, status bool) {
	cmd.Flags().StringVar(&f.search, "search", "", "Case-insensitive text filter")
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number")
	if date {
		cmd.Flags().StringVar(&f.date, "date", "", "Exact date filter, YYYY-MM-DD")
	}
	if status {
		cmd.Flags().StringVar(&f.status, "status", "", "Exact status filter")
	}
}

func (f *listFlags) query() collection.Query {
	return collection.Query{Search: f.search, Date: f.date, Status: f.status, Page: f.page}
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func actionList(role auth.Role, a scheduling.Appointment) string {
	acts := lifecycle.Allowed(role, a)
	if len(acts) == 0 {
		return "-"
	}
	names := make([]string, len(acts))
	for i, act := range acts {
		names[i] = string(act)
	}
	return strings.Join(names, ",")
}

var appointmentHeader = []string{"ID", "DATE", "TIME", "DOCTOR", "PATIENT", "STATUS", "REASON", "ACTIONS"}

func appointmentRow(role auth.Role) func(scheduling.Appointment) []string {
	return func(a scheduling.Appointment) []string {
		return []string{
			id(a.AppointmentID), a.Day(), a.At(), dash(a.DoctorName), dash(a.PatientName),
			string(a.Status), dash(a.BookingReason()), actionList(role, a),
		}
	}
}

var slotHeader = []string{"ID", "DATE", "TIME", "STATUS", "BOOKED"}

func slotRow(s scheduling.Slot) []string {
	booked := "no"
	if s.Booked {
		booked = "yes"
	}
	return []string{id(s.ID), s.SlotDate, s.At(), string(s.Status), booked}
}

var doctorHeader = []string{"ID", "NAME", "SPECIALIZATION", "HOSPITAL", "RATING"}

func doctorRow(d scheduling.DoctorSummary) []string {
	rating := "-"
	if d.RatingCount > 0 {
		rating = fmt.Sprintf("%.1f (%d)", d.AverageRating, d.RatingCount)
	}
	return []string{id(d.ID), d.Name, dash(d.Specialization), dash(d.Hospital), rating}
}

var userHeader = []string{"ID", "NAME", "EMAIL", "ROLE", "PHONE", "PROFILE"}

func userRow(u identity.User) []string {
	return []string{id(u.ID), u.Name, u.Email, u.Role, dash(u.Phone), dash(string(u.ProfileStatus))}
}

var logHeader = []string{"TIME", "USER", "EMAIL", "ACTION"}

func logRow(l identity.AuditLog) []string {
	return []string{stamp(l.Timestamp), l.Username, l.Email, l.Action}
}

var recordHeader = []string{"ID", "NAME", "FILE", "UPLOADED"}

func recordRow(r clinical.MedicalRecord) []string {
	return []string{id(r.RecordID), r.Name, r.FileName, stamp(r.UploadedAt)}
}

var historyHeader = []string{"ID", "DATE", "PROBLEM", "INTENSITY", "NOTES"}

func historyRow(h clinical.History) []string {
	return []string{id(h.ID), h.Date, h.Problem, h.Intensity, dash(h.Notes)}
}

var emergencyHeader = []string{"ID", "PATIENT", "PROBLEM", "INTENSITY", "LOCATION", "STATUS", "DOCTOR", "RAISED"}

func emergencyRow(e clinical.Emergency) []string {
	return []string{
		id(e.ID), dash(e.PatientName), e.Problem, e.Intensity, e.Location,
		string(e.Status), dash(e.DoctorName), stamp(e.CreatedAt),
	}
}

var feedbackHeader = []string{"APPOINTMENT", "PATIENT", "RATING", "FEEDBACK"}

func feedbackRow(f scheduling.FeedbackEntry) []string {
	return []string{id(f.AppointmentID), f.PatientName, strconv.Itoa(f.Rating), f.Feedback}
}

var patientSummaryHeader = []string{"ID", "NAME", "APPOINTMENTS"}

func patientSummaryRow(p client.PatientSummary) []string {
	return []string{id(p.ID), p.Name, strconv.Itoa(p.Appointments)}
}

var sharedRecordHeader = []string{"RECORD", "NAME", "PATIENT", "FILE", "EXPIRES"}

func sharedRecordRow(r clinical.SharedRecord) []string {
	return []string{id(r.RecordID), r.Name, r.PatientName, r.FileName, stamp(r.ExpiresAt)}
}

func printUser(w io.Writer, u identity.User) error {
	rows := [][]string{
		{"Name", u.Name},
		{"Email", u.Email},
		{"Role", u.Role},
		{"Phone", dash(u.Phone)},
		{"Gender", dash(u.Gender)},
		{"Date of birth", dash(u.DOB)},
		{"Address", dash(u.Address)},
	}
	if u.RoleOf() == auth.RoleDoctor {
		rows = append(rows,
			[]string{"Specialization", dash(u.Specialization)},
			[]string{"Hospital", dash(u.Hospital)},
			[]string{"Experience", strconv.Itoa(u.Experience)},
			[]string{"Profile", dash(string(u.ProfileStatus))},
		)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}
