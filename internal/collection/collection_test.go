package collection

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/medvault/medvault/internal/domain/scheduling"
)

func appt(id int64, doctor, date string, status scheduling.Status) scheduling.Appointment {
	return scheduling.Appointment{AppointmentID: id, DoctorName: doctor, PatientName: "Cara Silva", SlotDate: date, Status: status}
}

func staticFetch(items ...scheduling.Appointment) Fetcher[scheduling.Appointment] {
	return func(context.Context) ([]scheduling.Appointment, error) { return items, nil }
}

func TestStore_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	s := New(staticFetch(
		appt(1, "Dr. Alice", "2024-06-10", scheduling.StatusPending),
		appt(2, "Dr. Bob", "2024-06-10", scheduling.StatusPending),
	), AppointmentFields, 8)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	got := s.Filter(Query{Search: "ali"})
	if len(got) != 1 || got[0].DoctorName != "Dr. Alice" {
		t.Fatalf("expected only Dr. Alice, got %+v", got)
	}
	if got := s.Filter(Query{Search: "ALICE"}); len(got) != 1 {
		t.Errorf("upper-case search should match, got %d", len(got))
	}
}

func TestStore_DateAndStatusFilters(t *testing.T) {
	s := New(staticFetch(
		appt(1, "Dr. Alice", "2024-06-10", scheduling.StatusPending),
		appt(2, "Dr. Alice", "2024-06-11", scheduling.StatusConfirmed),
		appt(3, "Dr. Bob", "2024-06-10", scheduling.StatusConfirmed),
	), AppointmentFields, 8)
	s.Load(context.Background())

	tests := []struct {
		q    Query
		want []int64
	}{
		{Query{Date: "2024-06-10"}, []int64{1, 3}},
		{Query{Status: "CONFIRMED"}, []int64{2, 3}},
		{Query{Status: "confirmed", Date: "2024-06-10"}, []int64{3}},
		{Query{Search: "bob", Status: "PENDING"}, nil},
		{Query{}, []int64{1, 2, 3}},
	}
	for _, tt := range tests {
		got := s.Filter(tt.q)
		if len(got) != len(tt.want) {
			t.Errorf("%+v: got %d items, want %d", tt.q, len(got), len(tt.want))
			continue
		}
		for i, a := range got {
			if a.AppointmentID != tt.want[i] {
				t.Errorf("%+v: item %d = %d, want %d", tt.q, i, a.AppointmentID, tt.want[i])
			}
		}
	}
}

func TestStore_Pagination(t *testing.T) {
	tests := []struct {
		n, size     int
		pages, last int
	}{
		{0, 8, 0, 0},
		{8, 8, 1, 8},
		{17, 8, 3, 1},
		{30, 15, 2, 15},
		{31, 15, 3, 1},
	}
	for _, tt := range tests {
		items := make([]scheduling.Appointment, tt.n)
		for i := range items {
			items[i] = appt(int64(i+1), fmt.Sprintf("Dr. %d", i), "2024-06-10", scheduling.StatusPending)
		}
		s := New(staticFetch(items...), AppointmentFields, tt.size)
		s.Load(context.Background())

		first := s.View(Query{Page: 1})
		if first.Pages != tt.pages {
			t.Errorf("n=%d size=%d: pages = %d, want %d", tt.n, tt.size, first.Pages, tt.pages)
		}
		last := s.View(Query{Page: tt.pages})
		if tt.n > 0 && len(last.Items) != tt.last {
			t.Errorf("n=%d size=%d: last page has %d items, want %d", tt.n, tt.size, len(last.Items), tt.last)
		}
		if tt.n == 0 && first.Footer() != "no records" {
			t.Errorf("empty collection footer = %q", first.Footer())
		}
	}
}

func TestStore_LoadReplacesAndKeepsOnError(t *testing.T) {
	calls := 0
	fail := errors.New("backend down")
	s := New(func(context.Context) ([]scheduling.Appointment, error) {
		calls++
		switch calls {
		case 1:
			return []scheduling.Appointment{appt(1, "Dr. Alice", "", scheduling.StatusPending), appt(2, "Dr. Bob", "", scheduling.StatusPending)}, nil
		case 2:
			return []scheduling.Appointment{appt(1, "Dr. Alice", "", scheduling.StatusConfirmed)}, nil
		default:
			return nil, fail
		}
	}, AppointmentFields, 8)
	ctx := context.Background()

	if loaded, _ := s.Loaded(); loaded {
		t.Fatal("store should start unloaded")
	}
	s.Load(ctx)
	s.Load(ctx)
	if s.Len() != 1 || s.Items()[0].Status != scheduling.StatusConfirmed {
		t.Fatalf("second load should replace the list, got %+v", s.Items())
	}
	if err := s.Load(ctx); !errors.Is(err, fail) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if s.Len() != 1 {
		t.Error("a failed load must keep the previous list")
	}

	got, ok := s.Find(func(a scheduling.Appointment) bool { return a.AppointmentID == 1 })
	if !ok || got.Status != scheduling.StatusConfirmed {
		t.Errorf("Find = %+v, %v", got, ok)
	}
}
