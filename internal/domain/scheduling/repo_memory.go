package scheduling

import (
	"context"
	"sync"
)

// MemorySlotRepo keeps slots in insertion order.
type MemorySlotRepo struct {
	mu    sync.RWMutex
	seq   int64
	slots map[int64]*Slot
	order []int64
}

func NewMemorySlotRepo() *MemorySlotRepo {
	return &MemorySlotRepo{slots: make(map[int64]*Slot)}
}

func (r *MemorySlotRepo) Create(_ context.Context, sl *Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	sl.ID = r.seq
	cp := *sl
	r.slots[sl.ID] = &cp
	r.order = append(r.order, sl.ID)
	return nil
}

func (r *MemorySlotRepo) GetByID(_ context.Context, id int64) (*Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sl, ok := r.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sl
	return &cp, nil
}

func (r *MemorySlotRepo) Update(_ context.Context, sl *Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[sl.ID]; !ok {
		return ErrNotFound
	}
	cp := *sl
	r.slots[sl.ID] = &cp
	return nil
}

func (r *MemorySlotRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[id]; !ok {
		return ErrNotFound
	}
	delete(r.slots, id)
	for i, k := range r.order {
		if k == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListByDoctor returns the doctor's slots, optionally restricted to one date.
func (r *MemorySlotRepo) ListByDoctor(_ context.Context, doctorID int64, date string) ([]*Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Slot
	for _, id := range r.order {
		sl := r.slots[id]
		if sl.DoctorID != doctorID {
			continue
		}
		if date != "" && sl.SlotDate != date {
			continue
		}
		cp := *sl
		out = append(out, &cp)
	}
	return out, nil
}

type MemoryAppointmentRepo struct {
	mu    sync.RWMutex
	seq   int64
	appts map[int64]*Appointment
	order []int64
}

func NewMemoryAppointmentRepo() *MemoryAppointmentRepo {
	return &MemoryAppointmentRepo{appts: make(map[int64]*Appointment)}
}

func (r *MemoryAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	a.AppointmentID = r.seq
	cp := *a
	r.appts[a.AppointmentID] = &cp
	r.order = append(r.order, a.AppointmentID)
	return nil
}

func (r *MemoryAppointmentRepo) GetByID(_ context.Context, id int64) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[a.AppointmentID]; !ok {
		return ErrNotFound
	}
	cp := *a
	r.appts[a.AppointmentID] = &cp
	return nil
}

func (r *MemoryAppointmentRepo) filter(keep func(*Appointment) bool) []*Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Appointment
	for _, id := range r.order {
		a := r.appts[id]
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

func (r *MemoryAppointmentRepo) ListByDoctor(_ context.Context, doctorID int64) ([]*Appointment, error) {
	return r.filter(func(a *Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (r *MemoryAppointmentRepo) ListByPatient(_ context.Context, patientID int64) ([]*Appointment, error) {
	return r.filter(func(a *Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *MemoryAppointmentRepo) List(_ context.Context) ([]*Appointment, error) {
	return r.filter(func(*Appointment) bool { return true }), nil
}

type MemoryFeedbackRepo struct {
	mu       sync.RWMutex
	byDoctor map[int64][]*FeedbackEntry
}

func NewMemoryFeedbackRepo() *MemoryFeedbackRepo {
	return &MemoryFeedbackRepo{byDoctor: make(map[int64][]*FeedbackEntry)}
}

func (r *MemoryFeedbackRepo) Create(_ context.Context, doctorID int64, f *FeedbackEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.byDoctor[doctorID] = append(r.byDoctor[doctorID], &cp)
	return nil
}

func (r *MemoryFeedbackRepo) ListByDoctor(_ context.Context, doctorID int64) ([]*FeedbackEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*FeedbackEntry, 0, len(r.byDoctor[doctorID]))
	for _, f := range r.byDoctor[doctorID] {
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}
