package clinical

import (
	"context"
	"sync"

	"github.com/medvault/medvault/internal/platform/apperr"
)

var ErrNotFound = apperr.ErrNotFound

// Table is the storage contract shared by every clinical entity.
type Table[T any] interface {
	Insert(ctx context.Context, v *T) error
	Get(ctx context.Context, id int64) (*T, error)
	Update(ctx context.Context, v *T) error
	Delete(ctx context.Context, id int64) error
	Select(ctx context.Context, keep func(*T) bool) ([]*T, error)
}

// MemoryTable keeps rows in insertion order and hands out copies.
type MemoryTable[T any] struct {
	mu    sync.RWMutex
	seq   int64
	rows  map[int64]*T
	order []int64
	id    func(*T) *int64
}

// NewMemoryTable takes an accessor for the row's id field.
func NewMemoryTable[T any](id func(*T) *int64) *MemoryTable[T] {
	return &MemoryTable[T]{rows: make(map[int64]*T), id: id}
}

func (m *MemoryTable[T]) Insert(_ context.Context, v *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	*m.id(v) = m.seq
	cp := *v
	m.rows[m.seq] = &cp
	m.order = append(m.order, m.seq)
	return nil
}

func (m *MemoryTable[T]) Get(_ context.Context, id int64) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryTable[T]) Update(_ context.Context, v *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := *m.id(v)
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	cp := *v
	m.rows[id] = &cp
	return nil
}

func (m *MemoryTable[T]) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	for i, k := range m.order {
		if k == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryTable[T]) Select(_ context.Context, keep func(*T) bool) ([]*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*T
	for _, id := range m.order {
		v := m.rows[id]
		if keep == nil || keep(v) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Stores groups the clinical tables.
type Stores struct {
	Records       Table[MedicalRecord]
	RecordAccess  Table[RecordAccess]
	Histories     Table[History]
	HistoryAccess Table[HistoryAccess]
	Emergencies   Table[Emergency]
}

func NewMemoryStores() Stores {
	return Stores{
		Records:       NewMemoryTable(func(r *MedicalRecord) *int64 { return &r.RecordID }),
		RecordAccess:  NewMemoryTable(func(a *RecordAccess) *int64 { return &a.ID }),
		Histories:     NewMemoryTable(func(h *History) *int64 { return &h.ID }),
		HistoryAccess: NewMemoryTable(func(a *HistoryAccess) *int64 { return &a.ID }),
		Emergencies:   NewMemoryTable(func(e *Emergency) *int64 { return &e.ID }),
	}
}
