package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/medvault/medvault/internal/platform/apperr"
)

var ErrNotFound = apperr.ErrNotFound

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, keep func(*User) bool) ([]*User, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry *AuditLog) error
	List(ctx context.Context) ([]*AuditLog, error)
}

// MemoryUserRepo indexes users by id and lower-cased email.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	seq     int64
	users   map[int64]*User
	byEmail map[string]int64
	order   []int64
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[int64]*User), byEmail: make(map[string]int64)}
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (r *MemoryUserRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[emailKey(u.Email)]; taken {
		return apperr.New(apperr.ErrConflict, "email %s is already registered", u.Email)
	}
	r.seq++
	u.ID = r.seq
	cp := *u
	r.users[u.ID] = &cp
	r.byEmail[emailKey(u.Email)] = u.ID
	r.order = append(r.order, u.ID)
	return nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id int64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

func (r *MemoryUserRepo) Update(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if emailKey(old.Email) != emailKey(u.Email) {
		if _, taken := r.byEmail[emailKey(u.Email)]; taken {
			return apperr.New(apperr.ErrConflict, "email %s is already registered", u.Email)
		}
		delete(r.byEmail, emailKey(old.Email))
		r.byEmail[emailKey(u.Email)] = u.ID
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *MemoryUserRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byEmail, emailKey(u.Email))
	delete(r.users, id)
	for i, k := range r.order {
		if k == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryUserRepo) List(_ context.Context, keep func(*User) bool) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*User
	for _, id := range r.order {
		u := r.users[id]
		if keep == nil || keep(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type MemoryAuditRepo struct {
	mu      sync.RWMutex
	seq     int64
	entries []*AuditLog
}

func NewMemoryAuditRepo() *MemoryAuditRepo {
	return &MemoryAuditRepo{}
}

func (r *MemoryAuditRepo) Append(_ context.Context, entry *AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.ID = r.seq
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

// List returns the newest entries first.
func (r *MemoryAuditRepo) List(_ context.Context) ([]*AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AuditLog, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		cp := *r.entries[i]
		out = append(out, &cp)
	}
	return out, nil
}
