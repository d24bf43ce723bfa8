// Package collection holds fetched lists in memory and derives filtered,
// paginated views from them. Every Load replaces the whole list; there is no
// local patching of individual entries.
package collection

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/medvault/medvault/pkg/pagination"
)

// Fetcher loads the full collection from the backend.
type Fetcher[T any] func(ctx context.Context) ([]T, error)

// Fields tells a Store how to read the filterable fields of an item. Any
// accessor may be nil, in which case the matching filter is ignored.
type Fields[T any] struct {
	Text   func(T) []string
	Date   func(T) string
	Status func(T) string
}

// Query is a view request. Zero values disable the filter; Page is 1-based.
type Query struct {
	Search string
	Date   string
	Status string
	Page   int
}

type Store[T any] struct {
	fetch    Fetcher[T]
	fields   Fields[T]
	pageSize int

	mu       sync.RWMutex
	items    []T
	loadedAt time.Time
	loaded   bool
}

func New[T any](fetch Fetcher[T], fields Fields[T], pageSize int) *Store[T] {
	if pageSize <= 0 {
		pageSize = pagination.CardSize
	}
	return &Store[T]{fetch: fetch, fields: fields, pageSize: pageSize}
}

// Load fetches the collection and replaces the in-memory list. On error the
// previous list is kept.
func (s *Store[T]) Load(ctx context.Context) error {
	items, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}
	s.mu.Lock()
	s.items = items
	s.loadedAt = time.Now()
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Loaded reports whether a Load has succeeded and when.
func (s *Store[T]) Loaded() (bool, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded, s.loadedAt
}

// Items returns a copy of the current list.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Filter applies the search, date and status filters of q.
func (s *Store[T]) Filter(q Query) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]T, 0, len(s.items))
	for _, item := range s.items {
		if needle != "" && s.fields.Text != nil && !Contains(s.fields.Text(item), needle) {
			continue
		}
		if q.Date != "" && s.fields.Date != nil && s.fields.Date(item) != q.Date {
			continue
		}
		if q.Status != "" && s.fields.Status != nil && !strings.EqualFold(s.fields.Status(item), q.Status) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// View filters and then paginates.
func (s *Store[T]) View(q Query) pagination.Page[T] {
	return pagination.Paginate(s.Filter(q), q.Page, s.pageSize)
}

// Find returns the first item matching pred.
func (s *Store[T]) Find(pred func(T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Contains reports whether any field holds needle, ignoring case.
func Contains(fields []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
