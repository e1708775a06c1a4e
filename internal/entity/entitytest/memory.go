// AngelaMos | 2026
// memory.go

// Package entitytest provides an in-memory entity.Store for service tests.
package entitytest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/entity"
)

type Accessors[T entity.Record] struct {
	SetID     func(*T, string)
	Field     func(*T, string) (string, bool)
	Active    func(*T) bool
	DeletedAt func(*T) *time.Time
	SetDelete func(*T, time.Time)
	// Unique lists fields compared case-insensitively among live rows.
	Unique []string
}

type Store[T entity.Record] struct {
	mu    sync.Mutex
	acc   Accessors[T]
	items map[string]*T
	order []string
	now   func() time.Time

	// Err, when set, is returned by every call.
	Err   error
	Locks []string
}

func NewStore[T entity.Record](acc Accessors[T]) *Store[T] {
	return &Store[T]{
		acc:   acc,
		items: make(map[string]*T),
		now:   time.Now,
	}
}

func (s *Store[T]) live(item *T) bool {
	return s.acc.DeletedAt(item) == nil
}

func clone[T any](item *T) *T {
	c := *item
	return &c
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidID, id)
	}
	return nil
}

func (s *Store[T]) FindActive(_ context.Context, filter entity.ListFilter) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := []T{}
	for _, id := range s.order {
		item := s.items[id]
		if !s.live(item) {
			continue
		}
		if filter.Active != nil && s.acc.Active != nil && s.acc.Active(item) != *filter.Active {
			continue
		}
		out = append(out, *clone(item))
	}
	return out, nil
}

func (s *Store[T]) FindByID(_ context.Context, id string) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if err := validID(id); err != nil {
		return nil, err
	}

	item, ok := s.items[id]
	if !ok || !s.live(item) {
		return nil, fmt.Errorf("find %s: %w", id, core.ErrNotFound)
	}
	return clone(item), nil
}

func (s *Store[T]) FindIncludingDeleted(_ context.Context, id string) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if err := validID(id); err != nil {
		return nil, err
	}

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("find %s: %w", id, core.ErrNotFound)
	}
	return clone(item), nil
}

func (s *Store[T]) matches(item *T, m entity.Match) (bool, error) {
	if m.Field == "id" {
		return (*item).GetID() == m.Value, nil
	}

	v, ok := s.acc.Field(item, m.Field)
	if !ok {
		return false, &core.FieldViolation{Field: m.Field, Message: "unknown field"}
	}

	switch m.Mode {
	case entity.MatchExact:
		return v == m.Value, nil
	case entity.MatchCaseInsensitive:
		return strings.EqualFold(v, m.Value), nil
	case entity.MatchSubstring:
		return strings.Contains(v, m.Value), nil
	default:
		return strings.Contains(strings.ToLower(v), strings.ToLower(m.Value)), nil
	}
}

func (s *Store[T]) FindOne(ctx context.Context, m entity.Match) (*T, error) {
	items, err := s.FindMany(ctx, m)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("find one %s: %w", m.Field, core.ErrNotFound)
	}
	return &items[0], nil
}

func (s *Store[T]) FindMany(_ context.Context, m entity.Match) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := []T{}
	for _, id := range s.order {
		item := s.items[id]
		if !s.live(item) {
			continue
		}
		ok, err := s.matches(item, m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *clone(item))
		}
	}
	return out, nil
}

func (s *Store[T]) conflicts(item *T) bool {
	for _, field := range s.acc.Unique {
		v, _ := s.acc.Field(item, field)
		for _, id := range s.order {
			other := s.items[id]
			if id == (*item).GetID() || !s.live(other) {
				continue
			}
			ov, _ := s.acc.Field(other, field)
			if strings.EqualFold(v, ov) {
				return true
			}
		}
	}
	return false
}

func (s *Store[T]) Create(_ context.Context, item *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	if (*item).GetID() == "" {
		s.acc.SetID(item, uuid.New().String())
	}
	if s.conflicts(item) {
		return fmt.Errorf("create: %w", core.ErrDuplicateKey)
	}

	s.items[(*item).GetID()] = clone(item)
	s.order = append(s.order, (*item).GetID())
	return nil
}

func (s *Store[T]) Update(_ context.Context, item *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	id := (*item).GetID()
	existing, ok := s.items[id]
	if !ok || !s.live(existing) {
		return fmt.Errorf("update %s: %w", id, core.ErrNotFound)
	}
	if s.conflicts(item) {
		return fmt.Errorf("update: %w", core.ErrDuplicateKey)
	}

	s.items[id] = clone(item)
	return nil
}

func (s *Store[T]) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	item, ok := s.items[id]
	if !ok || !s.live(item) {
		return fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
	}
	s.acc.SetDelete(item, s.now())
	return nil
}

func (s *Store[T]) Lock(_ context.Context, id string, _ entity.LockMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if err := validID(id); err != nil {
		return err
	}

	item, ok := s.items[id]
	if !ok || !s.live(item) {
		return fmt.Errorf("lock %s: %w", id, core.ErrNotFound)
	}
	s.Locks = append(s.Locks, id)
	return nil
}

// Raw returns the stored row, deleted or not, for assertions.
func (s *Store[T]) Raw(id string) (*T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return clone(item), true
}

// Each visits rows in insertion order, including soft-deleted ones.
func (s *Store[T]) Each(fn func(*T)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		fn(s.items[id])
	}
}

// Mutate applies fn to the stored row under the store lock.
func (s *Store[T]) Mutate(id string, fn func(*T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || !s.live(item) {
		return fmt.Errorf("mutate %s: %w", id, core.ErrNotFound)
	}
	fn(item)
	return nil
}

// Sorted returns live rows ordered by less.
func (s *Store[T]) Sorted(less func(a, b *T) bool) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		if item := s.items[id]; s.live(item) {
			out = append(out, *clone(item))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}
