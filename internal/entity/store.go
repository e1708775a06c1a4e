// AngelaMos | 2026
// store.go

package entity

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	KindYear    Kind = "year"
	KindDegree  Kind = "degree"
	KindAdvisor Kind = "advisor"
	KindTFG     Kind = "tfg"
	KindUser    Kind = "user"
)

// Deletable reports whether the generic delete applies to the kind. Theses
// and users have their own delete paths.
func (k Kind) Deletable() bool {
	switch k {
	case KindYear, KindDegree, KindAdvisor:
		return true
	}
	return false
}

type MatchMode int

const (
	MatchExact MatchMode = iota
	// MatchCaseInsensitive matches the whole value ignoring case.
	MatchCaseInsensitive
	MatchSubstring
	MatchContainsFold
)

type Match struct {
	Field string
	Value string
	Mode  MatchMode
}

type ListFilter struct {
	Active *bool
}

type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

type Record interface {
	GetID() string
}

// Store is the persistence contract of the generic service. Every finder
// except FindIncludingDeleted ignores soft-deleted rows. Implementations wrap
// core.ErrNotFound, core.ErrDuplicateKey, core.ErrInvalidID or return a
// *core.FieldViolation so the service can classify failures.
type Store[T Record] interface {
	FindActive(ctx context.Context, filter ListFilter) ([]T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	FindIncludingDeleted(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, m Match) (*T, error)
	FindMany(ctx context.Context, m Match) ([]T, error)
	Create(ctx context.Context, item *T) error
	Update(ctx context.Context, item *T) error
	SoftDelete(ctx context.Context, id string) error
	// Lock takes a row lock for the rest of the surrounding transaction.
	// Outside a transaction it only checks the row exists.
	Lock(ctx context.Context, id string, mode LockMode) error
}

// UsageChecker counts non-deleted theses referencing an entity.
type UsageChecker interface {
	CountReferences(ctx context.Context, kind Kind, id string) (int, error)
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Ref points at a reference entity either by canonical id or by its
// human-entered label. It is resolved once, at the service boundary.
type Ref struct {
	id    string
	label string
}

func ByID(id string) Ref {
	return Ref{id: id}
}

func ByLabel(label string) Ref {
	return Ref{label: strings.TrimSpace(label)}
}

// ParseRef treats anything shaped like a UUID as an id and everything else as
// a label.
func ParseRef(raw string) Ref {
	raw = strings.TrimSpace(raw)
	if _, err := uuid.Parse(raw); err == nil {
		return ByID(raw)
	}
	return ByLabel(raw)
}

func (r Ref) ID() (string, bool) {
	return r.id, r.id != ""
}

func (r Ref) Label() (string, bool) {
	return r.label, r.label != ""
}

func (r Ref) IsZero() bool {
	return r.id == "" && r.label == ""
}

func (r Ref) String() string {
	if r.id != "" {
		return "id:" + r.id
	}
	return "label:" + r.label
}
