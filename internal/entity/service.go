// AngelaMos | 2026
// service.go

package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/tfg-registry/internal/core"
)

type Ack struct {
	Message string `json:"message"`
}

type FindOptions struct {
	Exact           bool
	CaseInsensitive bool
}

type Options[T Record] struct {
	// LabelField is the column holding the human label. Defaults to the kind.
	LabelField string
	Validator  *validator.Validate
	// Validate runs after struct tag validation on create and update.
	Validate func(*T) []core.FieldError
	Usage    UsageChecker
	Tx       Transactor
	Logger   *slog.Logger
}

type Service[T Record] struct {
	kind       Kind
	store      Store[T]
	labelField string
	validator  *validator.Validate
	validate   func(*T) []core.FieldError
	usage      UsageChecker
	tx         Transactor
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewService[T Record](kind Kind, store Store[T], opts Options[T]) *Service[T] {
	s := &Service[T]{
		kind:       kind,
		store:      store,
		labelField: opts.LabelField,
		validator:  opts.Validator,
		validate:   opts.Validate,
		usage:      opts.Usage,
		tx:         opts.Tx,
		logger:     opts.Logger,
		tracer:     otel.Tracer("tfg-registry/entity"),
	}

	if s.labelField == "" {
		s.labelField = string(kind)
	}
	if s.tx == nil {
		s.tx = core.NopTransactor{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

func (s *Service[T]) Kind() Kind {
	return s.kind
}

// SetUsageChecker wires the thesis store after construction; the thesis
// service itself depends on the registries.
func (s *Service[T]) SetUsageChecker(u UsageChecker) {
	s.usage = u
}

func (s *Service[T]) GetAll(ctx context.Context, filter ListFilter) ([]T, error) {
	items, err := s.store.FindActive(ctx, filter)
	if err != nil {
		return nil, s.HandleError(ctx, err, "getAll", "")
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (s *Service[T]) GetByID(ctx context.Context, id string) (*T, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	item, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.HandleError(ctx, err, "getById", id)
	}
	return item, nil
}

// GetIncludingDeleted also returns soft-deleted rows.
func (s *Service[T]) GetIncludingDeleted(ctx context.Context, id string) (*T, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	item, err := s.store.FindIncludingDeleted(ctx, id)
	if err != nil {
		return nil, s.HandleError(ctx, err, "getIncludingDeleted", id)
	}
	return item, nil
}

// FindByField returns nil without error when nothing matches.
func (s *Service[T]) FindByField(
	ctx context.Context,
	field, value string,
	opts FindOptions,
) (*T, error) {
	m := Match{Field: field, Value: value, Mode: MatchSubstring}
	switch {
	case field == "id" || opts.Exact:
		m.Mode = MatchExact
	case opts.CaseInsensitive:
		m.Mode = MatchCaseInsensitive
	}

	if field == "id" {
		if err := checkID(value); err != nil {
			return nil, err
		}
	}

	item, err := s.store.FindOne(ctx, m)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, s.HandleError(ctx, err, "findByField", "")
	}
	return item, nil
}

func (s *Service[T]) FindByName(ctx context.Context, name string) ([]T, error) {
	items, err := s.store.FindMany(ctx, Match{
		Field: s.labelField,
		Value: name,
		Mode:  MatchContainsFold,
	})
	if err != nil {
		return nil, s.HandleError(ctx, err, "findByName", "")
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (s *Service[T]) Create(ctx context.Context, item *T) (*T, error) {
	if err := s.check(item); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, item); err != nil {
		return nil, s.HandleError(ctx, err, "create", "")
	}
	return item, nil
}

// Update loads the entity, applies mutate and validates the merged result
// before persisting it.
func (s *Service[T]) Update(
	ctx context.Context,
	id string,
	mutate func(*T),
) (*T, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	mutate(item)

	if err := s.check(item); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, item); err != nil {
		return nil, s.HandleError(ctx, err, "update", id)
	}
	return item, nil
}

// Delete soft-deletes a year, degree or advisor that no live thesis points
// at. The row lock, usage check and delete share one transaction.
func (s *Service[T]) Delete(ctx context.Context, id string) (*Ack, error) {
	if !s.kind.Deletable() {
		return nil, core.Ef(
			core.CodeInvalidEntityName,
			"delete is not supported for %s",
			s.kind,
		)
	}
	if err := checkID(id); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "entity.delete", trace.WithAttributes(
		attribute.String("entity.kind", string(s.kind)),
		attribute.String("entity.id", id),
	))
	defer span.End()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Lock(ctx, id, LockExclusive); err != nil {
			return s.HandleError(ctx, err, "delete", id)
		}

		used, err := s.IsUsedInTFGs(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return core.InUseError(string(s.kind))
		}

		if err := s.store.SoftDelete(ctx, id); err != nil {
			return s.HandleError(ctx, err, "delete", id)
		}
		return nil
	})
	if err != nil {
		core.SetSpanError(span, err)
		return nil, err
	}

	return &Ack{Message: fmt.Sprintf("%s deleted", s.kind)}, nil
}

// IsUsedInTFGs treats a missing or malformed id as unused.
func (s *Service[T]) IsUsedInTFGs(ctx context.Context, id string) (bool, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) || core.HasCode(err, core.CodeInvalidID) {
			return false, nil
		}
		return false, err
	}

	if s.usage == nil {
		return false, nil
	}

	n, err := s.usage.CountReferences(ctx, s.kind, id)
	if err != nil {
		return false, s.HandleError(ctx, err, "isUsedInTFGs", id)
	}
	return n > 0, nil
}

// Resolve turns a Ref into the live entity it names and takes a shared lock
// on it, so a concurrent Delete cannot remove it before the caller's
// transaction commits.
func (s *Service[T]) Resolve(ctx context.Context, ref Ref) (*T, error) {
	notFound := core.NotFoundError(string(s.kind))

	var (
		item *T
		err  error
	)

	if id, ok := ref.ID(); ok {
		item, err = s.GetByID(ctx, id)
	} else if label, ok := ref.Label(); ok {
		item, err = s.FindByField(ctx, s.labelField, label, FindOptions{
			CaseInsensitive: true,
		})
	}
	if err != nil {
		if core.HasCode(err, core.CodeInvalidID) {
			return nil, notFound
		}
		return nil, err
	}
	if item == nil {
		return nil, notFound
	}

	if err := s.store.Lock(ctx, (*item).GetID(), LockShared); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, notFound
		}
		return nil, s.HandleError(ctx, err, "resolve", (*item).GetID())
	}

	return item, nil
}

func (s *Service[T]) HandleError(ctx context.Context, err error, op, id string) error {
	return Normalize(ctx, s.logger, s.kind, err, op, id)
}

func (s *Service[T]) check(item *T) error {
	var details []core.FieldError

	if s.validator != nil {
		if err := s.validator.Struct(item); err != nil {
			details = append(details, core.ValidationDetails(err)...)
		}
	}
	if s.validate != nil {
		details = append(details, s.validate(item)...)
	}

	if len(details) > 0 {
		return core.ValidationError(details...)
	}
	return nil
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.E(core.CodeInvalidID).Wrap(err)
	}
	return nil
}
