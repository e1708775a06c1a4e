// AngelaMos | 2026
// service.go

package reference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/entity"
)

type Deps struct {
	Tx        entity.Transactor
	Logger    *slog.Logger
	Validator *validator.Validate
	Now       func() time.Time
}

// Registry is the generic entity service bound to one reference kind.
type Registry struct {
	*entity.Service[Reference]
	now func() time.Time
}

func newRegistry(
	kind entity.Kind,
	store entity.Store[Reference],
	deps Deps,
	validate func(*Reference) []core.FieldError,
) *Registry {
	if deps.Validator == nil {
		deps.Validator = core.NewValidator()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Registry{
		Service: entity.NewService(kind, store, entity.Options[Reference]{
			Validator: deps.Validator,
			Validate:  validate,
			Tx:        deps.Tx,
			Logger:    deps.Logger,
		}),
		now: deps.Now,
	}
}

func NewYears(store entity.Store[Reference], deps Deps) *Registry {
	return newRegistry(entity.KindYear, store, deps, validateYear)
}

func NewDegrees(store entity.Store[Reference], deps Deps) *Registry {
	return newRegistry(entity.KindDegree, store, deps, nil)
}

func NewAdvisors(store entity.Store[Reference], deps Deps) *Registry {
	return newRegistry(entity.KindAdvisor, store, deps, nil)
}

func validateYear(r *Reference) []core.FieldError {
	if !core.IsAcademicYear(r.Label) {
		return []core.FieldError{{
			Field:   string(entity.KindYear),
			Message: "must look like NN/NN with consecutive years",
		}}
	}
	return nil
}

// ResolveID returns the canonical id behind ref.
func (r *Registry) ResolveID(ctx context.Context, ref entity.Ref) (string, error) {
	item, err := r.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	return item.ID, nil
}

// AcademicYearLabel returns the NN/NN label of the academic year containing
// t. Academic years start in September.
func AcademicYearLabel(t time.Time) string {
	start := t.Year()
	if t.Month() < time.September {
		start--
	}
	return fmt.Sprintf("%02d/%02d", start%100, (start+1)%100)
}

// Current returns the registered year matching today's academic year.
func (r *Registry) Current(ctx context.Context) (*Reference, error) {
	if r.Kind() != entity.KindYear {
		return nil, core.Ef(
			core.CodeInvalidEntityName,
			"current is only defined for years",
		)
	}

	item, err := r.FindByField(ctx, string(entity.KindYear), AcademicYearLabel(r.now()),
		entity.FindOptions{Exact: true})
	if err != nil {
		return nil, err
	}
	if item == nil || !item.Active {
		return nil, core.NotFoundError(string(entity.KindYear))
	}
	return item, nil
}

func (r *Registry) Create(ctx context.Context, req CreateRequest) (*Reference, error) {
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return r.Service.Create(ctx, &Reference{
		Label:  req.Label,
		Active: active,
	})
}

func (r *Registry) Patch(
	ctx context.Context,
	id string,
	req UpdateRequest,
) (*Reference, error) {
	return r.Update(ctx, id, func(item *Reference) {
		if req.Label != nil {
			item.Label = *req.Label
		}
		if req.Active != nil {
			item.Active = *req.Active
		}
	})
}
