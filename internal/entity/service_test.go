// AngelaMos | 2026
// service_test.go

package entity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/entity"
	"github.com/carterperez-dev/tfg-registry/internal/entity/entitytest"
)

type label struct {
	ID        string
	Name      string `validate:"required,max=20"`
	Active    bool
	DeletedAt *time.Time
}

func (l label) GetID() string { return l.ID }

func newLabelStore() *entitytest.Store[label] {
	return entitytest.NewStore(entitytest.Accessors[label]{
		SetID: func(l *label, id string) { l.ID = id },
		Field: func(l *label, f string) (string, bool) {
			switch f {
			case "name", "year", "degree", "advisor":
				return l.Name, true
			}
			return "", false
		},
		Active:    func(l *label) bool { return l.Active },
		DeletedAt: func(l *label) *time.Time { return l.DeletedAt },
		SetDelete: func(l *label, t time.Time) { l.DeletedAt = &t },
		Unique:    []string{"name"},
	})
}

type usageMock struct {
	mock.Mock
}

func (m *usageMock) CountReferences(ctx context.Context, kind entity.Kind, id string) (int, error) {
	args := m.Called(ctx, kind, id)
	return args.Int(0), args.Error(1)
}

func newService(
	t *testing.T,
	kind entity.Kind,
	usage entity.UsageChecker,
) (*entity.Service[label], *entitytest.Store[label]) {
	t.Helper()
	store := newLabelStore()
	svc := entity.NewService[label](kind, store, entity.Options[label]{
		Validator: core.NewValidator(),
		Usage:     usage,
		Validate: func(l *label) []core.FieldError {
			if kind == entity.KindYear && !core.IsAcademicYear(l.Name) {
				return []core.FieldError{{Field: "year", Message: "bad format"}}
			}
			return nil
		},
	})
	return svc, store
}

func TestGetAllEmpty(t *testing.T) {
	svc, _ := newService(t, entity.KindDegree, nil)

	items, err := svc.GetAll(context.Background(), entity.ListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestGetAllActiveFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, entity.KindDegree, nil)

	_, err := svc.Create(ctx, &label{Name: "Physics", Active: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &label{Name: "Chemistry", Active: false})
	require.NoError(t, err)

	active := true
	items, err := svc.GetAll(ctx, entity.ListFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Physics", items[0].Name)
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, entity.KindAdvisor, nil)

	t.Run("malformed id", func(t *testing.T) {
		_, err := svc.GetByID(ctx, "not-a-uuid")
		assert.True(t, core.HasCode(err, core.CodeInvalidID))
		assert.False(t, errors.Is(err, core.ErrNotFound))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := svc.GetByID(ctx, uuid.NewString())
		assert.True(t, core.HasCode(err, "ADVISOR_NOT_FOUND"))
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("found", func(t *testing.T) {
		created, err := svc.Create(ctx, &label{Name: "Jane Doe"})
		require.NoError(t, err)

		got, err := svc.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", got.Name)
	})
}

func TestFindByField(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, entity.KindAdvisor, nil)

	created, err := svc.Create(ctx, &label{Name: "Jane Doe"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		field string
		value string
		opts  entity.FindOptions
		found bool
	}{
		{"case insensitive whole value", "name", "jane doe", entity.FindOptions{CaseInsensitive: true}, true},
		{"case insensitive is anchored", "name", "jane", entity.FindOptions{CaseInsensitive: true}, false},
		{"substring", "name", "ne Do", entity.FindOptions{}, true},
		{"substring is case sensitive", "name", "ne do", entity.FindOptions{}, false},
		{"exact", "name", "Jane Doe", entity.FindOptions{Exact: true}, true},
		{"exact mismatch", "name", "jane doe", entity.FindOptions{Exact: true}, false},
		{"by id", "id", created.ID, entity.FindOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.FindByField(ctx, tt.field, tt.value, tt.opts)
			require.NoError(t, err)
			if tt.found {
				require.NotNil(t, got)
				assert.Equal(t, created.ID, got.ID)
			} else {
				assert.Nil(t, got)
			}
		})
	}

	t.Run("malformed id", func(t *testing.T) {
		_, err := svc.FindByField(ctx, "id", "123", entity.FindOptions{})
		assert.True(t, core.HasCode(err, core.CodeInvalidID))
	})
}

func TestFindByName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, entity.KindYear, nil)

	for _, y := range []string{"22/23", "23/24", "99/00"} {
		_, err := svc.Create(ctx, &label{Name: y})
		require.NoError(t, err)
	}

	items, err := svc.FindByName(ctx, "23")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = svc.FindByName(ctx, "nothing")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate ignoring case", func(t *testing.T) {
		svc, _ := newService(t, entity.KindDegree, nil)
		_, err := svc.Create(ctx, &label{Name: "Computer Science"})
		require.NoError(t, err)

		_, err = svc.Create(ctx, &label{Name: "computer science"})
		assert.True(t, core.HasCode(err, "DEGREE_ALREADY_EXISTS"))
		assert.ErrorIs(t, err, core.ErrDuplicateKey)
	})

	t.Run("struct validation", func(t *testing.T) {
		svc, _ := newService(t, entity.KindDegree, nil)
		_, err := svc.Create(ctx, &label{})

		appErr, ok := core.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, core.CodeValidation, appErr.Code)
		require.Len(t, appErr.Details, 1)
		assert.Equal(t, "Name", appErr.Details[0].Field)
	})

	t.Run("validation hook", func(t *testing.T) {
		svc, store := newService(t, entity.KindYear, nil)
		_, err := svc.Create(ctx, &label{Name: "23/25"})

		appErr, ok := core.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, core.CodeValidation, appErr.Code)
		assert.Equal(t, []core.FieldError{{Field: "year", Message: "bad format"}}, appErr.Details)

		items, _ := store.FindActive(ctx, entity.ListFilter{})
		assert.Empty(t, items)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, entity.KindYear, nil)

	created, err := svc.Create(ctx, &label{Name: "23/24", Active: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &label{Name: "24/25"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, func(l *label) { l.Active = false })
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, "23/24", updated.Name)

	_, err = svc.Update(ctx, created.ID, func(l *label) { l.Name = "24/26" })
	assert.True(t, core.HasCode(err, core.CodeValidation))

	_, err = svc.Update(ctx, created.ID, func(l *label) { l.Name = "24/25" })
	assert.True(t, core.HasCode(err, "YEAR_ALREADY_EXISTS"))

	_, err = svc.Update(ctx, uuid.NewString(), func(*label) {})
	assert.True(t, core.HasCode(err, "YEAR_NOT_FOUND"))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("in use performs no mutation", func(t *testing.T) {
		usage := &usageMock{}
		svc, store := newService(t, entity.KindYear, usage)
		created, err := svc.Create(ctx, &label{Name: "23/24"})
		require.NoError(t, err)

		usage.On("CountReferences", mock.Anything, entity.KindYear, created.ID).Return(1, nil)

		ack, err := svc.Delete(ctx, created.ID)
		assert.Nil(t, ack)
		assert.True(t, core.HasCode(err, "YEAR_IN_USE"))

		raw, ok := store.Raw(created.ID)
		require.True(t, ok)
		assert.Nil(t, raw.DeletedAt)
		usage.AssertExpectations(t)
	})

	t.Run("unused is removed from listings", func(t *testing.T) {
		usage := &usageMock{}
		svc, _ := newService(t, entity.KindYear, usage)
		created, err := svc.Create(ctx, &label{Name: "23/24"})
		require.NoError(t, err)

		usage.On("CountReferences", mock.Anything, entity.KindYear, created.ID).Return(0, nil)

		ack, err := svc.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "year deleted", ack.Message)

		items, err := svc.GetAll(ctx, entity.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, items)

		_, err = svc.Create(ctx, &label{Name: "23/24"})
		assert.NoError(t, err)
	})

	t.Run("missing entity", func(t *testing.T) {
		svc, _ := newService(t, entity.KindDegree, &usageMock{})
		_, err := svc.Delete(ctx, uuid.NewString())
		assert.True(t, core.HasCode(err, "DEGREE_NOT_FOUND"))
	})

	t.Run("unsupported kind", func(t *testing.T) {
		svc, _ := newService(t, entity.KindTFG, nil)
		_, err := svc.Delete(ctx, uuid.NewString())
		assert.True(t, core.HasCode(err, core.CodeInvalidEntityName))
	})

	t.Run("usage lookup failure", func(t *testing.T) {
		usage := &usageMock{}
		svc, _ := newService(t, entity.KindAdvisor, usage)
		created, err := svc.Create(ctx, &label{Name: "Jane Doe"})
		require.NoError(t, err)

		usage.On("CountReferences", mock.Anything, entity.KindAdvisor, created.ID).
			Return(0, errors.New("connection reset"))

		_, err = svc.Delete(ctx, created.ID)
		assert.True(t, core.HasCode(err, core.CodeDefault))
	})
}

func TestIsUsedInTFGs(t *testing.T) {
	ctx := context.Background()
	usage := &usageMock{}
	svc, _ := newService(t, entity.KindAdvisor, usage)

	used, err := svc.IsUsedInTFGs(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, used)

	used, err = svc.IsUsedInTFGs(ctx, "garbage")
	require.NoError(t, err)
	assert.False(t, used)

	usage.AssertNotCalled(t, "CountReferences", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, entity.KindYear, nil)

	created, err := svc.Create(ctx, &label{Name: "23/24"})
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, entity.ParseRef(" 23/24 "))
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	got, err = svc.Resolve(ctx, entity.ParseRef(created.ID))
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, []string{created.ID, created.ID}, store.Locks)

	for _, ref := range []entity.Ref{
		entity.ByLabel("24/25"),
		entity.ByID(uuid.NewString()),
		entity.ByID("nope"),
		{},
	} {
		_, err := svc.Resolve(ctx, ref)
		assert.True(t, core.HasCode(err, "YEAR_NOT_FOUND"), ref.String())
	}
}

func TestParseRef(t *testing.T) {
	id := uuid.NewString()

	ref := entity.ParseRef(id)
	got, ok := ref.ID()
	assert.True(t, ok)
	assert.Equal(t, id, got)

	ref = entity.ParseRef("  Jane Doe ")
	name, ok := ref.Label()
	assert.True(t, ok)
	assert.Equal(t, "Jane Doe", name)
	_, ok = ref.ID()
	assert.False(t, ok)

	assert.True(t, entity.ParseRef("   ").IsZero())
}

func TestNormalize(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, entity.KindYear, nil)

	t.Run("already normalized passes through", func(t *testing.T) {
		original := core.NotFoundError("year")
		got := svc.HandleError(ctx, original, "getById", "x")
		assert.Same(t, original, got)
	})

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"invalid id", core.ErrInvalidID, core.CodeInvalidID},
		{"not found", core.ErrNotFound, "YEAR_NOT_FOUND"},
		{"duplicate", core.ErrDuplicateKey, "YEAR_ALREADY_EXISTS"},
		{"field violation", &core.FieldViolation{Field: "year", Message: "bad"}, core.CodeValidation},
		{"anything else", errors.New("boom"), core.CodeDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.HandleError(ctx, tt.err, "op", "")
			assert.True(t, core.HasCode(got, tt.code))

			again := svc.HandleError(ctx, got, "op", "")
			assert.Same(t, got, again)
		})
	}

	assert.NoError(t, svc.HandleError(ctx, nil, "op", ""))
}
