// AngelaMos | 2026
// memory_test.go

package tfg

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/entity"
	"github.com/carterperez-dev/tfg-registry/internal/entity/entitytest"
	"github.com/carterperez-dev/tfg-registry/internal/reference"
)

// memoryStore backs the thesis service with entitytest plus the listing
// queries.
type memoryStore struct {
	*entitytest.Store[TFG]

	mu        sync.Mutex
	clock     time.Time
	labels    map[string]string
	incrErr   error
	viewCalls int
}

func newMemoryStore() *memoryStore {
	m := &memoryStore{
		clock:  time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		labels: map[string]string{},
	}
	m.Store = entitytest.NewStore(entitytest.Accessors[TFG]{
		SetID: func(t *TFG, id string) {
			t.ID = id
			m.mu.Lock()
			m.clock = m.clock.Add(time.Minute)
			t.CreatedAt = m.clock
			m.mu.Unlock()
		},
		Field: func(t *TFG, f string) (string, bool) {
			switch f {
			case "title":
				return t.Title, true
			case "student":
				return t.Student, true
			case "link":
				return t.Link, true
			}
			return "", false
		},
		Active:    func(t *TFG) bool { return t.Verified },
		DeletedAt: func(t *TFG) *time.Time { return t.DeletedAt },
		SetDelete: func(t *TFG, at time.Time) { t.DeletedAt = &at },
	})
	return m
}

func (m *memoryStore) withLabels(t *TFG) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Year, t.Degree, t.Advisor = m.labels[t.YearID], m.labels[t.DegreeID], m.labels[t.AdvisorID]
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*TFG, error) {
	t, err := m.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.withLabels(t)
	return t, nil
}

func (m *memoryStore) CountReferences(_ context.Context, kind entity.Kind, id string) (int, error) {
	var n int
	m.Each(func(t *TFG) {
		if t.DeletedAt != nil {
			return
		}
		switch {
		case kind == entity.KindYear && t.YearID == id,
			kind == entity.KindDegree && t.DegreeID == id,
			kind == entity.KindAdvisor && t.AdvisorID == id:
			n++
		}
	})
	return n, nil
}

func matchesFilter(t *TFG, f Filter) bool {
	if f.YearID != "" && t.YearID != f.YearID ||
		f.DegreeID != "" && t.DegreeID != f.DegreeID ||
		f.AdvisorID != "" && t.AdvisorID != f.AdvisorID ||
		f.Verified != nil && t.Verified != *f.Verified {
		return false
	}

	search := strings.TrimSpace(f.Search)
	if search == "" {
		return true
	}

	lower := strings.ToLower(search)
	for _, s := range []string{t.Student, t.Title, t.Abstract} {
		if strings.Contains(strings.ToLower(s), lower) {
			return true
		}
	}
	for _, token := range strings.Fields(search) {
		if slices.Contains(t.Keywords, token) {
			return true
		}
	}
	return false
}

func (m *memoryStore) List(_ context.Context, f Filter) ([]TFG, error) {
	sorted := m.Sorted(func(a, b *TFG) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	out := []TFG{}
	for i := range sorted {
		if matchesFilter(&sorted[i], f) {
			out = append(out, sorted[i])
		}
	}
	return out, nil
}

func (m *memoryStore) Page(ctx context.Context, f Filter, limit, offset int) ([]TFG, int, error) {
	all, err := m.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	start := min(offset, len(all))
	end := min(start+limit, len(all))
	return all[start:end], len(all), nil
}

func (m *memoryStore) Names(ctx context.Context) ([]Name, error) {
	verified := true
	items, err := m.List(ctx, Filter{Verified: &verified})
	if err != nil {
		return nil, err
	}

	out := make([]Name, 0, len(items))
	for _, t := range items {
		out = append(out, Name{ID: t.ID, Title: t.Title})
	}
	return out, nil
}

func (m *memoryStore) IncrementViews(_ context.Context, id string) error {
	m.mu.Lock()
	m.viewCalls++
	failure := m.incrErr
	m.mu.Unlock()

	if failure != nil {
		return failure
	}
	return m.Mutate(id, func(t *TFG) { t.Views++ })
}

func (m *memoryStore) IncrementDownloads(_ context.Context, id string) error {
	m.mu.Lock()
	failure := m.incrErr
	m.mu.Unlock()

	if failure != nil {
		return failure
	}
	return m.Mutate(id, func(t *TFG) { t.DownloadCount++ })
}

func (m *memoryStore) Stats(context.Context) (Stats, error) {
	var s Stats
	m.Each(func(t *TFG) {
		if t.DeletedAt != nil {
			s.Deleted++
			return
		}
		s.Total++
		if t.Verified {
			s.Verified++
		} else {
			s.Unverified++
		}
		if t.HasFile() {
			s.WithFile++
		}
		s.Views += t.Views
		s.Downloads += t.DownloadCount
	})
	return s, nil
}

func newReferenceStore() *entitytest.Store[reference.Reference] {
	return entitytest.NewStore(entitytest.Accessors[reference.Reference]{
		SetID: func(r *reference.Reference, id string) { r.ID = id },
		Field: func(r *reference.Reference, f string) (string, bool) {
			switch f {
			case "label", "year", "degree", "advisor":
				return r.Label, true
			}
			return "", false
		},
		Active:    func(r *reference.Reference) bool { return r.Active },
		DeletedAt: func(r *reference.Reference) *time.Time { return r.DeletedAt },
		SetDelete: func(r *reference.Reference, t time.Time) { r.DeletedAt = &t },
		Unique:    []string{"label"},
	})
}

type mockFiles struct {
	mock.Mock
}

func (m *mockFiles) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	args := m.Called(ctx, data, filename)
	return args.String(0), args.Error(1)
}

func (m *mockFiles) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockFiles) Delete(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockFiles) Backend() string {
	return "mock"
}

type countingEvents struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingEvents) TFGEvent(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[event]++
}

func (c *countingEvents) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[event]
}

// fixture wires a thesis service to in-memory registries.
type fixture struct {
	svc      *Service
	store    *memoryStore
	years    *reference.Registry
	degrees  *reference.Registry
	advisors *reference.Registry
	files    *mockFiles
	events   *countingEvents

	yearID, degreeID, advisorID string
}

const (
	creatorID = "8b0c6a9e-55a5-4d4f-9a8e-0d5c2b7f1a10"
	otherID   = "3f1f4a3e-9d0b-4c2e-8f51-7a6b2c9d0e21"
	adminID   = "c0a1d2e3-f405-4617-8829-3a4b5c6d7e8f"
)

var (
	student = Caller{UserID: creatorID, Role: core.RoleUser}
	admin   = Caller{UserID: adminID, Role: core.RoleAdmin}
)

func newFixture(opts ...func(*Deps)) *fixture {
	ctx := context.Background()
	f := &fixture{
		store:  newMemoryStore(),
		files:  &mockFiles{},
		events: &countingEvents{},
	}

	deps := reference.Deps{Now: func() time.Time {
		return time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	}}
	f.years = reference.NewYears(newReferenceStore(), deps)
	f.degrees = reference.NewDegrees(newReferenceStore(), deps)
	f.advisors = reference.NewAdvisors(newReferenceStore(), deps)
	for _, r := range []*reference.Registry{f.years, f.degrees, f.advisors} {
		r.SetUsageChecker(f.store)
	}

	mustCreate := func(r *reference.Registry, label string) string {
		item, err := r.Create(ctx, reference.CreateRequest{Label: label})
		if err != nil {
			panic(fmt.Sprintf("seed %s: %v", label, err))
		}
		f.store.labels[item.ID] = label
		return item.ID
	}
	f.yearID = mustCreate(f.years, "23/24")
	f.degreeID = mustCreate(f.degrees, "Computer Science")
	f.advisorID = mustCreate(f.advisors, "Jane Doe")

	d := Deps{
		Store:      f.store,
		Years:      f.years,
		Degrees:    f.degrees,
		Advisors:   f.advisors,
		Files:      f.files,
		Events:     f.events,
		MaxUpload:  1 << 10,
		Pagination: defaultPagination(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	f.svc = NewService(d)

	return f
}

func (f *fixture) create(title string, keywords ...string) *TFG {
	if len(keywords) == 0 {
		keywords = []string{"go"}
	}
	t, err := f.svc.CreateTFG(context.Background(), student, CreateRequest{
		Year:     "23/24",
		Degree:   "computer science",
		Advisor:  f.advisorID,
		Student:  "Ana Lopez",
		Title:    title,
		Keywords: keywords,
		Abstract: "An abstract about " + title,
	})
	if err != nil {
		panic(fmt.Sprintf("create %s: %v", title, err))
	}
	return t
}

var errCounter = errors.New("counter unavailable")
