// AngelaMos | 2026
// dto.go

package tfg

import (
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/carterperez-dev/tfg-registry/internal/entity"
)

// KeywordList accepts either a JSON array of strings or one comma separated
// string.
type KeywordList []string

func (k *KeywordList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, kw := range list {
			if kw = strings.TrimSpace(kw); kw != "" {
				out = append(out, kw)
			}
		}
		*k = out
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return errors.New("keywords must be a list or a comma separated string")
	}
	*k = KeywordList(SplitKeywords(joined))
	return nil
}

// Year, degree and advisor take either an id or the label, e.g. "23/24".
type CreateRequest struct {
	Year     string      `json:"year"     validate:"required"`
	Degree   string      `json:"degree"   validate:"required"`
	Advisor  string      `json:"advisor"  validate:"required"`
	Student  string      `json:"student"  validate:"required,max=200"`
	Title    string      `json:"title"    validate:"required,max=500"`
	Keywords KeywordList `json:"keywords" validate:"required,min=1,dive,required,max=100"`
	Abstract string      `json:"abstract" validate:"required"`
}

type UpdateRequest struct {
	Year     *string     `json:"year"     validate:"omitempty,min=1"`
	Degree   *string     `json:"degree"   validate:"omitempty,min=1"`
	Advisor  *string     `json:"advisor"  validate:"omitempty,min=1"`
	Student  *string     `json:"student"  validate:"omitempty,min=1,max=200"`
	Title    *string     `json:"title"    validate:"omitempty,min=1,max=500"`
	Keywords KeywordList `json:"keywords" validate:"omitempty,min=1,dive,required,max=100"`
	Abstract *string     `json:"abstract" validate:"omitempty,min=1"`
}

// Full turns a complete body into an update touching every field.
func (c CreateRequest) Full() UpdateRequest {
	return UpdateRequest{
		Year:     &c.Year,
		Degree:   &c.Degree,
		Advisor:  &c.Advisor,
		Student:  &c.Student,
		Title:    &c.Title,
		Keywords: c.Keywords,
		Abstract: &c.Abstract,
	}
}

func (u UpdateRequest) refs() Refs {
	var refs Refs
	if u.Year != nil {
		refs.Year = entity.ParseRef(*u.Year)
	}
	if u.Degree != nil {
		refs.Degree = entity.ParseRef(*u.Degree)
	}
	if u.Advisor != nil {
		refs.Advisor = entity.ParseRef(*u.Advisor)
	}
	return refs
}

func (u UpdateRequest) apply(t *TFG) {
	if u.Student != nil {
		t.Student = strings.TrimSpace(*u.Student)
	}
	if u.Title != nil {
		t.Title = strings.TrimSpace(*u.Title)
	}
	if u.Keywords != nil {
		t.Keywords = Keywords(u.Keywords)
	}
	if u.Abstract != nil {
		t.Abstract = strings.TrimSpace(*u.Abstract)
	}
}

// SearchRequest is the body of the paginated listing endpoints.
type SearchRequest struct {
	Year     string `json:"year"`
	Degree   string `json:"degree"`
	Advisor  string `json:"advisor"`
	Search   string `json:"search"   validate:"max=200"`
	Verified *bool  `json:"verified"`
	PageSize int    `json:"pageSize" validate:"gte=0"`
}

func (r SearchRequest) filter() SearchFilter {
	return SearchFilter{
		Year:     r.Year,
		Degree:   r.Degree,
		Advisor:  r.Advisor,
		Verified: r.Verified,
		Search:   r.Search,
	}
}

type VerifyRequest struct {
	Verified *bool   `json:"verified"`
	Reason   *string `json:"reason" validate:"omitempty,max=1000"`
}

type Ref struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ListItem is the listing projection.
type ListItem struct {
	ID       string   `json:"id"`
	Year     Ref      `json:"year"`
	Degree   Ref      `json:"degree"`
	Advisor  Ref      `json:"advisor"`
	Student  string   `json:"student"`
	Title    string   `json:"title"`
	Keywords []string `json:"keywords"`
	Abstract string   `json:"abstract"`
}

type Response struct {
	ListItem
	Link          string    `json:"link"`
	Verified      bool      `json:"verified"`
	VerifiedBy    *string   `json:"verifiedBy,omitempty"`
	Reason        *string   `json:"reason,omitempty"`
	Views         int       `json:"views"`
	DownloadCount int       `json:"downloadCount"`
	CreatedBy     *string   `json:"createdBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type PageResponse struct {
	Items       []ListItem `json:"items"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	TotalItems  int        `json:"totalItems"`
}

func ToListItem(t *TFG) ListItem {
	keywords := []string(t.Keywords)
	if keywords == nil {
		keywords = []string{}
	}

	return ListItem{
		ID:       t.ID,
		Year:     Ref{ID: t.YearID, Label: t.Year},
		Degree:   Ref{ID: t.DegreeID, Label: t.Degree},
		Advisor:  Ref{ID: t.AdvisorID, Label: t.Advisor},
		Student:  t.Student,
		Title:    t.Title,
		Keywords: keywords,
		Abstract: t.Abstract,
	}
}

func ToResponse(t *TFG) Response {
	return Response{
		ListItem:      ToListItem(t),
		Link:          t.Link,
		Verified:      t.Verified,
		VerifiedBy:    t.VerifiedBy,
		Reason:        t.Reason,
		Views:         t.Views,
		DownloadCount: t.DownloadCount,
		CreatedBy:     t.CreatedBy,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func ToListItems(items []TFG) []ListItem {
	out := make([]ListItem, 0, len(items))
	for i := range items {
		out = append(out, ToListItem(&items[i]))
	}
	return out
}

func ToPageResponse(p *PageResult) PageResponse {
	return PageResponse{
		Items:       ToListItems(p.Items),
		TotalPages:  p.TotalPages,
		CurrentPage: p.CurrentPage,
		TotalItems:  p.TotalItems,
	}
}
