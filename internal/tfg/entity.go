// AngelaMos | 2026
// entity.go

package tfg

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// NoLink marks a thesis without an uploaded file.
const NoLink = "undefined"

type TFG struct {
	ID            string     `db:"id"`
	YearID        string     `db:"year_id"        validate:"required,uuid"`
	DegreeID      string     `db:"degree_id"      validate:"required,uuid"`
	AdvisorID     string     `db:"advisor_id"     validate:"required,uuid"`
	Year          string     `db:"year"`
	Degree        string     `db:"degree"`
	Advisor       string     `db:"advisor"`
	Student       string     `db:"student"        validate:"required,max=200"`
	Title         string     `db:"title"          validate:"required,max=500"`
	Keywords      Keywords   `db:"keywords"       validate:"min=1,dive,required,max=100"`
	Link          string     `db:"link"`
	Abstract      string     `db:"abstract"       validate:"required"`
	Verified      bool       `db:"verified"`
	VerifiedBy    *string    `db:"verified_by"`
	Reason        *string    `db:"reason"`
	Views         int        `db:"views"`
	DownloadCount int        `db:"download_count"`
	CreatedBy     *string    `db:"created_by"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

func (t TFG) GetID() string {
	return t.ID
}

func (t *TFG) HasFile() bool {
	return t.Link != "" && t.Link != NoLink
}

func (t *TFG) IsDeleted() bool {
	return t.DeletedAt != nil
}

// Keywords is stored as a JSONB array.
type Keywords []string

func (k Keywords) Value() (driver.Value, error) {
	if k == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(k))
}

func (k *Keywords) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*k = Keywords{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan keywords: unsupported type %T", src)
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan keywords: %w", err)
	}
	*k = out
	return nil
}

// SplitKeywords turns "a, b ,c" into [a b c], dropping empty entries.
func SplitKeywords(s string) Keywords {
	parts := strings.Split(s, ",")
	out := make(Keywords, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Filter narrows listings. Empty ids and a nil Verified match everything.
type Filter struct {
	YearID    string
	DegreeID  string
	AdvisorID string
	Verified  *bool
	Search    string
}

// Name is the short projection served by GET /tfgs/names.
type Name struct {
	ID    string `db:"id"    json:"id"`
	Title string `db:"title" json:"title"`
}

type Stats struct {
	Total      int `db:"total"      json:"total"`
	Verified   int `db:"verified"   json:"verified"`
	Unverified int `db:"unverified" json:"unverified"`
	WithFile   int `db:"with_file"  json:"with_file"`
	Deleted    int `db:"deleted"    json:"deleted"`
	Views      int `db:"views"      json:"views"`
	Downloads  int `db:"downloads"  json:"downloads"`
}
