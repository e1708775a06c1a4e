// AngelaMos | 2026
// entity.go

package reference

import (
	"time"
)

// Reference is a controlled-vocabulary row: an academic year, a degree or an
// advisor. The three share one shape and differ only by table and label
// column.
type Reference struct {
	ID        string     `db:"id"         json:"id"`
	Label     string     `db:"label"      json:"label"  validate:"required,max=200"`
	Active    bool       `db:"active"     json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"-"`
	UpdatedAt time.Time  `db:"updated_at" json:"-"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

func (r Reference) GetID() string {
	return r.ID
}

func (r *Reference) IsDeleted() bool {
	return r.DeletedAt != nil
}
