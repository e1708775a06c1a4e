// AngelaMos | 2026
// dto.go

package reference

import (
	"strings"

	"github.com/goccy/go-json"
)

// Bodies carry the label under the kind's own key, {"year": "23/24"} or
// {"advisor": "Jane Doe"}. "label" is accepted for all kinds.
type CreateRequest struct {
	Label  string `json:"-" validate:"required,max=200"`
	Active *bool  `json:"active,omitempty"`
}

type UpdateRequest struct {
	Label  *string `json:"-" validate:"omitempty,min=1,max=200"`
	Active *bool   `json:"active,omitempty"`
}

type rawRequest map[string]json.RawMessage

func (raw rawRequest) label(key string) (*string, error) {
	for _, k := range []string{key, "label"} {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		return &s, nil
	}
	return nil, nil
}

func (raw rawRequest) active() (*bool, error) {
	v, ok := raw["active"]
	if !ok {
		return nil, nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func ToResponse(key string, r *Reference) map[string]any {
	return map[string]any{
		"id":     r.ID,
		key:      r.Label,
		"active": r.Active,
	}
}

func ToResponseList(key string, items []Reference) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		out = append(out, ToResponse(key, &items[i]))
	}
	return out
}
