package base

import (
	jsonpool "github.com/vizydrop/gallery/pkg/json"
)

// MultiList is a multi-select filter field. The host sends either a JSON
// array or a comma-separated string.
type MultiList []string

// UnmarshalJSON accepts both shapes.
func (m *MultiList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := jsonpool.Unmarshal(data, &list); err == nil {
		*m = list
		return nil
	}
	var s string
	if err := jsonpool.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*m = nil
		return nil
	}
	*m = splitCSV(s)
	return nil
}

// Contains reports whether the list names the value; an empty list
// matches everything.
func (m MultiList) Contains(value string) bool {
	if len(m) == 0 {
		return true
	}
	for _, v := range m {
		if v == value {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// DateRange is a date filter field. The host sends either a bare date
// string (treated as the lower bound) or a {"_min","_max"} object.
type DateRange struct {
	Min string `json:"_min,omitempty"`
	Max string `json:"_max,omitempty"`
}

// UnmarshalJSON accepts both shapes.
func (d *DateRange) UnmarshalJSON(data []byte) error {
	var s string
	if err := jsonpool.Unmarshal(data, &s); err == nil {
		d.Min = s
		return nil
	}
	type alias DateRange
	var a alias
	if err := jsonpool.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = DateRange(a)
	return nil
}
