package db

import (
	"database/sql/driver"
	"encoding/json"
)

// StringList is a list of tags stored as JSON text.
//
// Reads never fail: NULL, non-text, or malformed values decode to an empty
// list. A nil list is written as "[]".
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		*l = StringList{}
		return nil
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		*l = StringList{}
		return nil
	}
	*l = out
	return nil
}

// GormDataType keeps the column portable across mysql, postgres, and sqlite.
func (StringList) GormDataType() string { return "text" }

// OrEmpty returns l, or an empty non-nil list.
func (l StringList) OrEmpty() []string {
	if l == nil {
		return []string{}
	}
	return l
}
