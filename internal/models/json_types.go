package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is an order-preserving list of IDs stored as a JSON array column.
type StringList []string

// Value serializes the list to canonical JSON for storage.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(data), nil
}

// Scan deserializes a JSON array column back into the list.
func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported string list source type %T", src)
	}

	if len(data) == 0 {
		*l = nil
		return nil
	}

	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to unmarshal string list: %w", err)
	}
	*l = out
	return nil
}

// Contains reports whether the list holds the given value.
func (l StringList) Contains(value string) bool {
	for _, v := range l {
		if v == value {
			return true
		}
	}
	return false
}

// ScoreMap maps emotion or trait names to integer scores, stored as a JSON
// object column. Key order is not significant.
type ScoreMap map[string]int

// Value serializes the map to canonical JSON for storage.
func (m ScoreMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]int(m))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score map: %w", err)
	}
	return string(data), nil
}

// Scan deserializes a JSON object column back into the map.
func (m *ScoreMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported score map source type %T", src)
	}

	if len(data) == 0 {
		*m = nil
		return nil
	}

	out := make(map[string]int)
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to unmarshal score map: %w", err)
	}
	*m = out
	return nil
}
