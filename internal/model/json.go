package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON columns are stored as JSONB. Every blob type below round-trips
// through these two helpers.

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
}

func valueJSON(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}

func (m *JSONMap) Scan(src interface{}) error { return scanJSON(src, m) }

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return valueJSON(m)
}
