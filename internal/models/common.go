// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONStrings stores a string list as a JSON array in a text column.
type JSONStrings []string

func (j JSONStrings) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(j))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONStrings) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONStrings", value)
	}
	return json.Unmarshal(raw, (*[]string)(j))
}

// Enums
type UserRole string

const (
	UserRoleCreator  UserRole = "creator"
	UserRoleConsumer UserRole = "consumer"
	UserRoleAdmin    UserRole = "admin"
)

type ContentBackend string

const (
	ContentBackendMemory ContentBackend = "memory"
	ContentBackendS3     ContentBackend = "s3"
	ContentBackendPinata ContentBackend = "pinata"
)
