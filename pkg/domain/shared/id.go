package shared

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies a domain entity. It wraps uuid.UUID so entities never
// expose the raw uuid type in their APIs.
type ID struct {
	value uuid.UUID
}

// NewID creates a new random ID.
func NewID() ID {
	return ID{value: uuid.New()}
}

// ParseID parses an ID from its string form.
func ParseID(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid id format: %w", err)
	}
	return ID{value: parsed}, nil
}

// MustParseID parses an ID from a string, panicking on error. Intended
// for tests and static initializers only.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// FromUUID creates an ID from a uuid.UUID.
func FromUUID(u uuid.UUID) ID {
	return ID{value: u}
}

// String returns the canonical string form.
func (id ID) String() string {
	return id.value.String()
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.value == uuid.Nil
}

// Equals reports whether two IDs are the same.
func (id ID) Equals(other ID) bool {
	return id.value == other.value
}

// Value implements driver.Valuer for database serialization.
func (id ID) Value() (driver.Value, error) {
	return id.value.String(), nil
}

// Scan implements sql.Scanner for database deserialization.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		id.value = parsed
	case []byte:
		parsed, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		id.value = parsed
	default:
		return fmt.Errorf("cannot scan type %T into ID", src)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid id format")
	}
	parsed, err := uuid.Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	id.value = parsed
	return nil
}
