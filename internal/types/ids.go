package types

import (
	"time"

	"github.com/google/uuid"
)

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewConfigID generates a UUIDv7 config identifier.
func NewConfigID() ConfigID {
	return ConfigID(uuid.Must(uuid.NewV7()).String())
}

// NewConfigItemID generates a UUIDv7 config item identifier.
func NewConfigItemID() ConfigItemID {
	return ConfigItemID(uuid.Must(uuid.NewV7()).String())
}

// NewLogEntryID generates a UUIDv7 audit entry identifier.
func NewLogEntryID() LogEntryID {
	return LogEntryID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// ParseConfigID validates and converts a string to ConfigID.
func ParseConfigID(s string) (ConfigID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return ConfigID(s), nil
}

// LogEntryTime extracts the timestamp embedded in a UUIDv7 log entry ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func LogEntryTime(id LogEntryID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
