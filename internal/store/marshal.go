package store

import (
	"database/sql"
	"time"
)

// encodeTime converts a timestamp to INTEGER microseconds since the Unix
// epoch for storage. Microseconds keep ordering stable while staying well
// inside int64.
func encodeTime(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

// decodeTime converts stored microseconds back to a UTC timestamp.
func decodeTime(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// decodeNullTime converts a nullable stored timestamp.
func decodeNullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := decodeTime(v.Int64)
	return &t
}

// encodeBool stores a bool as 0 or 1.
func encodeBool(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullable converts an optional value to a driver argument: nil stays a SQL
// NULL, anything else is passed through. Used with COALESCE for partial
// updates.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
