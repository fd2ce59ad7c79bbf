package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"

	"msgtree/internal/domain"
)

// cursorPattern matches "<uuid>$<timestamp>" in either hex case
var cursorPattern = regexp.MustCompile(`(?i)^([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\$(.+)$`)

// Cursor is a position in the (created_date, id) ordering.
// A cursor without an ID is a timestamp-only boundary.
type Cursor struct {
	ID   *uuid.UUID
	Time time.Time
}

// timestampLayouts are tried in order; layouts without an offset are read as UTC
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var ts time.Time
		if ts, err = time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, err
}

// ParseCursor parses "<uuid>$<ISO 8601 timestamp>" or a bare ISO 8601 timestamp.
// Timestamps without an offset are UTC. Anything else fails with an InvalidCursorError.
func ParseCursor(s string) (Cursor, error) {
	if m := cursorPattern.FindStringSubmatch(s); m != nil {
		id, err := uuid.Parse(m[1])
		if err != nil {
			return Cursor{}, &domain.InvalidCursorError{Value: s}
		}
		ts, err := parseTimestamp(m[2])
		if err != nil {
			return Cursor{}, &domain.InvalidCursorError{Value: s}
		}
		return Cursor{ID: &id, Time: ts}, nil
	}

	ts, err := parseTimestamp(s)
	if err != nil {
		return Cursor{}, &domain.InvalidCursorError{Value: s}
	}
	return Cursor{Time: ts}, nil
}

// String serializes the cursor; ParseCursor(c.String()) yields an equal cursor
func (c Cursor) String() string {
	ts := c.Time.UTC().Format(time.RFC3339Nano)
	if c.ID == nil {
		return ts
	}
	return c.ID.String() + "$" + ts
}

// TimestampOnly drops the id component
func (c Cursor) TimestampOnly() Cursor {
	return Cursor{Time: c.Time}
}
