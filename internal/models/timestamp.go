package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layouts of timestamp columns without a zone, read as UTC
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// timestamp decodes store timestamps from both timestamptz and plain
// timestamp columns
type timestamp time.Time

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = timestamp(parsed)
	return nil
}

func (t *timestamp) timePtr() *time.Time {
	if t == nil {
		return nil
	}
	v := time.Time(*t)
	return &v
}

// ParseTimestamp parses an RFC 3339 timestamp, or one without a zone which
// is taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range zonelessLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing time %q: not an RFC 3339 or zoneless timestamp", s)
}
