package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a point in time as emitted by the remote service. The service emits
// zone-less local date-times, which are read as UTC; RFC 3339 values keep their zone.
type Timestamp struct {
	time.Time
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an RFC 3339 or zone-less ISO date-time.
func ParseTimestamp(value string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return Timestamp{Time: t}, nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return Timestamp{Time: t}, nil
		}
	}

	return Timestamp{}, fmt.Errorf("unsupported timestamp format %q", value)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*t = Timestamp{}
		return nil
	}

	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed

	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// Day returns the UTC calendar day of the timestamp as YYYY-MM-DD.
func (t Timestamp) Day() string {
	return t.UTC().Format(time.DateOnly)
}
