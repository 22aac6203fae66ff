package utils

import (
	"encoding/json"
	"time"
)

// ISOMillis is the wire format for all timestamps: ISO-8601 with
// millisecond precision in UTC (e.g., "2025-01-01T00:00:00.000Z").
const ISOMillis = "2006-01-02T15:04:05.000Z"

// ISOTime wraps time.Time to enable custom JSON marshaling/unmarshaling
// using the ISOMillis format. The zero value marshals as JSON null, which
// is how the live endpoints represent "no report ever received".
type ISOTime time.Time

// MarshalJSON serializes the ISOTime in ISOMillis format, or null when zero.
func (t ISOTime) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(time.Time(t).UTC().Format(ISOMillis))
}

// UnmarshalJSON parses an ISOMillis formatted string (or null) into an ISOTime.
func (t *ISOTime) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*t = ISOTime(time.Time{})
		return nil
	}
	parsed, err := time.Parse(ISOMillis, *s)
	if err != nil {
		return err
	}
	*t = ISOTime(parsed)
	return nil
}

// Time returns the underlying time.Time value of the ISOTime.
func (t ISOTime) Time() time.Time {
	return time.Time(t)
}
