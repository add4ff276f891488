package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp decodes the time formats the remote services emit: Firestore
// {"_seconds": n, "_nanoseconds": n} objects, RFC 3339 strings and epoch milliseconds.
type Timestamp struct {
	time.Time
}

type firestoreTimestamp struct {
	Seconds     int64 `json:"_seconds"`
	Nanoseconds int64 `json:"_nanoseconds"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	switch trimmed[0] {
	case '{':
		var fs firestoreTimestamp
		if err := json.Unmarshal(trimmed, &fs); err != nil {
			return fmt.Errorf("decode firestore timestamp: %w", err)
		}
		t.Time = time.Unix(fs.Seconds, fs.Nanoseconds).UTC()
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("decode timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	default:
		var ms int64
		if err := json.Unmarshal(trimmed, &ms); err != nil {
			return fmt.Errorf("decode epoch timestamp: %w", err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
}

// MarshalJSON renders the timestamp as RFC 3339, or null when zero.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Ptr returns the wrapped time, or nil when t is nil or zero.
func (t *Timestamp) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
