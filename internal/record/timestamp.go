package record

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// firestoreTimestamp is how exported documents carry server timestamps.
type firestoreTimestamp struct {
	Seconds      *int64 `json:"seconds"`
	Nanoseconds  int64  `json:"nanoseconds"`
	USeconds     *int64 `json:"_seconds"`
	UNanoseconds int64  `json:"_nanoseconds"`
}

// parseTimestamp accepts RFC 3339 strings, Firestore timestamp objects and
// Unix numbers (seconds, or milliseconds when too large for seconds).
// Anything unreadable yields the zero time.
func parseTimestamp(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return time.Time{}
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
		return t.UTC()
	case '{':
		var ts firestoreTimestamp
		if err := json.Unmarshal(raw, &ts); err != nil {
			return time.Time{}
		}
		if ts.Seconds != nil {
			return time.Unix(*ts.Seconds, ts.Nanoseconds).UTC()
		}
		if ts.USeconds != nil {
			return time.Unix(*ts.USeconds, ts.UNanoseconds).UTC()
		}
		return time.Time{}
	default:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return time.Time{}
		}
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
}
