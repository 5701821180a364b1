// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strconv"
	"time"
)

// Millis is an epoch-milliseconds timestamp.
//
// Stored documents written by older builds may carry the timestamp as an
// RFC3339 string instead of a number; UnmarshalJSON accepts both and leaves
// zero for anything unreadable so the reader can substitute current time.
// The same fallback runs on every read, which keeps display ordering stable.
type Millis int64

// Now returns the current wall-clock time as Millis.
func Now() Millis {
	return FromTime(time.Now())
}

// FromTime converts a time.Time to Millis.
func FromTime(t time.Time) Millis {
	return Millis(t.UnixMilli())
}

// Time converts the timestamp back to a time.Time.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

// IsZero reports whether the timestamp is unset.
func (m Millis) IsZero() bool {
	return m == 0
}

// Or returns m, or fallback when m is unset.
func (m Millis) Or(fallback Millis) Millis {
	if m.IsZero() {
		return fallback
	}
	return m
}

// MarshalJSON encodes the timestamp as a JSON number.
func (m Millis) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(m), 10), nil
}

// UnmarshalJSON decodes a numeric epoch-milliseconds value, falling back to
// an RFC3339 string and finally to zero for null or malformed input.
func (m *Millis) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*m = 0
		return nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*m = Millis(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*m = Millis(int64(f))
		return nil
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if t, err := time.Parse(time.RFC3339, s[1:len(s)-1]); err == nil {
			*m = FromTime(t)
			return nil
		}
	}

	// Malformed legacy value: leave unset, the reader substitutes current time.
	*m = 0
	return nil
}
