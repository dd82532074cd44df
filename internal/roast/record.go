// Package roast turns captured Kerberos AS-REQ pre-authentication material
// into offline-crackable hashes.
package roast

import (
	"strings"
	"time"
)

// FieldSeparator is the single-character separator the capture engine is
// told to emit between the projected kerberos fields. It cannot occur in
// hex cipher material and matches the $-delimited crack formats downstream.
const FieldSeparator = "$"

// Record is one observed AS-REQ pre-authentication exchange.
type Record struct {
	Username   string
	Realm      string
	Cipher     string
	ObservedAt time.Time
}

// Parse converts one raw engine fields line into a Record. A line qualifies
// only when it splits into exactly three segments; anything else is filter
// noise and yields no record. Segment content is not validated, even when a
// segment is empty: crackers reject unusable material themselves.
func Parse(line string) (*Record, bool) {
	parts := strings.Split(strings.TrimSpace(line), FieldSeparator)
	if len(parts) != 3 {
		return nil, false
	}
	return &Record{
		Username:   parts[0],
		Realm:      parts[1],
		Cipher:     parts[2],
		ObservedAt: time.Now(),
	}, true
}
