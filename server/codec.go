package server

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/emersion/go-ical"
)

// Codec is the opaque calendar object codec consumed by PUT. The only
// contract is determinism: the same object must serialize identically
// every time, so derived etags stay stable.
type Codec struct {
	Parse  func(data []byte) (*ical.Calendar, error)
	Format func(cal *ical.Calendar) ([]byte, error)
}

// DefaultCodec parses and re-serializes iCalendar data with go-ical.
func DefaultCodec() Codec {
	return Codec{
		Parse: func(data []byte) (*ical.Calendar, error) {
			cal, err := ical.NewDecoder(strings.NewReader(string(data))).Decode()
			if err != nil {
				return nil, fmt.Errorf("decode icalendar: %w", err)
			}
			return cal, nil
		},
		Format: func(cal *ical.Calendar) ([]byte, error) {
			var buf bytes.Buffer
			if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
				return nil, fmt.Errorf("encode icalendar: %w", err)
			}
			return buf.Bytes(), nil
		},
	}
}
