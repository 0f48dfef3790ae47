package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the backend bus date format (dd-mm-yyyy).
	DateLayout = "02-01-2006"
	// PickerDateLayout is the browser date input format.
	PickerDateLayout = "2006-01-02"
	// PickerDateTimeLayout is the browser datetime-local input format.
	PickerDateTimeLayout = "2006-01-02T15:04"
	// LocalDateTimeLayout is how booking dates are sent to the backend.
	LocalDateTimeLayout = "2006-01-02T15:04:05"
)

var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	LocalDateTimeLayout,
	PickerDateTimeLayout,
	time.RFC3339Nano,
}

// Date is a calendar day serialized as dd-mm-yyyy.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a dd-mm-yyyy value.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want dd-mm-yyyy", s)
	}
	return Date{t}, nil
}

// ParsePickerDate parses the yyyy-mm-dd value produced by a date picker.
func ParsePickerDate(s string) (Date, error) {
	t, err := time.Parse(PickerDateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want yyyy-mm-dd", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if string(b) == "null" {
			*d = Date{}
			return nil
		}
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		// tolerate ISO dates from older backend builds
		iso, isoErr := ParsePickerDate(s)
		if isoErr != nil {
			return err
		}
		parsed = iso
	}
	*d = parsed
	return nil
}

// LocalDateTime is a wall-clock date-time without zone, as the backend stores it.
type LocalDateTime struct {
	time.Time
}

func ParseLocalDateTime(s string) (LocalDateTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range localDateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return LocalDateTime{t}, nil
		}
	}
	return LocalDateTime{}, fmt.Errorf("invalid date-time %q", s)
}

func (t LocalDateTime) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(LocalDateTimeLayout)
}

func (t LocalDateTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

func (t *LocalDateTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = LocalDateTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*t = LocalDateTime{}
		return nil
	}
	parsed, err := ParseLocalDateTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
