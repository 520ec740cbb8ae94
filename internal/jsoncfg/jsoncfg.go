// Package jsoncfg provides helpers for strict JSON configuration handling.
package jsoncfg

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration is a [time.Duration] that marshals to and from
// its [time.ParseDuration] string representation.
type Duration time.Duration

// Value returns the duration as a [time.Duration].
func (d Duration) Value() time.Duration {
	return time.Duration(d)
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	td, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("failed to parse duration: %w", err)
	}
	*d = Duration(td)
	return nil
}

// OpenAndDecodeDisallowUnknownFields opens the file at path and
// decodes its JSON content into v, rejecting unknown fields.
func OpenAndDecodeDisallowUnknownFields(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	d := json.NewDecoder(f)
	d.DisallowUnknownFields()
	if err = d.Decode(v); err != nil {
		return fmt.Errorf("failed to decode %q: %w", path, err)
	}
	return nil
}
