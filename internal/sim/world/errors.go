package world

import (
	"errors"
	"fmt"
)

var (
	ErrNoZoneTypes     = errors.New("zone catalog is empty")
	ErrCatalogTooLarge = errors.New("zone catalog larger than grid")
	ErrGridTooSmall    = errors.New("grid too small for mandatory content")
	ErrInvalidParams   = errors.New("invalid generation parameters")
)

// ConfigError is a fatal generation error. Retrying with the same inputs
// cannot succeed.
type ConfigError struct {
	Phase string
	Zone  string // empty when not zone specific
	Tier  int    // mandatory placement tier, 0 otherwise
	Err   error
}

func (e *ConfigError) Error() string {
	msg := e.Phase
	if e.Zone != "" {
		msg += " zone=" + e.Zone
	}
	if e.Tier > 0 {
		msg += fmt.Sprintf(" tier=%d", e.Tier)
	}
	return msg + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(phase string, err error, format string, args ...any) *ConfigError {
	return &ConfigError{Phase: phase, Err: fmt.Errorf("%w: "+format, append([]any{err}, args...)...)}
}
