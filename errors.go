package stagehand

import (
	"errors"
	"fmt"
)

// ErrConfiguration is returned for unknown command, node, controller,
// material, geometry, renderer or camera types, for malformed payloads, and
// for nil nodes where one is required.
var ErrConfiguration = errors.New("stagehand: configuration error")

// ErrUnsupportedFormat is returned when an asset format has no loader.
var ErrUnsupportedFormat = errors.New("stagehand: unsupported format")

// ErrUnknownControllerType is returned by Attach for unregistered types.
// Errors carrying it also match ErrConfiguration.
var ErrUnknownControllerType = errors.New("stagehand: unknown controller type")

// ErrNoSupportedRenderer is returned by setup when no candidate renderer
// reports support.
var ErrNoSupportedRenderer = errors.New("stagehand: no supported renderer")

// ErrLoadFailure matches every *LoadError.
var ErrLoadFailure = errors.New("stagehand: load failure")

// configErrorf wraps ErrConfiguration with a formatted detail.
func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// LoadError reports a failed asynchronous load of one asset.
type LoadError struct {
	Source string
	Format Format
	Err    error
}

func (e *LoadError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("load %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("load %s (%s): %v", e.Source, e.Format, e.Err)
}

// Unwrap exposes both ErrLoadFailure and the underlying cause.
func (e *LoadError) Unwrap() []error {
	return []error{ErrLoadFailure, e.Err}
}
