package encoder

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every ConfigurationError with errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a setup the hardware cannot run. It is fatal:
// the engine refuses to start.
type ConfigurationError struct {
	Reason string
	Err    error
}

// Configf builds a ConfigurationError.
func Configf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrConfiguration, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
