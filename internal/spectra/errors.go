package spectra

import (
	"errors"
	"fmt"
)

// ErrValidation marks failures caused by inconsistent input data or
// configuration: mismatched wave axes, an empty prediction pool, a broken
// performance-estimation history or a malformed configuration. They are
// always fatal for the current iteration.
var ErrValidation = errors.New("validation error")

// Validationf formats a validation error that wraps ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
