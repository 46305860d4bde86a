package fees

import (
	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

// Marker errors. Wrapped errors are classified with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

func validationError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func invalidStateError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidState)
}

func notFoundError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// translate maps persistence errors onto the marker taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Mark(errors.Wrapf(err, "%s not found", what), ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Mark(errors.Wrapf(err, "%s already exists", what), ErrConcurrencyConflict)
	default:
		return errors.Wrapf(err, "%s", what)
	}
}

// IsValidation reports whether err carries the validation marker.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err carries the not found marker.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidState reports whether err carries the invalid state marker.
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

// IsConcurrencyConflict reports whether err carries the conflict marker.
func IsConcurrencyConflict(err error) bool { return errors.Is(err, ErrConcurrencyConflict) }
