package logic

import (
	"errors"

	"github.com/statstack/predictions-api/internal/features"
)

var (
	ErrNotFound        = errors.New("game not found")
	ErrAlreadyDecided  = errors.New("game is already completed")
	ErrNoModel         = errors.New("no trained model available")
	ErrVersionNotFound = errors.New("model version not found")
)

// IsClientError reports whether err is a business-rule failure whose message
// is safe to show to callers.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyDecided) ||
		errors.Is(err, ErrNoModel) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, features.ErrInsufficientData)
}
