//go:build !linux

package buzzer

import "codeberg.org/mutker/drowsyctl/internal/errors"

// OpenLine is not available on non-Linux platforms.
func OpenLine(_ string, _ int) (Line, error) {
	return nil, errors.New().WithMessage(errors.ErrUnavailable, "gpio: not supported on this platform (requires Linux)")
}
