//go:build !gocv

package camera

import "codeberg.org/mutker/drowsyctl/internal/errors"

// NewDeviceOpener returns an opener that always fails. Build with the
// "gocv" tag to capture from local video devices.
func NewDeviceOpener() Opener {
	return OpenerFunc(func(int) (Camera, error) {
		return nil, errors.New().WithMessage(errors.ErrCameraUnavailable, "built without OpenCV support")
	})
}
