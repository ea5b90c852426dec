// Package camera provides frame capture with hardware abstraction.
// The real implementation uses OpenCV through gocv (build tag "gocv").
// The fake implementation allows testing without a camera.
package camera

import (
	"time"

	"codeberg.org/mutker/drowsyctl/internal/errors"
)

// Frame is a single captured image. Data holds the JPEG-encoded pixels.
// A Frame is never mutated after it leaves the camera.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
}

// Camera reads frames from an opened device.
type Camera interface {
	// Read returns the next frame. Errors are transient unless the
	// device has been closed.
	Read() (Frame, error)

	// Close releases the device.
	Close() error
}

// Opener acquires a camera by device index.
type Opener interface {
	Open(device int) (Camera, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(device int) (Camera, error)

func (f OpenerFunc) Open(device int) (Camera, error) {
	return f(device)
}

// Probe opens the device, reads one frame and releases it again.
// It reports whether the camera is usable before a capture session starts.
func Probe(opener Opener, device int) error {
	errFactory := errors.New()

	cam, err := opener.Open(device)
	if err != nil {
		return errFactory.Wrap(errors.ErrCameraUnavailable, err)
	}
	defer cam.Close()

	if _, err := cam.Read(); err != nil {
		return errFactory.Wrap(errors.ErrCameraUnavailable, err)
	}

	return nil
}
