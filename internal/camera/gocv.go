//go:build gocv

package camera

import (
	"time"

	"codeberg.org/mutker/drowsyctl/internal/errors"
	"gocv.io/x/gocv"
)

const (
	captureWidth  = 640
	captureHeight = 480
)

// DeviceOpener opens local video devices through OpenCV.
type DeviceOpener struct{}

// NewDeviceOpener returns the OpenCV-backed opener.
func NewDeviceOpener() Opener {
	return DeviceOpener{}
}

func (DeviceOpener) Open(device int) (Camera, error) {
	errFactory := errors.New()

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrCameraUnavailable, err)
	}

	if !capture.IsOpened() {
		capture.Close()
		return nil, errFactory.WithData(errors.ErrCameraUnavailable, struct {
			Device int
		}{device})
	}

	capture.Set(gocv.VideoCaptureFrameWidth, captureWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, captureHeight)

	c := &deviceCamera{
		device:  device,
		capture: capture,
		img:     gocv.NewMat(),
	}
	c.gate = newReadGate(c.free)

	return c, nil
}

// deviceCamera is read by a single capture worker. Close may be called from
// another goroutine while a read is blocked in the driver.
type deviceCamera struct {
	gate    *readGate
	device  int
	capture *gocv.VideoCapture
	img     gocv.Mat
	seq     uint64
}

func (c *deviceCamera) Read() (Frame, error) {
	errFactory := errors.New()

	if !c.gate.enter() {
		return Frame{}, errFactory.WithMessage(errors.ErrFrameRead, "camera closed")
	}

	frame, err := c.read()
	if !c.gate.leave() {
		return Frame{}, errFactory.WithMessage(errors.ErrFrameRead, "camera closed")
	}

	return frame, err
}

func (c *deviceCamera) read() (Frame, error) {
	errFactory := errors.New()

	if ok := c.capture.Read(&c.img); !ok || c.img.Empty() {
		return Frame{}, errFactory.WithData(errors.ErrFrameRead, struct {
			Device int
		}{c.device})
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.img)
	if err != nil {
		return Frame{}, errFactory.Wrap(errors.ErrFrameRead, err)
	}
	defer buf.Close()

	c.seq++

	return Frame{
		Seq:       c.seq,
		Timestamp: time.Now(),
		Width:     c.img.Cols(),
		Height:    c.img.Rows(),
		Data:      append([]byte(nil), buf.GetBytes()...),
	}, nil
}

// Close returns without waiting for a blocked read; the device is then freed
// when that read returns.
func (c *deviceCamera) Close() error {
	return c.gate.close()
}

func (c *deviceCamera) free() error {
	c.img.Close()
	return c.capture.Close()
}
