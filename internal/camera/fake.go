package camera

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("camera: closed")

// FakeCamera is a test double that returns scripted frames.
type FakeCamera struct {
	mu sync.Mutex

	// Frames contains scripted frames. Each call to Read consumes the next
	// one; once exhausted the last frame is repeated.
	Frames []Frame

	// Errors, if non-nil at the current read index, is returned instead of
	// the frame for that read.
	Errors []error

	// Block, if set, makes Read wait until the channel is closed.
	Block chan struct{}

	index  int
	seq    uint64
	closes int
}

// NewFakeCamera creates a FakeCamera with the given frames.
func NewFakeCamera(frames ...Frame) *FakeCamera {
	return &FakeCamera{Frames: frames}
}

// Read returns the next scripted frame with a fresh sequence number.
func (f *FakeCamera) Read() (Frame, error) {
	if f.Block != nil {
		<-f.Block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closes > 0 {
		return Frame{}, ErrClosed
	}

	i := f.index
	f.index++

	if i < len(f.Errors) && f.Errors[i] != nil {
		return Frame{}, f.Errors[i]
	}

	if len(f.Frames) == 0 {
		return Frame{}, errors.New("camera: no frames configured")
	}

	frame := f.Frames[min(i, len(f.Frames)-1)]
	f.seq++
	frame.Seq = f.seq
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	return frame, nil
}

// Close marks the camera as released.
func (f *FakeCamera) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// Closes reports how many times Close was called.
func (f *FakeCamera) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// Reads reports how many times Read was called.
func (f *FakeCamera) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index
}

// FakeOpener hands out scripted cameras and records acquisitions.
type FakeOpener struct {
	mu sync.Mutex

	// Cameras are returned in order; the last one is reused.
	Cameras []*FakeCamera

	// OpenError, if set, is returned by Open.
	OpenError error

	opens   int
	devices []int
}

// Open returns the next scripted camera.
func (o *FakeOpener) Open(device int) (Camera, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.devices = append(o.devices, device)
	if o.OpenError != nil {
		return nil, o.OpenError
	}
	if len(o.Cameras) == 0 {
		return nil, errors.New("camera: no cameras configured")
	}

	cam := o.Cameras[min(o.opens, len(o.Cameras)-1)]
	o.opens++

	return cam, nil
}

// Opens reports how many cameras were acquired.
func (o *FakeOpener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// Devices returns the device indexes passed to Open.
func (o *FakeOpener) Devices() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.devices...)
}
