package buzzer

import (
	"errors"
	"sync"
)

// FakeLine is a test double that records the values written to it.
type FakeLine struct {
	mu     sync.Mutex
	values []int
	closed bool

	// SetError, if set, will be returned by SetValue.
	SetError error
}

func (f *FakeLine) SetValue(value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errors.New("line closed")
	}
	if f.SetError != nil {
		return f.SetError
	}
	f.values = append(f.values, value)
	return nil
}

func (f *FakeLine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Values returns the values written so far.
func (f *FakeLine) Values() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.values...)
}

// Value returns the last value written, or 0.
func (f *FakeLine) Value() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		return 0
	}
	return f.values[len(f.values)-1]
}

// Closed reports whether Close was called.
func (f *FakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
