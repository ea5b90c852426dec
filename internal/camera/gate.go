package camera

import "sync"

// readGate lets Close return while a blocking device read is in flight.
// The device is freed by whichever of Close and the pending read finishes
// last, so the reader never touches freed memory and Close never waits on
// the driver.
type readGate struct {
	mu      sync.Mutex
	reading bool
	closed  bool
	freed   bool
	free    func() error
}

func newReadGate(free func() error) *readGate {
	return &readGate{free: free}
}

// enter marks a read as started. It reports false once the gate is closed.
func (g *readGate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}
	g.reading = true
	return true
}

// leave marks the read as finished. It reports false when the gate was closed
// during the read, in which case the device has now been freed and the read
// result must be discarded.
func (g *readGate) leave() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.reading = false
	if g.closed {
		_ = g.release()
		return false
	}
	return true
}

// close marks the gate closed and frees the device unless a read holds it.
func (g *readGate) close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	if g.reading {
		return nil
	}
	return g.release()
}

// release runs free once. Callers hold g.mu.
func (g *readGate) release() error {
	if g.freed {
		return nil
	}
	g.freed = true
	return g.free()
}
