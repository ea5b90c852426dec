// Package capture runs the camera acquisition loop on a background worker
// and distributes per-frame results and alerts to subscribers.
package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/alert"
	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/camera"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/logger"
	"github.com/google/uuid"
)

const (
	DefaultInterval    = 100 * time.Millisecond
	DefaultReadBackoff = 100 * time.Millisecond
	DefaultStopTimeout = time.Second

	hookBuffer = 64
)

// Config tunes the worker.
type Config struct {
	Device      int
	Interval    time.Duration
	ReadBackoff time.Duration
	StopTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ReadBackoff <= 0 {
		c.ReadBackoff = DefaultReadBackoff
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock overrides the clock used to timestamp frames and alerts.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Loop) { l.log = log }
}

type session struct {
	id       string
	cam      camera.Camera
	cancel   context.CancelFunc
	done     chan struct{}
	running  atomic.Bool
	stopping atomic.Bool
	release  func()
}

// Loop owns the camera while a session runs. Start and Stop are serialized;
// the worker only ever touches the camera of its own session.
type Loop struct {
	cfg      Config
	opener   camera.Opener
	analyzer *analyzer.Analyzer
	policy   *alert.Policy
	sink     Sink
	now      func() time.Time
	log      logger.Logger

	mu      sync.Mutex
	current atomic.Pointer[session]

	results   *hub[Result]
	alerts    *hub[Alert]
	logErrors *hub[error]
	sessions  *hub[SessionEvent]
	hooks     sync.WaitGroup

	frames     atomic.Uint64
	measured   atomic.Uint64
	fired      atomic.Uint64
	readErrors atomic.Uint64
	writeFails atomic.Uint64
}

// New creates an idle Loop.
func New(cfg Config, opener camera.Opener, a *analyzer.Analyzer, policy *alert.Policy, sink Sink, opts ...Option) *Loop {
	cfg.setDefaults()

	l := &Loop{
		cfg:       cfg,
		opener:    opener,
		analyzer:  a,
		policy:    policy,
		sink:      sink,
		now:       time.Now,
		log:       logger.Nop(),
		results:   newHub[Result](),
		alerts:    newHub[Alert](),
		logErrors: newHub[error](),
		sessions:  newHub[SessionEvent](),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Start acquires the camera and launches the worker. Starting a running
// loop is a no-op. If the camera cannot be opened the loop stays idle and a
// camera_unavailable error is returned.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sess := l.current.Load(); sess != nil {
		if sess.running.Load() {
			return nil
		}
		// worker exited on its own; finish the bookkeeping before reopening
		l.finish(sess)
	}

	cam, err := l.opener.Open(l.cfg.Device)
	if err != nil {
		if errors.HasCode(err, errors.ErrCameraUnavailable) {
			return err
		}
		return errors.New().Wrap(errors.ErrCameraUnavailable, err)
	}

	l.policy.Reset()

	workerCtx, cancel := context.WithCancel(ctx)
	sess := &session{
		id:     uuid.NewString(),
		cam:    cam,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	var once sync.Once
	sess.release = func() {
		once.Do(func() {
			if err := cam.Close(); err != nil {
				l.log.Warn().Err(err).Str("session", sess.id).Msg("Failed to release camera")
			}
		})
	}
	sess.running.Store(true)
	l.current.Store(sess)

	l.log.Info().Str("session", sess.id).Int("device", l.cfg.Device).Msg("Capture started")
	l.sessions.publish(SessionEvent{Kind: SessionStarted, SessionID: sess.id, Device: l.cfg.Device, Time: l.now()})

	go l.run(workerCtx, sess)

	return nil
}

// Stop signals the worker, waits up to the stop timeout for it to exit and
// releases the camera either way. Stopping an idle loop is a no-op. A worker
// that outlives the timeout yields an operation_timeout error.
func (l *Loop) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.current.Load()
	if sess == nil {
		return nil
	}

	sess.stopping.Store(true)
	sess.running.Store(false)
	sess.cancel()

	var err error
	select {
	case <-sess.done:
	case <-time.After(l.cfg.StopTimeout):
		err = errors.New().WithData(errors.ErrTimeout, struct {
			Phase   string
			Session string
		}{"stop", sess.id})
		l.log.Warn().Str("session", sess.id).Dur("timeout", l.cfg.StopTimeout).Msg("Capture worker did not exit in time")
	}

	l.finish(sess)

	return err
}

// finish releases the session camera and clears it. Callers hold l.mu.
func (l *Loop) finish(sess *session) {
	sess.release()
	l.current.Store(nil)

	l.log.Info().Str("session", sess.id).Msg("Capture stopped")
	l.sessions.publish(SessionEvent{Kind: SessionStopped, SessionID: sess.id, Device: l.cfg.Device, Time: l.now()})
}

// Close stops the loop, closes every subscription and waits for hooks to
// drain.
func (l *Loop) Close() error {
	err := l.Stop()

	l.results.close()
	l.alerts.close()
	l.logErrors.close()
	l.sessions.close()
	l.hooks.Wait()

	return err
}

// State reports the lifecycle state.
func (l *Loop) State() State {
	sess := l.current.Load()
	switch {
	case sess == nil:
		return Idle
	case sess.stopping.Load():
		return Stopping
	case sess.running.Load():
		return Running
	default:
		return Idle
	}
}

// Running reports whether a worker is active.
func (l *Loop) Running() bool {
	return l.State() == Running
}

// SessionID returns the id of the current session, or "" when idle.
func (l *Loop) SessionID() string {
	if sess := l.current.Load(); sess != nil {
		return sess.id
	}
	return ""
}

// ResetPolicy clears the drowsy run and cooldown, for example after the
// monitored person changes.
func (l *Loop) ResetPolicy() {
	l.policy.Reset()
}

// Stats returns cumulative counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Frames:     l.frames.Load(),
		Measured:   l.measured.Load(),
		Alerts:     l.fired.Load(),
		ReadErrors: l.readErrors.Load(),
		LogErrors:  l.writeFails.Load(),
		Dropped:    l.results.dropped.Load() + l.alerts.dropped.Load() + l.sessions.dropped.Load(),
	}
}

// Subscribe returns a channel of per-frame results. Results are dropped for
// a subscriber whose buffer is full.
func (l *Loop) Subscribe(buffer int) (<-chan Result, func()) {
	return l.results.subscribe(buffer)
}

// SubscribeAlerts returns a channel of alerts.
func (l *Loop) SubscribeAlerts(buffer int) (<-chan Alert, func()) {
	return l.alerts.subscribe(buffer)
}

// OnResult runs fn for every result on a dedicated goroutine.
func (l *Loop) OnResult(fn func(Result)) func() {
	return attach(l, l.results, fn)
}

// OnAlert runs fn for every alert on a dedicated goroutine.
func (l *Loop) OnAlert(fn func(Alert)) func() {
	return attach(l, l.alerts, fn)
}

// OnLogError runs fn for every failed log append.
func (l *Loop) OnLogError(fn func(error)) func() {
	return attach(l, l.logErrors, fn)
}

// OnSession runs fn for session start and stop events.
func (l *Loop) OnSession(fn func(SessionEvent)) func() {
	return attach(l, l.sessions, fn)
}

func attach[T any](l *Loop, h *hub[T], fn func(T)) func() {
	ch, cancel := h.subscribe(hookBuffer)

	l.hooks.Add(1)
	go func() {
		defer l.hooks.Done()
		for v := range ch {
			fn(v)
		}
	}()

	return cancel
}

func (l *Loop) run(ctx context.Context, sess *session) {
	defer close(sess.done)
	defer sess.release()
	defer sess.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Str("session", sess.id).Msg("Capture worker crashed")
		}
	}()

	for sess.running.Load() {
		started := time.Now()

		frame, err := sess.cam.Read()
		if err != nil {
			if !sess.running.Load() {
				return
			}
			l.readErrors.Add(1)
			if errors.Recoverable(err) {
				l.log.Debug().Err(err).Str("session", sess.id).Msg("Frame read failed")
			} else {
				l.log.Warn().Err(err).Str("session", sess.id).Msg("Camera read failed, retrying")
			}
			if !sleep(ctx, l.cfg.ReadBackoff) {
				return
			}
			continue
		}

		l.process(ctx, sess, frame)

		if !sleep(ctx, l.cfg.Interval-time.Since(started)) {
			return
		}
	}
}

func (l *Loop) process(ctx context.Context, sess *session, frame camera.Frame) {
	res := l.analyzer.Analyze(ctx, frame)
	if !sess.running.Load() {
		return
	}

	ts := l.now()
	l.frames.Add(1)

	if res.Measured() {
		l.measured.Add(1)

		if err := l.sink.Append(earlog.Sample{Time: ts, EAR: res.EAR, Status: res.Status}); err != nil {
			l.writeFails.Add(1)
			if appErr, ok := err.(errors.Error); ok {
				l.log.ErrorWithCode(appErr).Str("session", sess.id).Msg("Failed to append measurement")
			} else {
				l.log.Error().Err(err).Str("session", sess.id).Msg("Failed to append measurement")
			}
			l.logErrors.publish(err)
		}
	}

	if ev, ok := l.policy.Observe(res.Status, ts); ok {
		l.fired.Add(1)
		l.log.Warn().
			Str("session", sess.id).
			Float64("ear", res.EAR).
			Int("consecutive", ev.Consecutive).
			Msg("Drowsiness alert")
		l.alerts.publish(Alert{
			SessionID:   sess.id,
			Time:        ev.Time,
			EAR:         res.EAR,
			Consecutive: ev.Consecutive,
		})
	}

	l.results.publish(Result{
		Result:    res,
		SessionID: sess.id,
		Time:      ts,
		Frame:     frame,
	})
}

// sleep waits for d or until ctx is done. It reports whether the caller
// should continue.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
