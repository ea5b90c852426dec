// Package earlog persists per-frame measurements to a CSV file and reads
// them back for reporting.
package earlog

import (
	"bufio"
	"encoding/csv"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/logger"
)

// TimeLayout is the local wall-clock timestamp format of the log.
const TimeLayout = "2006-01-02 15:04:05"

const earPrecision = 4

// Sample is one measured frame.
type Sample struct {
	Time   time.Time
	EAR    float64
	Status analyzer.Status
}

// Log is an append-only measurement log. Appends are serialized; readers
// tolerate a concurrently written partial final line.
type Log struct {
	mu        sync.Mutex
	path      string
	threshold float64
	now       func() time.Time
	log       logger.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithThreshold sets the threshold used to derive a status for rows that
// carry none.
func WithThreshold(threshold float64) Option {
	return func(l *Log) { l.threshold = threshold }
}

// WithClock overrides the clock used by Recent.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Log) { l.log = log }
}

// New returns a Log backed by path. The file is created on first append.
func New(path string, opts ...Option) *Log {
	l := &Log{
		path:      path,
		threshold: analyzer.DefaultThreshold,
		now:       time.Now,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the backing file.
func (l *Log) Path() string {
	return l.path
}

// Append writes one sample, creating the file with its header when missing
// or empty.
func (l *Log) Append(s Sample) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	errFactory := errors.New()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errFactory.Wrap(errors.ErrLogWrite, err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errFactory.Wrap(errors.ErrLogWrite, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errFactory.Wrap(errors.ErrLogWrite, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return errFactory.Wrap(errors.ErrLogWrite, err)
		}
	}

	record := []string{
		s.Time.Local().Format(TimeLayout),
		strconv.FormatFloat(s.EAR, 'f', earPrecision, 64),
		s.Status.String(),
	}
	if err := w.Write(record); err != nil {
		return errFactory.Wrap(errors.ErrLogWrite, err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errFactory.Wrap(errors.ErrLogWrite, err)
	}

	return nil
}

// ReadAll returns every complete row. A missing file yields no samples and
// no error. A file without timestamp or ear column yields no samples and a
// log_schema_error.
func (l *Log) ReadAll() ([]Sample, error) {
	errFactory := errors.New()

	f, err := os.Open(l.path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return []Sample{}, nil
		}
		return []Sample{}, errFactory.Wrap(errors.ErrLogRead, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return []Sample{}, nil
		}
		return []Sample{}, errFactory.Wrap(errors.ErrLogRead, err)
	}

	lay, err := resolveLayout(header)
	if err != nil {
		return []Sample{}, err
	}
	if lay.legacy {
		l.log.Debug().Str("path", l.path).Msg("Reading measurement log with legacy columns")
	}

	samples := []Sample{}
	skipped := 0
	for {
		record, err := r.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if stderrors.As(err, &parseErr) {
				skipped++
				continue
			}
			return samples, errFactory.Wrap(errors.ErrLogRead, err)
		}

		s, ok := l.parseRecord(lay, record)
		if !ok {
			skipped++
			continue
		}
		samples = append(samples, s)
	}

	if skipped > 0 {
		l.log.Debug().Int("skipped", skipped).Str("path", l.path).Msg("Skipped incomplete log rows")
	}

	return samples, nil
}

func (l *Log) parseRecord(lay layout, record []string) (Sample, bool) {
	if len(record) < lay.width {
		return Sample{}, false
	}

	ts, err := time.ParseInLocation(TimeLayout, record[lay.timestamp], time.Local)
	if err != nil {
		return Sample{}, false
	}

	ratio, err := strconv.ParseFloat(record[lay.ear], 64)
	if err != nil {
		return Sample{}, false
	}

	status := analyzer.Classify(ratio, l.threshold)
	if lay.status >= 0 {
		if parsed, ok := analyzer.ParseStatus(record[lay.status]); ok && parsed != analyzer.NotDetected {
			status = parsed
		}
	}

	return Sample{Time: ts, EAR: ratio, Status: status}, true
}

// Recent returns the samples no older than window, measured from now.
func (l *Log) Recent(window time.Duration) ([]Sample, error) {
	samples, err := l.ReadAll()
	if err != nil {
		return samples, err
	}

	cutoff := l.now().Add(-window)
	recent := []Sample{}
	for _, s := range samples {
		if !s.Time.Before(cutoff) {
			recent = append(recent, s)
		}
	}

	return recent, nil
}

// Tail returns at most the last n samples.
func (l *Log) Tail(n int) ([]Sample, error) {
	samples, err := l.ReadAll()
	if err != nil || n <= 0 {
		return []Sample{}, err
	}

	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}

	return samples, nil
}
