//go:build linux

package buzzer

import (
	"codeberg.org/mutker/drowsyctl/internal/errors"
	"github.com/warthog618/go-gpiocdev"
)

type cdevLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// OpenLine requests offset on chip as an output, initially low.
func OpenLine(chipName string, offset int) (Line, error) {
	errFactory := errors.New()

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}

	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, errFactory.WithData(errors.ErrInitFailed, struct {
			Chip   string
			Offset int
			Error  string
		}{chipName, offset, err.Error()})
	}

	return &cdevLine{chip: chip, line: line}, nil
}

func (l *cdevLine) SetValue(value int) error {
	return l.line.SetValue(value)
}

// Close returns the line to an input so the pin floats after exit.
func (l *cdevLine) Close() error {
	var firstErr error
	if err := l.line.Reconfigure(gpiocdev.AsInput); err != nil {
		firstErr = err
	}
	if err := l.line.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := l.chip.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
