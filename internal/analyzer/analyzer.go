// Package analyzer turns a camera frame into an eye measurement and status.
package analyzer

import (
	"context"

	"codeberg.org/mutker/drowsyctl/internal/camera"
	"codeberg.org/mutker/drowsyctl/internal/ear"
	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/landmark"
	"codeberg.org/mutker/drowsyctl/internal/logger"
)

// DefaultThreshold is the EAR at or below which an eye counts as closed.
const DefaultThreshold = 0.21

// Result is the analysis of one frame. EAR is meaningful only when Status
// is not NotDetected.
type Result struct {
	Left   *ear.EyePoints
	Right  *ear.EyePoints
	EAR    float64
	Status Status
}

// Measured reports whether the frame produced an EAR.
func (r Result) Measured() bool {
	return r.Status != NotDetected
}

// Analyzer runs landmark detection and classifies the result.
type Analyzer struct {
	detector  landmark.Detector
	threshold float64
	log       logger.Logger
}

// New creates an Analyzer. A nil log discards output.
func New(detector landmark.Detector, threshold float64, log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{detector: detector, threshold: threshold, log: log}
}

// Threshold returns the configured EAR threshold.
func (a *Analyzer) Threshold() float64 {
	return a.threshold
}

// Analyze measures the frame. Missing faces, missing eyes and detector
// errors all yield NotDetected; detection never fails the caller.
func (a *Analyzer) Analyze(ctx context.Context, frame camera.Frame) Result {
	marks, err := a.detector.Detect(ctx, frame)
	if err != nil {
		if appErr, ok := err.(errors.Error); ok {
			a.log.ErrorWithCode(appErr).Uint64("seq", frame.Seq).Msg("Landmark detection failed")
		} else {
			a.log.Debug().Err(err).Uint64("seq", frame.Seq).Msg("Landmark detection failed")
		}
		return Result{Status: NotDetected}
	}

	res := Result{Left: marks.Left, Right: marks.Right}
	if !marks.Complete() {
		res.Status = NotDetected
		return res
	}

	res.EAR = ear.Mean(*marks.Left, *marks.Right)
	res.Status = Classify(res.EAR, a.threshold)

	return res
}
