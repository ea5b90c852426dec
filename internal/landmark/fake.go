package landmark

import (
	"context"
	"sync"

	"codeberg.org/mutker/drowsyctl/internal/camera"
	"codeberg.org/mutker/drowsyctl/internal/ear"
)

// Step is one scripted detection outcome.
type Step struct {
	Landmarks Landmarks
	Err       error
}

// Scripted is a Detector test double that replays steps in order and repeats
// the last one when exhausted.
type Scripted struct {
	mu    sync.Mutex
	steps []Step
	calls int
}

// NewScripted creates a detector that replays steps.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

func (s *Scripted) Detect(_ context.Context, _ camera.Frame) (Landmarks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.steps) == 0 {
		return Landmarks{}, nil
	}

	step := s.steps[min(s.calls, len(s.steps)-1)]
	s.calls++

	return step.Landmarks, step.Err
}

// Calls reports how many detections were requested.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// EyeWithRatio builds a symmetric eye contour whose aspect ratio is exactly r.
func EyeWithRatio(r float64) ear.EyePoints {
	const width, half = 100.0, 50.0
	lid := r * width / 2
	return ear.EyePoints{
		{X: 0, Y: half},
		{X: 30, Y: half - lid},
		{X: 70, Y: half - lid},
		{X: width, Y: half},
		{X: 70, Y: half + lid},
		{X: 30, Y: half + lid},
	}
}

// FaceWithRatio returns a detection step for a face whose eyes both have
// ratio r.
func FaceWithRatio(r float64) Step {
	left, right := EyeWithRatio(r), EyeWithRatio(r)
	return Step{Landmarks: Landmarks{Left: &left, Right: &right}}
}

// NoFace returns a detection step without a face.
func NoFace() Step {
	return Step{}
}
