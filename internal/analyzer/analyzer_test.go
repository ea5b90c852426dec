package analyzer_test

import (
	"context"
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/camera"
	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/landmark"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func analyze(steps ...landmark.Step) analyzer.Result {
	a := analyzer.New(landmark.NewScripted(steps...), analyzer.DefaultThreshold, nil)
	return a.Analyze(context.Background(), camera.Frame{Width: 640, Height: 480})
}

func TestAnalyzeOpenEyes(t *testing.T) {
	res := analyze(landmark.FaceWithRatio(0.30))

	assert.Equal(t, analyzer.Normal, res.Status)
	assert.InDelta(t, 0.30, res.EAR, 1e-9)
	assert.True(t, res.Measured())
	assert.NotNil(t, res.Left)
	assert.NotNil(t, res.Right)
}

func TestAnalyzeClosedEyes(t *testing.T) {
	res := analyze(landmark.FaceWithRatio(0.15))

	assert.Equal(t, analyzer.Drowsy, res.Status)
	assert.InDelta(t, 0.15, res.EAR, 1e-9)
}

func TestAnalyzeThresholdIsInclusive(t *testing.T) {
	assert.Equal(t, analyzer.Drowsy, analyzer.Classify(0.21, 0.21))
	assert.Equal(t, analyzer.Normal, analyzer.Classify(0.2101, 0.21))
}

func TestAnalyzeNoFace(t *testing.T) {
	res := analyze(landmark.NoFace())

	assert.Equal(t, analyzer.NotDetected, res.Status)
	assert.False(t, res.Measured())
	assert.Nil(t, res.Left)
}

func TestAnalyzeOneEyeMissing(t *testing.T) {
	left := landmark.EyeWithRatio(0.3)
	res := analyze(landmark.Step{Landmarks: landmark.Landmarks{Left: &left}})

	assert.Equal(t, analyzer.NotDetected, res.Status)
	assert.NotNil(t, res.Left, "partial landmarks are still reported")
	assert.Zero(t, res.EAR)
}

func TestAnalyzeDetectorError(t *testing.T) {
	coded := errors.New().Wrap(errors.ErrDetectionFailed, stderrors.New("sidecar down"))

	assert.Equal(t, analyzer.NotDetected, analyze(landmark.Step{Err: coded}).Status)
	assert.Equal(t, analyzer.NotDetected, analyze(landmark.Step{Err: stderrors.New("plain")}).Status)
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		label string
		want  analyzer.Status
		ok    bool
	}{
		{"Normal", analyzer.Normal, true},
		{"Drowsy", analyzer.Drowsy, true},
		{"Mengantuk", analyzer.Drowsy, true},
		{" drowsy ", analyzer.Drowsy, true},
		{"NotDetected", analyzer.NotDetected, true},
		{"Unknown", analyzer.NotDetected, false},
	}

	for _, tt := range tests {
		got, ok := analyzer.ParseStatus(tt.label)
		assert.Equal(t, tt.want, got, tt.label)
		assert.Equal(t, tt.ok, ok, tt.label)
	}

	for _, s := range []analyzer.Status{analyzer.Normal, analyzer.Drowsy, analyzer.NotDetected} {
		got, ok := analyzer.ParseStatus(s.String())
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}
}

func TestClassifyMatchesThreshold(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		threshold := rapid.Float64Range(0.01, 0.99).Draw(t, "threshold")
		ratio := rapid.Float64Range(0, 1).Draw(t, "ratio")

		got := analyzer.Classify(ratio, threshold)
		if (got == analyzer.Drowsy) != (ratio <= threshold) {
			t.Fatalf("Classify(%v, %v) = %v", ratio, threshold, got)
		}
	})
}
