// Package landmark locates the six contour points of each eye in a frame.
package landmark

import (
	"context"

	"codeberg.org/mutker/drowsyctl/internal/camera"
	"codeberg.org/mutker/drowsyctl/internal/ear"
)

// Face mesh indices of the eye contours, in EAR order.
var (
	LeftEyeIndices  = [6]int{33, 160, 158, 133, 153, 144}
	RightEyeIndices = [6]int{362, 385, 387, 263, 373, 380}
)

// Landmarks holds the eye contours found in a frame. A nil eye means the
// contour could not be located.
type Landmarks struct {
	Left  *ear.EyePoints
	Right *ear.EyePoints
}

// Complete reports whether both eyes were located.
func (l Landmarks) Complete() bool {
	return l.Left != nil && l.Right != nil
}

// Detector finds eye landmarks. A frame without a face yields empty
// Landmarks and a nil error.
type Detector interface {
	Detect(ctx context.Context, frame camera.Frame) (Landmarks, error)
}

// MeshPoint is a face mesh vertex normalized to [0,1] image coordinates.
type MeshPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FromMesh picks the eye contours out of a full face mesh and scales them to
// pixel coordinates, truncating to whole pixels. An eye whose indices fall
// outside the mesh is left nil.
func FromMesh(mesh []MeshPoint, width, height int) Landmarks {
	return Landmarks{
		Left:  pickEye(mesh, LeftEyeIndices, width, height),
		Right: pickEye(mesh, RightEyeIndices, width, height),
	}
}

func pickEye(mesh []MeshPoint, indices [6]int, width, height int) *ear.EyePoints {
	var eye ear.EyePoints
	for i, idx := range indices {
		if idx >= len(mesh) {
			return nil
		}
		eye[i] = ear.Point{
			X: float64(int(mesh[idx].X * float64(width))),
			Y: float64(int(mesh[idx].Y * float64(height))),
		}
	}
	return &eye
}
