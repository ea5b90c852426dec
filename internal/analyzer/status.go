package analyzer

import "strings"

// Status classifies one frame.
type Status int

const (
	NotDetected Status = iota
	Normal
	Drowsy
)

func (s Status) String() string {
	switch s {
	case Normal:
		return "Normal"
	case Drowsy:
		return "Drowsy"
	default:
		return "NotDetected"
	}
}

// ParseStatus reads a status label as written to the measurement log.
// The localized label "Mengantuk" found in older logs maps to Drowsy.
func ParseStatus(label string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "normal":
		return Normal, true
	case "drowsy", "mengantuk":
		return Drowsy, true
	case "notdetected", "not_detected":
		return NotDetected, true
	default:
		return NotDetected, false
	}
}

// Classify applies the threshold: a ratio at or below it is Drowsy.
func Classify(ratio, threshold float64) Status {
	if ratio <= threshold {
		return Drowsy
	}
	return Normal
}
