package earlog

import (
	"time"

	"codeberg.org/mutker/drowsyctl/internal/analyzer"
)

// Summary aggregates a set of samples.
type Summary struct {
	Count       int       `json:"count"`
	Drowsy      int       `json:"drowsy"`
	DrowsyRatio float64   `json:"drowsy_ratio"`
	MeanEAR     float64   `json:"mean_ear"`
	MinEAR      float64   `json:"min_ear"`
	MaxEAR      float64   `json:"max_ear"`
	First       time.Time `json:"first"`
	Last        time.Time `json:"last"`
}

// Summarize aggregates samples. An empty input yields the zero Summary.
func Summarize(samples []Sample) Summary {
	var sum Summary
	if len(samples) == 0 {
		return sum
	}

	sum.Count = len(samples)
	sum.MinEAR = samples[0].EAR
	sum.MaxEAR = samples[0].EAR
	sum.First = samples[0].Time
	sum.Last = samples[0].Time

	total := 0.0
	for _, s := range samples {
		total += s.EAR
		sum.MinEAR = min(sum.MinEAR, s.EAR)
		sum.MaxEAR = max(sum.MaxEAR, s.EAR)
		if s.Time.Before(sum.First) {
			sum.First = s.Time
		}
		if s.Time.After(sum.Last) {
			sum.Last = s.Time
		}
		if s.Status == analyzer.Drowsy {
			sum.Drowsy++
		}
	}

	sum.MeanEAR = total / float64(sum.Count)
	sum.DrowsyRatio = float64(sum.Drowsy) / float64(sum.Count)

	return sum
}

// Summary aggregates the samples of the last window.
func (l *Log) Summary(window time.Duration) (Summary, error) {
	samples, err := l.Recent(window)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(samples), nil
}
