package pipeline

import "time"

// Phase names a pipeline step
type Phase string

const (
	PhaseDetecting    Phase = "detecting"
	PhaseDetectingURL Phase = "detecting_urls"
	PhaseMerging      Phase = "merging"
	PhaseAnalyzing    Phase = "analyzing_feedback"
	PhaseScoring      Phase = "scoring"
)

// Progress reports how far a run has come
type Progress struct {
	Phase       Phase
	Current     int       // items done in this phase
	Total       int       // items in this phase, 0 when unknown
	Description string    // human-readable description
	StartedAt   time.Time // when this phase started
}

// ProgressCallback receives progress updates during a run
type ProgressCallback func(Progress)

// ETA estimates the time left in the phase
func (p Progress) ETA() time.Duration {
	if p.Current == 0 || p.Total == 0 || p.StartedAt.IsZero() {
		return 0
	}
	elapsed := time.Since(p.StartedAt)
	rate := float64(p.Current) / elapsed.Seconds()
	if rate <= 0 {
		return 0
	}
	remaining := p.Total - p.Current
	return time.Duration(float64(remaining)/rate) * time.Second
}

// Percentage returns the completion percentage (0-100)
func (p Progress) Percentage() int {
	if p.Total == 0 {
		return 0
	}
	return (p.Current * 100) / p.Total
}
