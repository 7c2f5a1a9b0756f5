package models

// JobEvent is the payload published on controller transitions.
type JobEvent struct {
	Generation uint64             `json:"generation"`
	Job        Job                `json:"job"`
	Stage      string             `json:"stage"`
	Error      string             `json:"error,omitempty"` // Why the last submission ended, if it did not complete
	Result     *AnalysisResult    `json:"-"`
	Statistics *DerivedStatistics `json:"statistics,omitempty"`
}
