package models

// HistogramBuckets is the number of fixed confidence buckets.
const HistogramBuckets = 5

// HistogramLabels names the buckets in ascending order.
var HistogramLabels = [HistogramBuckets]string{"0-20%", "20-40%", "40-60%", "60-80%", "80-100%"}

// TimelinePoint is one per-frame sample of the confidence timeline.
type TimelinePoint struct {
	FrameNumber       int     `json:"frame_number" yaml:"frame_number"`
	TimestampSeconds  float64 `json:"timestamp" yaml:"timestamp"`
	Label             string  `json:"label" yaml:"label"`
	ConfidencePercent float64 `json:"confidence_percent" yaml:"confidence_percent"`
	FakeSignal        int     `json:"fake_signal" yaml:"fake_signal"` // 100 for Fake frames, 0 otherwise
}

// Histogram counts frames per confidence bucket.
type Histogram struct {
	Labels [HistogramBuckets]string `json:"labels" yaml:"labels"`
	Counts [HistogramBuckets]int    `json:"counts" yaml:"counts"`
}

// Total returns the number of frames counted.
func (h Histogram) Total() int {
	total := 0
	for _, c := range h.Counts {
		total += c
	}
	return total
}

// Summary holds scalar confidence statistics as fractions in 0..1.
type Summary struct {
	MeanConfidence float64 `json:"mean_confidence" yaml:"mean_confidence"`
	MaxConfidence  float64 `json:"max_confidence" yaml:"max_confidence"`
	MinConfidence  float64 `json:"min_confidence" yaml:"min_confidence"`
}

// Breakdown splits frames by their predicted label.
type Breakdown struct {
	Real int `json:"real" yaml:"real"`
	Fake int `json:"fake" yaml:"fake"`
}

// DerivedStatistics is the aggregated, chart-ready view of an AnalysisResult.
type DerivedStatistics struct {
	Timeline  []TimelinePoint `json:"timeline" yaml:"timeline"`
	Histogram Histogram       `json:"histogram" yaml:"histogram"`
	Summary   Summary         `json:"summary" yaml:"summary"`
	Breakdown Breakdown       `json:"breakdown" yaml:"breakdown"`
	Preview   []FrameResult   `json:"preview" yaml:"preview"`
}
