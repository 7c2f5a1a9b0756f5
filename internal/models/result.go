package models

import "fmt"

// Prediction is the per-frame or overall classification label.
type Prediction string

const (
	PredictionReal Prediction = "Real"
	PredictionFake Prediction = "Fake"
)

// Valid reports whether p is one of the known labels.
func (p Prediction) Valid() bool {
	return p == PredictionReal || p == PredictionFake
}

// ParsePrediction converts a wire label into a Prediction.
func ParsePrediction(s string) (Prediction, error) {
	p := Prediction(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown prediction %q", s)
	}
	return p, nil
}

// FrameResult is one classified frame.
type FrameResult struct {
	FrameNumber      int        `json:"frame_number" yaml:"frame_number"`
	TimestampSeconds float64    `json:"timestamp" yaml:"timestamp"`
	Prediction       Prediction `json:"prediction" yaml:"prediction"`
	Confidence       float64    `json:"confidence" yaml:"confidence"`   // Certainty in Prediction, 0..1
	ProbabilityFake  float64    `json:"probability" yaml:"probability"` // Raw fake-class probability, 0..1
}

// VideoInfo describes the analysed media.
type VideoInfo struct {
	FPS             float64 `json:"fps" yaml:"fps"`
	Width           int     `json:"width" yaml:"width"`
	Height          int     `json:"height" yaml:"height"`
	DurationSeconds float64 `json:"duration" yaml:"duration"`
	FrameCount      int     `json:"frame_count" yaml:"frame_count"`
	SizeMegabytes   float64 `json:"size_mb" yaml:"size_mb"`
}

// AnalysisResult is the terminal payload of a completed job.
// Treat as immutable once returned by the client.
type AnalysisResult struct {
	JobID                 string        `json:"job_id" yaml:"job_id"`
	OverallPrediction     Prediction    `json:"overall_prediction" yaml:"overall_prediction"`
	FakePercentage        float64       `json:"fake_percentage" yaml:"fake_percentage"`
	TotalFramesAnalyzed   int           `json:"total_frames_analyzed" yaml:"total_frames_analyzed"`
	FakeFramesCount       int           `json:"fake_frames_count" yaml:"fake_frames_count"`
	RealFramesCount       int           `json:"real_frames_count" yaml:"real_frames_count"`
	FrameResults          []FrameResult `json:"frame_results" yaml:"frame_results"`
	VideoInfo             VideoInfo     `json:"video_info" yaml:"video_info"`
	VideoURL              string        `json:"video_url,omitempty" yaml:"video_url,omitempty"` // May be cleaned up server-side
	ProcessingTimeSeconds float64       `json:"processing_time,omitempty" yaml:"processing_time,omitempty"`
}
