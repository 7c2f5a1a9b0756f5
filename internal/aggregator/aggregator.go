// Package aggregator turns a raw analysis result into chart-ready statistics.
// Everything here is a pure function of its input and safe for concurrent use.
package aggregator

import (
	"fmt"
	"math"

	"github.com/ternarybob/deepscan/internal/models"
)

// DefaultPreviewFrames is how many frames the preview table carries.
const DefaultPreviewFrames = 20

// bucketUpperBounds are the inclusive upper bounds of the first four buckets, in percent.
var bucketUpperBounds = [models.HistogramBuckets - 1]float64{20, 40, 60, 80}

// Options tune the non-essential parts of the output.
type Options struct {
	PreviewFrames int
}

// Aggregate validates the result and derives its statistics with default options.
func Aggregate(result *models.AnalysisResult) (*models.DerivedStatistics, error) {
	return AggregateWithOptions(result, Options{PreviewFrames: DefaultPreviewFrames})
}

// AggregateWithOptions validates the result and derives its statistics.
// Returns IntegrityError for inconsistent payloads and EmptyInputError when there are no frames.
func AggregateWithOptions(result *models.AnalysisResult, opts Options) (*models.DerivedStatistics, error) {
	if err := Validate(result); err != nil {
		return nil, err
	}

	summary, err := Summarize(result.FrameResults)
	if err != nil {
		return nil, err
	}

	stats := &models.DerivedStatistics{
		Timeline:  Timeline(result.FrameResults),
		Histogram: BuildHistogram(result.FrameResults),
		Summary:   *summary,
		Breakdown: models.Breakdown{Real: result.RealFramesCount, Fake: result.FakeFramesCount},
		Preview:   Preview(result.FrameResults, opts.PreviewFrames),
	}

	return stats, nil
}

// Validate checks the count invariants and per-frame ranges without deriving anything.
// The reported fake count must match the frames labelled Fake.
func Validate(result *models.AnalysisResult) error {
	if result == nil {
		return &models.IntegrityError{Field: "result", Message: "no result payload"}
	}

	if result.FakeFramesCount < 0 || result.RealFramesCount < 0 || result.TotalFramesAnalyzed < 0 {
		return &models.IntegrityError{Field: "frame counts", Message: "counts must be non-negative"}
	}
	if result.FakeFramesCount+result.RealFramesCount != result.TotalFramesAnalyzed {
		return &models.IntegrityError{
			Field: "frame counts",
			Message: fmt.Sprintf("fake (%d) + real (%d) != total (%d)",
				result.FakeFramesCount, result.RealFramesCount, result.TotalFramesAnalyzed),
		}
	}
	if result.TotalFramesAnalyzed != len(result.FrameResults) {
		return &models.IntegrityError{
			Field:   "frame_results",
			Message: fmt.Sprintf("total (%d) != number of frame results (%d)", result.TotalFramesAnalyzed, len(result.FrameResults)),
		}
	}
	if result.FakePercentage < 0 || result.FakePercentage > 100 || math.IsNaN(result.FakePercentage) {
		return &models.IntegrityError{Field: "fake_percentage", Message: fmt.Sprintf("%v is outside 0..100", result.FakePercentage)}
	}

	for i, frame := range result.FrameResults {
		field := fmt.Sprintf("frame_results[%d]", i)
		if !frame.Prediction.Valid() {
			return &models.IntegrityError{Field: field, Message: fmt.Sprintf("unknown prediction %q", frame.Prediction)}
		}
		if !inUnitRange(frame.Confidence) {
			return &models.IntegrityError{Field: field, Message: fmt.Sprintf("confidence %v is outside 0..1", frame.Confidence)}
		}
		if !inUnitRange(frame.ProbabilityFake) {
			return &models.IntegrityError{Field: field, Message: fmt.Sprintf("probability %v is outside 0..1", frame.ProbabilityFake)}
		}
		if frame.FrameNumber < 0 || frame.TimestampSeconds < 0 {
			return &models.IntegrityError{Field: field, Message: "negative frame number or timestamp"}
		}
		if i > 0 {
			prev := result.FrameResults[i-1]
			if frame.FrameNumber <= prev.FrameNumber {
				return &models.IntegrityError{Field: field, Message: fmt.Sprintf("frame number %d does not follow %d", frame.FrameNumber, prev.FrameNumber)}
			}
			if frame.TimestampSeconds < prev.TimestampSeconds {
				return &models.IntegrityError{Field: field, Message: "timestamps decrease"}
			}
		}
	}

	if labelled := CountPredictions(result.FrameResults); labelled.Fake != result.FakeFramesCount {
		return &models.IntegrityError{
			Field:   "fake_frames_count",
			Message: fmt.Sprintf("reported %d fake frames but %d frames are labelled Fake", result.FakeFramesCount, labelled.Fake),
		}
	}

	return nil
}

// Summarize returns mean, max and min confidence. Empty input is an EmptyInputError.
func Summarize(frames []models.FrameResult) (*models.Summary, error) {
	if len(frames) == 0 {
		return nil, &models.EmptyInputError{What: "frame results"}
	}

	sum := 0.0
	hi := frames[0].Confidence
	lo := frames[0].Confidence
	for _, f := range frames {
		sum += f.Confidence
		if f.Confidence > hi {
			hi = f.Confidence
		}
		if f.Confidence < lo {
			lo = f.Confidence
		}
	}

	return &models.Summary{
		MeanConfidence: sum / float64(len(frames)),
		MaxConfidence:  hi,
		MinConfidence:  lo,
	}, nil
}

// Timeline maps each frame to a timeline point, preserving input order.
func Timeline(frames []models.FrameResult) []models.TimelinePoint {
	points := make([]models.TimelinePoint, len(frames))
	for i, f := range frames {
		signal := 0
		if f.Prediction == models.PredictionFake {
			signal = 100
		}
		points[i] = models.TimelinePoint{
			FrameNumber:       f.FrameNumber,
			TimestampSeconds:  f.TimestampSeconds,
			Label:             fmt.Sprintf("%.1fs", f.TimestampSeconds),
			ConfidencePercent: f.Confidence * 100,
			FakeSignal:        signal,
		}
	}
	return points
}

// BuildHistogram counts frames into the five confidence buckets.
func BuildHistogram(frames []models.FrameResult) models.Histogram {
	h := models.Histogram{Labels: models.HistogramLabels}
	for _, f := range frames {
		h.Counts[BucketIndex(f.Confidence)]++
	}
	return h
}

// BucketIndex returns the bucket of a confidence in 0..1.
// Buckets are (-inf,20], (20,40], (40,60], (60,80], (80,+inf) over confidence*100.
func BucketIndex(confidence float64) int {
	// Round away float noise, e.g. 0.07*100 = 7.000000000000001
	v := math.Round(confidence*100*1e9) / 1e9
	for i, upper := range bucketUpperBounds {
		if v <= upper {
			return i
		}
	}
	return models.HistogramBuckets - 1
}

// CountPredictions splits frames by predicted label.
func CountPredictions(frames []models.FrameResult) models.Breakdown {
	var b models.Breakdown
	for _, f := range frames {
		if f.Prediction == models.PredictionFake {
			b.Fake++
		} else {
			b.Real++
		}
	}
	return b
}

// Preview returns a copy of the first n frames.
func Preview(frames []models.FrameResult, n int) []models.FrameResult {
	if n <= 0 || len(frames) == 0 {
		return []models.FrameResult{}
	}
	if n > len(frames) {
		n = len(frames)
	}
	out := make([]models.FrameResult, n)
	copy(out, frames[:n])
	return out
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
