package aggregator

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/deepscan/internal/models"
)

// resultFromConfidences builds a consistent result with one frame per confidence.
func resultFromConfidences(confidences ...float64) *models.AnalysisResult {
	frames := make([]models.FrameResult, len(confidences))
	fake := 0
	for i, c := range confidences {
		prediction := models.PredictionReal
		if i%2 == 1 {
			prediction = models.PredictionFake
			fake++
		}
		frames[i] = models.FrameResult{
			FrameNumber:      i * 10,
			TimestampSeconds: float64(i) / 3,
			Prediction:       prediction,
			Confidence:       c,
			ProbabilityFake:  1 - c,
		}
	}
	return &models.AnalysisResult{
		OverallPrediction:   models.PredictionReal,
		FakePercentage:      float64(fake) / math.Max(1, float64(len(frames))) * 100,
		TotalFramesAnalyzed: len(frames),
		FakeFramesCount:     fake,
		RealFramesCount:     len(frames) - fake,
		FrameResults:        frames,
		VideoInfo:           models.VideoInfo{FPS: 30, Width: 640, Height: 480, DurationSeconds: 2, FrameCount: 60, SizeMegabytes: 1.5},
	}
}

func TestBuildHistogram_BoundariesFallIntoLowerBucket(t *testing.T) {
	result := resultFromConfidences(0.20, 0.20001, 0.40, 0.60, 0.80, 0.81)

	stats, err := Aggregate(result)

	require.NoError(t, err)
	assert.Equal(t, [models.HistogramBuckets]int{1, 2, 1, 1, 1}, stats.Histogram.Counts)
	assert.Equal(t, models.HistogramLabels, stats.Histogram.Labels)
	assert.Equal(t, 6, stats.Histogram.Total())
}

func TestBucketIndex(t *testing.T) {
	tests := []struct {
		confidence float64
		bucket     int
	}{
		{0, 0},
		{0.07, 0},
		{0.2, 0},
		{0.2000001, 1},
		{0.3, 1},
		{0.4, 1},
		{0.41, 2},
		{0.6, 2},
		{0.7, 3},
		{0.8, 3},
		{0.8000001, 4},
		{1, 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.bucket, BucketIndex(tt.confidence), "confidence %v", tt.confidence)
	}
}

func TestAggregate_EmptyFramesIsEmptyInputError(t *testing.T) {
	stats, err := Aggregate(resultFromConfidences())

	assert.Nil(t, stats)
	var empty *models.EmptyInputError
	assert.True(t, errors.As(err, &empty), "expected EmptyInputError, got %v", err)
}

func TestAggregate_IntegrityViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.AnalysisResult)
	}{
		{"counts do not add up", func(r *models.AnalysisResult) { r.FakeFramesCount++ }},
		{"total differs from frames", func(r *models.AnalysisResult) {
			r.TotalFramesAnalyzed++
			r.RealFramesCount++
		}},
		{"negative count", func(r *models.AnalysisResult) {
			r.FakeFramesCount = -1
			r.RealFramesCount = r.TotalFramesAnalyzed + 1
		}},
		{"confidence above one", func(r *models.AnalysisResult) { r.FrameResults[1].Confidence = 1.2 }},
		{"probability NaN", func(r *models.AnalysisResult) { r.FrameResults[0].ProbabilityFake = math.NaN() }},
		{"unknown prediction", func(r *models.AnalysisResult) { r.FrameResults[2].Prediction = "Maybe" }},
		{"frames out of order", func(r *models.AnalysisResult) { r.FrameResults[2].FrameNumber = 0 }},
		{"timestamps decrease", func(r *models.AnalysisResult) { r.FrameResults[2].TimestampSeconds = 0 }},
		{"fake percentage out of range", func(r *models.AnalysisResult) { r.FakePercentage = 140 }},
		{"fake count disagrees with labels", func(r *models.AnalysisResult) { r.FrameResults[0].Prediction = models.PredictionFake }},
		{"real and fake counts swapped", func(r *models.AnalysisResult) {
			r.FakeFramesCount, r.RealFramesCount = r.RealFramesCount, r.FakeFramesCount
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := resultFromConfidences(0.9, 0.8, 0.7)
			tt.mutate(result)

			stats, err := Aggregate(result)

			assert.Nil(t, stats)
			assert.True(t, models.IsIntegrity(err), "expected IntegrityError, got %v", err)
		})
	}

	_, err := Aggregate(nil)
	assert.True(t, models.IsIntegrity(err))
}

func TestAggregate_ConsistentResultsSucceed(t *testing.T) {
	for n := 1; n <= 40; n++ {
		confidences := make([]float64, n)
		for i := range confidences {
			confidences[i] = float64((i*37)%101) / 100
		}

		stats, err := Aggregate(resultFromConfidences(confidences...))

		require.NoError(t, err, "n=%d", n)
		assert.Len(t, stats.Timeline, n)
		assert.Equal(t, n, stats.Histogram.Total())
		assert.Equal(t, n, stats.Breakdown.Real+stats.Breakdown.Fake)
		assert.False(t, math.IsNaN(stats.Summary.MeanConfidence))
	}
}

func TestAggregate_SummaryAndTimeline(t *testing.T) {
	result := &models.AnalysisResult{
		OverallPrediction:   models.PredictionReal,
		FakePercentage:      100.0 / 3,
		TotalFramesAnalyzed: 3,
		FakeFramesCount:     1,
		RealFramesCount:     2,
		FrameResults: []models.FrameResult{
			{FrameNumber: 0, TimestampSeconds: 0, Prediction: models.PredictionReal, Confidence: 0.9, ProbabilityFake: 0.1},
			{FrameNumber: 15, TimestampSeconds: 0.5, Prediction: models.PredictionFake, Confidence: 0.6, ProbabilityFake: 0.6},
			{FrameNumber: 30, TimestampSeconds: 1.04, Prediction: models.PredictionReal, Confidence: 0.75, ProbabilityFake: 0.25},
		},
	}

	stats, err := Aggregate(result)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, stats.Summary.MeanConfidence, 1e-9)
	assert.InDelta(t, 0.9, stats.Summary.MaxConfidence, 1e-9)
	assert.InDelta(t, 0.6, stats.Summary.MinConfidence, 1e-9)

	require.Len(t, stats.Timeline, 3)
	assert.Equal(t, []int{0, 15, 30}, []int{stats.Timeline[0].FrameNumber, stats.Timeline[1].FrameNumber, stats.Timeline[2].FrameNumber})
	assert.Equal(t, "0.0s", stats.Timeline[0].Label)
	assert.Equal(t, "1.0s", stats.Timeline[2].Label)
	assert.InDelta(t, 60.0, stats.Timeline[1].ConfidencePercent, 1e-9)
	assert.Equal(t, []int{0, 100, 0}, []int{stats.Timeline[0].FakeSignal, stats.Timeline[1].FakeSignal, stats.Timeline[2].FakeSignal})

	assert.Equal(t, models.Breakdown{Real: 2, Fake: 1}, stats.Breakdown)
	assert.Len(t, stats.Preview, 3)
}

func TestAggregate_PredictionAndProbabilityMayDisagree(t *testing.T) {
	result := resultFromConfidences(0.55)
	// A 0.45 fake probability labelled Fake is legal when the threshold is not 0.5
	result.FrameResults[0].Prediction = models.PredictionFake
	result.FrameResults[0].ProbabilityFake = 0.45
	result.FakeFramesCount, result.RealFramesCount = 1, 0

	stats, err := Aggregate(result)

	require.NoError(t, err)
	assert.Equal(t, 100, stats.Timeline[0].FakeSignal)
}

func TestPreview_LimitsAndCopies(t *testing.T) {
	confidences := make([]float64, 25)
	for i := range confidences {
		confidences[i] = 0.5
	}
	result := resultFromConfidences(confidences...)

	stats, err := Aggregate(result)
	require.NoError(t, err)
	require.Len(t, stats.Preview, DefaultPreviewFrames)

	stats.Preview[0].Confidence = 0.99
	assert.Equal(t, 0.5, result.FrameResults[0].Confidence)

	stats, err = AggregateWithOptions(result, Options{PreviewFrames: 0})
	require.NoError(t, err)
	assert.Empty(t, stats.Preview)
}
