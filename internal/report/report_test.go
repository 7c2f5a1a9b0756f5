package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/deepscan/internal/aggregator"
	"github.com/ternarybob/deepscan/internal/models"
	"gopkg.in/yaml.v3"
)

func completedDocument(t *testing.T) Document {
	t.Helper()
	result := &models.AnalysisResult{
		JobID:               "job-1",
		OverallPrediction:   models.PredictionFake,
		FakePercentage:      50,
		TotalFramesAnalyzed: 2,
		FakeFramesCount:     1,
		RealFramesCount:     1,
		FrameResults: []models.FrameResult{
			{FrameNumber: 0, TimestampSeconds: 0, Prediction: models.PredictionReal, Confidence: 0.9, ProbabilityFake: 0.1},
			{FrameNumber: 30, TimestampSeconds: 1, Prediction: models.PredictionFake, Confidence: 0.65, ProbabilityFake: 0.65},
		},
		VideoInfo:             models.VideoInfo{FPS: 30, Width: 1280, Height: 720, DurationSeconds: 75, FrameCount: 2250, SizeMegabytes: 12.5},
		ProcessingTimeSeconds: 3.2,
	}
	stats, err := aggregator.Aggregate(result)
	require.NoError(t, err)

	return Document{
		Job:        models.Job{ID: "job-1", State: models.JobStateCompleted, Progress: 100, Filename: "clip.mp4"},
		Result:     result,
		Statistics: stats,
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, "yml": FormatYAML, "md": FormatMarkdown}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestRender_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatText, completedDocument(t)))

	out := buf.String()
	assert.Contains(t, out, "Verdict:    Fake (50.0% of frames fake)")
	assert.Contains(t, out, "1:15")
	assert.Contains(t, out, "12.5 MB")
	assert.Contains(t, out, "80-100%")
	assert.Contains(t, out, "FRAME")
}

func TestRender_JSONAndYAML(t *testing.T) {
	doc := completedDocument(t)

	var jsonBuf bytes.Buffer
	require.NoError(t, Render(&jsonBuf, FormatJSON, doc))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	assert.Contains(t, decoded, "statistics")

	var yamlBuf bytes.Buffer
	require.NoError(t, Render(&yamlBuf, FormatYAML, doc))
	var yamlDecoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &yamlDecoded))
	job, ok := yamlDecoded["job"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "completed", job["state"])
}

func TestMarkdown(t *testing.T) {
	md := Markdown(completedDocument(t))

	assert.Contains(t, md, "# Analysis job-1")
	assert.Contains(t, md, "**Verdict:** Fake")
	assert.Contains(t, md, "| 60-80% | 1 |")
	assert.Contains(t, md, "| 80-100% | 1 |")

	failed := Markdown(Document{Job: models.Job{ID: "job-2", State: models.JobStateFailed, Error: "Could not open video file"}})
	assert.Contains(t, failed, "**Error:** Could not open video file")
	assert.NotContains(t, failed, "Verdict")
}

func TestListings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshots(&buf, FormatText, []models.Snapshot{{JobID: "job-1", State: models.JobStateProcessing, Progress: 40}}))
	assert.Contains(t, buf.String(), "job-1")
	assert.Contains(t, buf.String(), "40%")

	assert.Equal(t, "No jobs found.", MarkdownSnapshots(nil))
	assert.Equal(t, "No analyses recorded.", MarkdownHistory(nil))

	buf.Reset()
	records := []*models.JobRecord{{ID: "rec_1", Filename: "clip.mp4", State: models.JobStateCompleted, OverallPrediction: models.PredictionReal, FakePercentage: 12.5, CreatedAt: time.Now()}}
	require.NoError(t, WriteHistory(&buf, FormatText, records))
	assert.Contains(t, buf.String(), "Real 12.5%")

	buf.Reset()
	require.NoError(t, WriteHealth(&buf, FormatText, models.HealthStatus{Status: "healthy", Healthy: true, CheckedAt: time.Now()}))
	assert.Contains(t, buf.String(), "healthy (healthy)")
}
