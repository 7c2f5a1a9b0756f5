package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/detector"
	"github.com/ternarybob/deepscan/internal/models"
)

// fakeDetector answers every call from fixed values
type fakeDetector struct {
	snapshot  *models.Snapshot
	result    *models.AnalysisResult
	health    *models.HealthStatus
	snapshots []models.Snapshot
	err       error
}

func (f *fakeDetector) Submit(ctx context.Context, path string) (*models.Submission, error) {
	return nil, errors.New("not used")
}

func (f *fakeDetector) PollStatus(ctx context.Context, jobID string) (*models.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeDetector) FetchResults(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	return f.result, f.err
}

func (f *fakeDetector) HealthCheck(ctx context.Context) (*models.HealthStatus, error) {
	return f.health, f.err
}

func (f *fakeDetector) ListJobs(ctx context.Context) ([]models.Snapshot, error) {
	return f.snapshots, f.err
}

var completedSnapshot = &models.Snapshot{JobID: "job-7", State: models.JobStateCompleted, Progress: 100}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) string {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args

	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestGetJobStatus_RequiresJobID(t *testing.T) {
	handler := handleGetJobStatus(&fakeDetector{}, arbor.NewLogger())

	text := callTool(t, handler, map[string]interface{}{})

	assert.Contains(t, text, "job_id parameter is required")
}

func TestGetJobStatus_RendersSnapshot(t *testing.T) {
	client := &fakeDetector{snapshot: &models.Snapshot{JobID: "job-7", State: models.JobStateProcessing, Progress: 45}}
	handler := handleGetJobStatus(client, arbor.NewLogger())

	text := callTool(t, handler, map[string]interface{}{"job_id": "job-7"})

	assert.Contains(t, text, "job-7")
	assert.Contains(t, text, "processing")
}

func TestGetJobResults_RejectsInconsistentPayload(t *testing.T) {
	client := &fakeDetector{snapshot: completedSnapshot, result: &models.AnalysisResult{
		OverallPrediction:   models.PredictionFake,
		TotalFramesAnalyzed: 2,
		FakeFramesCount:     2,
		RealFramesCount:     1,
	}}
	handler := handleGetJobResults(client, 20, arbor.NewLogger())

	text := callTool(t, handler, map[string]interface{}{"job_id": "job-7"})

	assert.Contains(t, text, "Results rejected")
}

func TestGetJobResults_RendersReport(t *testing.T) {
	client := &fakeDetector{snapshot: completedSnapshot, result: &models.AnalysisResult{
		JobID:               "job-7",
		OverallPrediction:   models.PredictionReal,
		FakePercentage:      0,
		TotalFramesAnalyzed: 1,
		RealFramesCount:     1,
		FrameResults: []models.FrameResult{
			{FrameNumber: 0, Prediction: models.PredictionReal, Confidence: 0.9, ProbabilityFake: 0.1},
		},
	}}
	handler := handleGetJobResults(client, 20, arbor.NewLogger())

	text := callTool(t, handler, map[string]interface{}{"job_id": "job-7"})

	assert.Contains(t, text, "# Analysis job-7")
}

func TestServiceErrorsBecomeToolText(t *testing.T) {
	client := &fakeDetector{err: &models.TransportError{Op: "health", Endpoint: "/api/health", Err: errors.New("connection refused")}}

	text := callTool(t, handleCheckServiceHealth(client, arbor.NewLogger()), nil)
	assert.Contains(t, text, "unreachable")

	text = callTool(t, handleListRemoteJobs(client, arbor.NewLogger()), nil)
	assert.Contains(t, text, "List error")
}

func TestListHistory_WithoutDatabase(t *testing.T) {
	text := callTool(t, handleListHistory(nil, arbor.NewLogger()), nil)

	assert.Contains(t, text, "History is unavailable")
}

// detectionService serves one job whose status is given by state
func detectionService(t *testing.T, state string, resultHits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status/job-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job_id":"job-1","status":"` + state + `","progress":100,"filename":"clip.mp4"}`))
	})
	mux.HandleFunc("/api/results/job-1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(resultHits, 1)
		w.Write([]byte(`{"job_id":"job-1","status":"completed","results":{
			"overall_prediction":"Fake","fake_percentage":50,
			"total_frames_analyzed":2,"fake_frames_count":1,"real_frames_count":1,
			"frame_results":[
				{"frame_number":0,"timestamp":0.0,"prediction":"Real","confidence":0.9,"probability":0.1},
				{"frame_number":30,"timestamp":1.0,"prediction":"Fake","confidence":0.7,"probability":0.7}],
			"video_info":{"fps":30,"width":640,"height":480,"duration":2,"frame_count":60,"size_mb":1.5},
			"video_url":"/api/video/job-1","processing_time":1.2}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGetJobResults_FreshClientFetchesCompletedJob(t *testing.T) {
	var hits int32
	server := detectionService(t, "completed", &hits)
	client := detector.NewClient(detector.WithBaseURL(server.URL), detector.WithLogger(arbor.NewLogger()))

	text := callTool(t, handleGetJobResults(client, 20, arbor.NewLogger()), map[string]interface{}{"job_id": "job-1"})

	assert.Contains(t, text, "# Analysis job-1")
	assert.Contains(t, text, "**Verdict:** Fake")
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestGetJobResults_RunningJobReportsStatus(t *testing.T) {
	var hits int32
	server := detectionService(t, "processing", &hits)
	client := detector.NewClient(detector.WithBaseURL(server.URL), detector.WithLogger(arbor.NewLogger()))

	text := callTool(t, handleGetJobResults(client, 20, arbor.NewLogger()), map[string]interface{}{"job_id": "job-1"})

	assert.Contains(t, text, "**Status:** processing")
	assert.Contains(t, text, "available once the job completes")
	assert.EqualValues(t, 0, atomic.LoadInt32(&hits))
}
