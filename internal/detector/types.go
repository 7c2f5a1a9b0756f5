// Package detector provides the client for the remote deepfake detection service.
// It is the only package that speaks the service's HTTP contract.
package detector

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/deepscan/internal/models"
)

// Remote job status values as sent by the service.
const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

// uploadResponse is the body of POST /api/upload.
type uploadResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// statusResponse is the body of GET /api/status/{job_id} and one entry of GET /api/jobs.
type statusResponse struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"`
	Progress  int     `json:"progress"`
	CreatedAt string  `json:"created_at"`
	Filename  string  `json:"filename"`
	Error     *string `json:"error"`
}

// jobsResponse is the body of GET /api/jobs.
type jobsResponse struct {
	Jobs []statusResponse `json:"jobs"`
}

// resultsEnvelope is the body of GET /api/results/{job_id}.
type resultsEnvelope struct {
	JobID   string          `json:"job_id"`
	Status  string          `json:"status"`
	Results *resultsPayload `json:"results" validate:"required"`
}

// resultsPayload mirrors the service's analysis result document.
type resultsPayload struct {
	OverallPrediction   string         `json:"overall_prediction" validate:"required,oneof=Real Fake"`
	FakePercentage      float64        `json:"fake_percentage" validate:"gte=0,lte=100"`
	TotalFramesAnalyzed int            `json:"total_frames_analyzed" validate:"gte=0"`
	FakeFramesCount     int            `json:"fake_frames_count" validate:"gte=0"`
	RealFramesCount     int            `json:"real_frames_count" validate:"gte=0"`
	FrameResults        []framePayload `json:"frame_results" validate:"dive"`
	VideoInfo           videoPayload   `json:"video_info"`
	VideoURL            string         `json:"video_url"`
	ProcessingTime      float64        `json:"processing_time" validate:"gte=0"`
}

type framePayload struct {
	FrameNumber int     `json:"frame_number" validate:"gte=0"`
	Timestamp   float64 `json:"timestamp" validate:"gte=0"`
	Prediction  string  `json:"prediction" validate:"required,oneof=Real Fake"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
	Probability float64 `json:"probability" validate:"gte=0,lte=1"`
}

type videoPayload struct {
	FPS        float64 `json:"fps" validate:"gt=0"`
	Width      int     `json:"width" validate:"gt=0"`
	Height     int     `json:"height" validate:"gt=0"`
	Duration   float64 `json:"duration" validate:"gte=0"`
	FrameCount int     `json:"frame_count" validate:"gte=0"`
	SizeMB     float64 `json:"size_mb" validate:"gte=0"`
}

// healthResponse is the body of GET /api/health.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// errorResponse is the service's error body.
type errorResponse struct {
	Error string `json:"error"`
}

var payloadValidator = validator.New()

// validate checks the payload against its tags and reports the first violation.
func (p *resultsEnvelope) validate() error {
	if err := payloadValidator.Struct(p); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return &models.IntegrityError{
				Field:   fe.Namespace(),
				Message: fmt.Sprintf("failed '%s' check (value: %v)", fe.Tag(), fe.Value()),
			}
		}
		return &models.IntegrityError{Field: "results", Message: err.Error()}
	}
	return nil
}

// toModel converts the validated payload into the domain result.
func (p *resultsPayload) toModel(jobID string) *models.AnalysisResult {
	frames := make([]models.FrameResult, len(p.FrameResults))
	for i, f := range p.FrameResults {
		frames[i] = models.FrameResult{
			FrameNumber:      f.FrameNumber,
			TimestampSeconds: f.Timestamp,
			Prediction:       models.Prediction(f.Prediction),
			Confidence:       f.Confidence,
			ProbabilityFake:  f.Probability,
		}
	}

	return &models.AnalysisResult{
		JobID:               jobID,
		OverallPrediction:   models.Prediction(p.OverallPrediction),
		FakePercentage:      p.FakePercentage,
		TotalFramesAnalyzed: p.TotalFramesAnalyzed,
		FakeFramesCount:     p.FakeFramesCount,
		RealFramesCount:     p.RealFramesCount,
		FrameResults:        frames,
		VideoInfo: models.VideoInfo{
			FPS:             p.VideoInfo.FPS,
			Width:           p.VideoInfo.Width,
			Height:          p.VideoInfo.Height,
			DurationSeconds: p.VideoInfo.Duration,
			FrameCount:      p.VideoInfo.FrameCount,
			SizeMegabytes:   p.VideoInfo.SizeMB,
		},
		VideoURL:              p.VideoURL,
		ProcessingTimeSeconds: p.ProcessingTime,
	}
}

// toSnapshot maps a status body to a snapshot; unknown status strings are integrity errors.
func (s *statusResponse) toSnapshot(jobID string) (*models.Snapshot, error) {
	state, err := parseRemoteStatus(s.Status)
	if err != nil {
		return nil, err
	}

	snapshot := &models.Snapshot{
		JobID:     jobID,
		State:     state,
		Progress:  models.ClampProgress(s.Progress),
		Filename:  s.Filename,
		CreatedAt: s.CreatedAt,
	}
	if snapshot.JobID == "" {
		snapshot.JobID = s.JobID
	}
	if s.Error != nil {
		snapshot.Error = *s.Error
	}
	return snapshot, nil
}

func parseRemoteStatus(status string) (models.JobState, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case statusQueued:
		return models.JobStateQueued, nil
	case statusProcessing:
		return models.JobStateProcessing, nil
	case statusCompleted:
		return models.JobStateCompleted, nil
	case statusError:
		return models.JobStateFailed, nil
	default:
		return "", &models.IntegrityError{Field: "status", Message: fmt.Sprintf("unknown remote status %q", status)}
	}
}
