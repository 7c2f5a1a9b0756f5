package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is where the detection service listens by default.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultRequestTimeout bounds status, results and health calls.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultUploadTimeout bounds the upload call.
	DefaultUploadTimeout = 60 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10

	// DefaultMaxUploadBytes is the default upload size limit (100 MiB).
	DefaultMaxUploadBytes int64 = 100 * 1024 * 1024

	maxErrorBody = 64 * 1024
)

// DefaultAllowedExtensions lists the video containers the service accepts.
var DefaultAllowedExtensions = []string{"mp4", "avi", "mov", "mkv", "wmv", "flv"}

var _ interfaces.DetectorClient = (*Client)(nil)

// Client is a detection service API client.
// It performs no retries and keeps no job state beyond which jobs were seen completed.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         arbor.ILogger
	limiter        *rate.Limiter
	requestTimeout time.Duration
	uploadTimeout  time.Duration
	policy         UploadPolicy

	mu        sync.RWMutex
	completed map[string]bool
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeouts sets the per-call deadlines.
func WithTimeouts(request, upload time.Duration) ClientOption {
	return func(c *Client) {
		if request > 0 {
			c.requestTimeout = request
		}
		if upload > 0 {
			c.uploadTimeout = upload
		}
	}
}

// WithUploadPolicy sets the local size and extension policy.
func WithUploadPolicy(policy UploadPolicy) ClientOption {
	return func(c *Client) {
		c.policy = policy
	}
}

// NewClient creates a new detection service client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		// Deadlines come from per-call contexts
		httpClient:     &http.Client{},
		limiter:        rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		requestTimeout: DefaultRequestTimeout,
		uploadTimeout:  DefaultUploadTimeout,
		policy:         DefaultUploadPolicy(),
		completed:      make(map[string]bool),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromConfig builds a client from the service and upload configuration sections.
func NewClientFromConfig(config *common.Config, logger arbor.ILogger) *Client {
	return NewClient(
		WithBaseURL(config.Service.BaseURL),
		WithLogger(logger),
		WithRateLimit(config.Service.RateLimit),
		WithTimeouts(config.Service.RequestTimeoutDuration(), config.Service.UploadTimeoutDuration()),
		WithUploadPolicy(UploadPolicy{
			MaxBytes:          config.Upload.MaxSizeBytes(),
			AllowedExtensions: config.Upload.AllowedExtensions,
		}),
	)
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadPolicy returns the local policy Submit enforces.
func (c *Client) UploadPolicy() UploadPolicy {
	return c.policy
}

// Submit validates the file locally and uploads it as multipart field "video".
func (c *Client) Submit(ctx context.Context, path string) (*models.Submission, error) {
	info, err := c.policy.Check(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	body, contentType := multipartBody(path, info.Name())
	defer body.Close()

	var result uploadResponse
	if err := c.do(ctx, "submit", http.MethodPost, "/api/upload", body, contentType, &result); err != nil {
		return nil, err
	}

	if result.JobID == "" {
		return nil, &models.IntegrityError{Field: "job_id", Message: "upload response carried no job id"}
	}

	if c.logger != nil {
		c.logger.Info().
			Str("job_id", result.JobID).
			Str("filename", info.Name()).
			Str("size", common.FormatFileSize(info.Size())).
			Msg("Video submitted for analysis")
	}

	state := models.JobStateQueued
	if result.Status != "" {
		if parsed, err := parseRemoteStatus(result.Status); err == nil {
			state = parsed
		}
	}

	return &models.Submission{
		JobID:   result.JobID,
		State:   state,
		Message: result.Message,
	}, nil
}

// PollStatus retrieves the current status snapshot of a job.
func (c *Client) PollStatus(ctx context.Context, jobID string) (*models.Snapshot, error) {
	if jobID == "" {
		return nil, &models.ValidationError{Field: "job_id", Message: "job id is required"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var result statusResponse
	if err := c.do(ctx, "poll status", http.MethodGet, "/api/status/"+url.PathEscape(jobID), nil, "", &result); err != nil {
		return nil, err
	}

	snapshot, err := result.toSnapshot(jobID)
	if err != nil {
		return nil, err
	}

	if snapshot.State == models.JobStateCompleted {
		c.markCompleted(jobID)
	}

	return snapshot, nil
}

// FetchResults retrieves the analysis result of a job already seen completed by PollStatus.
func (c *Client) FetchResults(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	if !c.isCompleted(jobID) {
		return nil, &models.PreconditionError{
			Op:      "fetch results",
			Message: fmt.Sprintf("job %s has not been reported completed", jobID),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var envelope resultsEnvelope
	err := c.do(ctx, "fetch results", http.MethodGet, "/api/results/"+url.PathEscape(jobID), nil, "", &envelope)
	if err != nil {
		// The service answers 400 while the job is still running
		var svcErr *models.ServiceError
		if errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusBadRequest {
			return nil, &models.PreconditionError{Op: "fetch results", Message: svcErr.Message}
		}
		return nil, err
	}

	if err := envelope.validate(); err != nil {
		return nil, err
	}

	return envelope.Results.toModel(jobID), nil
}

// HealthCheck probes the service liveness endpoint.
func (c *Client) HealthCheck(ctx context.Context) (*models.HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var result healthResponse
	if err := c.do(ctx, "health check", http.MethodGet, "/api/health", nil, "", &result); err != nil {
		return nil, err
	}

	status := strings.ToLower(result.Status)
	return &models.HealthStatus{
		Status:    result.Status,
		Timestamp: result.Timestamp,
		Healthy:   status == "healthy" || status == "ok",
		CheckedAt: time.Now(),
	}, nil
}

// ListJobs retrieves the service's diagnostic job listing.
func (c *Client) ListJobs(ctx context.Context) ([]models.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var result jobsResponse
	if err := c.do(ctx, "list jobs", http.MethodGet, "/api/jobs", nil, "", &result); err != nil {
		return nil, err
	}

	snapshots := make([]models.Snapshot, 0, len(result.Jobs))
	for i := range result.Jobs {
		snapshot, err := result.Jobs[i].toSnapshot("")
		if err != nil {
			if c.logger != nil {
				c.logger.Warn().Err(err).Str("job_id", result.Jobs[i].JobID).Msg("Skipping job with unknown status")
			}
			continue
		}
		snapshots = append(snapshots, *snapshot)
	}
	return snapshots, nil
}

// DownloadVideo streams the media behind a result's video URL into w.
// The service removes media after a while, so a 404 is an expected ServiceError.
func (c *Client) DownloadVideo(ctx context.Context, videoURL string, w io.Writer) (int64, error) {
	if videoURL == "" {
		return 0, &models.ValidationError{Field: "video_url", Message: "result carries no video url"}
	}

	target, err := c.resolve(videoURL)
	if err != nil {
		return 0, &models.ValidationError{Field: "video_url", Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	resp, err := c.send(ctx, "download video", http.MethodGet, target, nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &models.TransportError{Op: "download video", Endpoint: videoURL, Timeout: isTimeout(err), Err: err}
	}
	return n, nil
}

// do sends a request against a service path and decodes the JSON body into result.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, result interface{}) error {
	resp, err := c.send(ctx, op, method, c.baseURL+path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &models.TransportError{
			Op:       op,
			Endpoint: path,
			Timeout:  isTimeout(err),
			Err:      fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

// send executes one request and converts failures into typed errors.
// On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, op, method, target string, body io.Reader, contentType string) (*http.Response, error) {
	endpoint := strings.TrimPrefix(target, c.baseURL)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &models.TransportError{Op: op, Endpoint: endpoint, Timeout: isTimeout(err), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", common.UserAgent())

	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)

	if c.logger != nil {
		c.logger.Debug().
			Str("method", method).
			Str("url", target).
			Str("request_id", requestID).
			Msg("Detection API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.TransportError{Op: op, Endpoint: endpoint, Timeout: isTimeout(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &models.ServiceError{
			Op:         op,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp),
		}
	}

	return resp, nil
}

func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid video url: %w", err)
	}
	return base.ResolveReference(u).String(), nil
}

func (c *Client) markCompleted(jobID string) {
	c.mu.Lock()
	c.completed[jobID] = true
	c.mu.Unlock()
}

func (c *Client) isCompleted(jobID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completed[jobID]
}

// readErrorMessage extracts {"error": "..."} or falls back to the raw body or status text.
func readErrorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
