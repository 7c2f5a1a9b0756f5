package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/aggregator"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
	"github.com/ternarybob/deepscan/internal/report"
)

// detectorClient is the detector surface the tools use
type detectorClient interface {
	interfaces.DetectorClient
	ListJobs(ctx context.Context) ([]models.Snapshot, error)
}

// textResult wraps markdown in a tool result
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleCheckServiceHealth implements the check_service_health tool
func handleCheckServiceHealth(client detectorClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := client.HealthCheck(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Health check failed")
			return textResult(fmt.Sprintf("Detection service unreachable: %v", err)), nil
		}
		return textResult(report.MarkdownHealth(*status)), nil
	}
}

// handleGetJobStatus implements the get_job_status tool
func handleGetJobStatus(client detectorClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return textResult("Error: job_id parameter is required"), nil
		}

		snapshot, err := client.PollStatus(ctx, jobID)
		if err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("Status poll failed")
			return textResult(fmt.Sprintf("Status error: %v", err)), nil
		}
		return textResult(report.MarkdownSnapshot(*snapshot)), nil
	}
}

// handleGetJobResults implements the get_job_results tool
func handleGetJobResults(client detectorClient, previewFrames int, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return textResult("Error: job_id parameter is required"), nil
		}

		snapshot, err := client.PollStatus(ctx, jobID)
		if err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("Status poll failed")
			return textResult(fmt.Sprintf("Status error: %v", err)), nil
		}
		if snapshot.State != models.JobStateCompleted {
			return textResult(report.MarkdownSnapshot(*snapshot) +
				"\nResults are available once the job completes.\n"), nil
		}

		result, err := client.FetchResults(ctx, jobID)
		if err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("Result fetch failed")
			return textResult(fmt.Sprintf("Results error: %v", err)), nil
		}

		stats, err := aggregator.AggregateWithOptions(result, aggregator.Options{PreviewFrames: previewFrames})
		if err != nil {
			logger.Warn().Err(err).Str("job_id", jobID).Msg("Result rejected")
			return textResult(fmt.Sprintf("Results rejected: %v", err)), nil
		}

		return textResult(report.Markdown(report.Document{
			Job:        models.Job{ID: jobID, State: models.JobStateCompleted, Progress: 100, Filename: snapshot.Filename},
			Result:     result,
			Statistics: stats,
		})), nil
	}
}

// handleListRemoteJobs implements the list_remote_jobs tool
func handleListRemoteJobs(client detectorClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snapshots, err := client.ListJobs(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("List jobs failed")
			return textResult(fmt.Sprintf("List error: %v", err)), nil
		}
		return textResult(report.MarkdownSnapshots(snapshots)), nil
	}
}

// handleListHistory implements the list_history tool
func handleListHistory(records interfaces.JobRecordStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if records == nil {
			return textResult("History is unavailable: the database is in use or could not be opened"), nil
		}

		limit := request.GetInt("limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 100
		}

		list, err := records.ListRecords(ctx, &interfaces.RecordListOptions{
			State: models.JobState(request.GetString("state", "")),
			Limit: limit,
		})
		if err != nil {
			logger.Error().Err(err).Msg("List history failed")
			return textResult(fmt.Sprintf("History error: %v", err)), nil
		}
		return textResult(report.MarkdownHistory(list)), nil
	}
}
