package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createCheckServiceHealthTool returns the check_service_health tool definition
func createCheckServiceHealthTool() mcp.Tool {
	return mcp.NewTool("check_service_health",
		mcp.WithDescription("Probe the deepfake detection service and report whether it is healthy"),
	)
}

// createGetJobStatusTool returns the get_job_status tool definition
func createGetJobStatusTool() mcp.Tool {
	return mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the state and progress of a detection job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID assigned by the detection service on upload"),
		),
	)
}

// createGetJobResultsTool returns the get_job_results tool definition
func createGetJobResultsTool() mcp.Tool {
	return mcp.NewTool("get_job_results",
		mcp.WithDescription("Fetch the verdict, per-frame results and derived statistics of a completed job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID of a completed job"),
		),
	)
}

// createListRemoteJobsTool returns the list_remote_jobs tool definition
func createListRemoteJobsTool() mcp.Tool {
	return mcp.NewTool("list_remote_jobs",
		mcp.WithDescription("List all jobs the detection service currently knows about"),
	)
}

// createListHistoryTool returns the list_history tool definition
func createListHistoryTool() mcp.Tool {
	return mcp.NewTool("list_history",
		mcp.WithDescription("List analyses recorded locally, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 100)"),
		),
		mcp.WithString("state",
			mcp.Description("Filter: completed, failed, cancelled"),
		),
	)
}
