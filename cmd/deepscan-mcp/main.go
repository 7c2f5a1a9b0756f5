package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/detector"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/storage"
)

func main() {
	// Load configuration
	configPath := os.Getenv("DEEPSCAN_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("deepscan.toml"); err == nil {
			configPath = "deepscan.toml"
		}
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := common.NewQuietLogger()

	client := detector.NewClientFromConfig(config, logger)

	// History is read-only here and unavailable while a server holds the database
	var records interfaces.JobRecordStorage
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Warn().Err(err).Msg("History tools disabled")
	} else {
		defer storageManager.Close()
		records = storageManager.JobRecordStorage()
	}

	mcpServer := server.NewMCPServer(
		"deepscan",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Detection service tools
	mcpServer.AddTool(createCheckServiceHealthTool(), handleCheckServiceHealth(client, logger))
	mcpServer.AddTool(createGetJobStatusTool(), handleGetJobStatus(client, logger))
	mcpServer.AddTool(createGetJobResultsTool(), handleGetJobResults(client, config.Report.PreviewFrames, logger))
	mcpServer.AddTool(createListRemoteJobsTool(), handleListRemoteJobs(client, logger))

	// Local history tools
	mcpServer.AddTool(createListHistoryTool(), handleListHistory(records, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
		os.Exit(1)
	}
}
