package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/deepscan/internal/aggregator"
	"github.com/ternarybob/deepscan/internal/detector"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
	"github.com/ternarybob/deepscan/internal/report"
	"github.com/ternarybob/deepscan/internal/storage"
)

// requestContext bounds one-shot queries by the configured request timeout
func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), config.Service.RequestTimeoutDuration())
}

func runStatus(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: deepscan status <job-id>")
		return 2
	}

	ctx, cancel := requestContext()
	defer cancel()

	snapshot, err := detector.NewClientFromConfig(config, logger).PollStatus(ctx, args[0])
	if err != nil {
		return fail(err)
	}
	if err := report.WriteSnapshot(os.Stdout, format, *snapshot); err != nil {
		return fail(err)
	}
	return 0
}

func runResults(args []string) int {
	fs := flag.NewFlagSet("results", flag.ContinueOnError)
	videoOut := fs.String("video", "", "Save the annotated video to this path")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: deepscan results [-video out.mp4] <job-id>")
		return 2
	}
	jobID := fs.Arg(0)

	client := detector.NewClientFromConfig(config, logger)

	ctx, cancel := requestContext()
	defer cancel()

	// Results are only served for a job this client has seen completed
	snapshot, err := client.PollStatus(ctx, jobID)
	if err != nil {
		return fail(err)
	}
	if snapshot.State != models.JobStateCompleted {
		if err := report.WriteSnapshot(os.Stdout, format, *snapshot); err != nil {
			return fail(err)
		}
		fmt.Fprintf(os.Stderr, "Job %s is %s; results are available once it completes\n", jobID, snapshot.State)
		return 1
	}

	result, err := client.FetchResults(ctx, jobID)
	if err != nil {
		return fail(err)
	}

	stats, err := aggregator.AggregateWithOptions(result, aggregator.Options{PreviewFrames: config.Report.PreviewFrames})
	if err != nil {
		return fail(err)
	}

	doc := report.Document{
		Job:        models.Job{ID: jobID, State: models.JobStateCompleted, Progress: 100, Filename: snapshot.Filename},
		Result:     result,
		Statistics: stats,
	}
	if err := report.Render(os.Stdout, format, doc); err != nil {
		return fail(err)
	}

	if *videoOut != "" {
		// Downloads can outlast the request timeout
		if err := saveVideo(context.Background(), client, result.VideoURL, *videoOut); err != nil {
			return fail(err)
		}
	}
	return 0
}

func runJobs(args []string) int {
	ctx, cancel := requestContext()
	defer cancel()

	snapshots, err := detector.NewClientFromConfig(config, logger).ListJobs(ctx)
	if err != nil {
		return fail(err)
	}
	if err := report.WriteSnapshots(os.Stdout, format, snapshots); err != nil {
		return fail(err)
	}
	return 0
}

func runHealth(args []string) int {
	ctx, cancel := requestContext()
	defer cancel()

	status, err := detector.NewClientFromConfig(config, logger).HealthCheck(ctx)
	if err != nil {
		return fail(err)
	}
	if err := report.WriteHealth(os.Stdout, format, *status); err != nil {
		return fail(err)
	}
	if !status.Healthy {
		return 1
	}
	return 0
}

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Maximum records to list")
	state := fs.String("state", "", "Only list records in this state")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	manager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return fail(err)
	}
	defer manager.Close()
	records := manager.JobRecordStorage()

	ctx := context.Background()

	if fs.NArg() == 1 {
		record, err := records.GetRecord(ctx, fs.Arg(0))
		if err != nil {
			return fail(err)
		}
		if err := report.WriteHistory(os.Stdout, format, []*models.JobRecord{record}); err != nil {
			return fail(err)
		}
		return 0
	}

	list, err := records.ListRecords(ctx, &interfaces.RecordListOptions{
		State: models.JobState(*state),
		Limit: *limit,
	})
	if err != nil {
		return fail(err)
	}
	if err := report.WriteHistory(os.Stdout, format, list); err != nil {
		return fail(err)
	}

	if format == report.FormatText {
		if total, err := records.CountRecords(ctx); err == nil {
			fmt.Fprintf(os.Stderr, "%d of %d records\n", len(list), total)
		}
	}
	return 0
}
