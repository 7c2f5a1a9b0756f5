package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ternarybob/deepscan/internal/app"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/detector"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
	"github.com/ternarybob/deepscan/internal/report"
)

func runAnalyze(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	videoOut := fs.String("video", "", "Save the annotated video to this path once the analysis completes")
	quiet := fs.Bool("quiet", false, "Do not print progress")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: deepscan analyze [-video out.mp4] [-quiet] <file>")
		return 2
	}
	path := fs.Arg(0)

	application, err := app.New(config, logger)
	if err != nil {
		return fail(err)
	}
	defer application.Close()

	if !*quiet {
		printer := &progressPrinter{out: os.Stderr}
		if err := application.EventService.Subscribe(interfaces.EventJobStateChanged, printer.handle); err != nil {
			return fail(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Controller.Submit(path); err != nil {
		return fail(err)
	}

	job, err := application.Controller.Wait(ctx)
	if ctx.Err() != nil {
		application.Controller.Cancel()
		fmt.Fprintln(os.Stderr, "Analysis cancelled")
		return 130
	}
	if err != nil {
		return fail(err)
	}

	result, stats, ok := application.Controller.Result()
	if !ok {
		return fail(fmt.Errorf("job ended in state %s", job.State))
	}

	if err := report.Render(os.Stdout, format, report.Document{Job: job, Result: result, Statistics: stats}); err != nil {
		return fail(err)
	}

	if *videoOut != "" {
		if err := saveVideo(ctx, application.Client, result.VideoURL, *videoOut); err != nil {
			return fail(err)
		}
	}

	return 0
}

// saveVideo downloads the annotated video, removing partial files on failure
func saveVideo(ctx context.Context, client *detector.Client, videoURL, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := client.DownloadVideo(ctx, videoURL, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to download annotated video: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Annotated video saved to %s (%s)\n", path, common.FormatFileSize(n))
	return nil
}

// progressPrinter writes one line per visible change of state, progress or stage
type progressPrinter struct {
	out  io.Writer
	mu   sync.Mutex
	last string
}

func (p *progressPrinter) handle(ctx context.Context, event interfaces.Event) error {
	jobEvent, ok := event.Payload.(models.JobEvent)
	if !ok || jobEvent.Job.State == models.JobStateIdle {
		return nil
	}

	line := fmt.Sprintf("[%-10s] %3d%%  %s", jobEvent.Job.State, jobEvent.Job.Progress, jobEvent.Stage)

	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return nil
	}
	p.last = line
	_, err := fmt.Fprintln(p.out, line)
	return err
}
