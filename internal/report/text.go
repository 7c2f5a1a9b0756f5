package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/models"
)

const histogramBarWidth = 40

func writeText(w io.Writer, doc Document) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Job:        %s\n", orDash(doc.Job.ID))
	fmt.Fprintf(&b, "File:       %s\n", orDash(doc.Job.Filename))
	fmt.Fprintf(&b, "State:      %s\n", doc.Job.State)
	if doc.Job.Error != "" {
		fmt.Fprintf(&b, "Error:      %s\n", doc.Job.Error)
	}

	if doc.Result == nil {
		_, err := io.WriteString(w, b.String())
		return err
	}

	r := doc.Result
	fmt.Fprintf(&b, "Verdict:    %s (%.1f%% of frames fake)\n", r.OverallPrediction, r.FakePercentage)
	fmt.Fprintf(&b, "Frames:     %d analyzed, %d fake, %d real\n", r.TotalFramesAnalyzed, r.FakeFramesCount, r.RealFramesCount)
	fmt.Fprintf(&b, "Video:      %dx%d @ %.2f fps, %s, %s\n",
		r.VideoInfo.Width, r.VideoInfo.Height, r.VideoInfo.FPS,
		common.FormatDuration(r.VideoInfo.DurationSeconds),
		common.FormatFileSize(int64(r.VideoInfo.SizeMegabytes*1024*1024)))
	fmt.Fprintf(&b, "Processing: %.1fs\n", r.ProcessingTimeSeconds)

	if s := doc.Statistics; s != nil {
		fmt.Fprintf(&b, "\nConfidence: mean %.1f%%, max %.1f%%, min %.1f%%\n",
			s.Summary.MeanConfidence*100, s.Summary.MaxConfidence*100, s.Summary.MinConfidence*100)

		b.WriteString("\nConfidence distribution\n")
		writeHistogram(&b, s.Histogram)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	if doc.Statistics != nil && len(doc.Statistics.Preview) > 0 {
		fmt.Fprintf(w, "\nFirst %d frames\n", len(doc.Statistics.Preview))
		return writeFrameTable(w, doc.Statistics.Preview)
	}
	return nil
}

func writeHistogram(b *strings.Builder, h models.Histogram) {
	peak := 0
	for _, c := range h.Counts {
		if c > peak {
			peak = c
		}
	}
	for i, label := range h.Labels {
		bar := 0
		if peak > 0 {
			bar = h.Counts[i] * histogramBarWidth / peak
		}
		fmt.Fprintf(b, "  %-8s %-*s %d\n", label, histogramBarWidth, strings.Repeat("#", bar), h.Counts[i])
	}
}

func writeFrameTable(w io.Writer, frames []models.FrameResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tTIME\tPREDICTION\tCONFIDENCE\tP(FAKE)")
	for _, f := range frames {
		fmt.Fprintf(tw, "%d\t%.2fs\t%s\t%.1f%%\t%.3f\n", f.FrameNumber, f.TimestampSeconds, f.Prediction, f.Confidence*100, f.ProbabilityFake)
	}
	return tw.Flush()
}

// WriteSnapshot writes a remote job status.
func WriteSnapshot(w io.Writer, format Format, snapshot models.Snapshot) error {
	switch format {
	case FormatText:
		_, err := fmt.Fprintf(w, "%s  %s  %d%%  %s\n", snapshot.JobID, snapshot.State, snapshot.Progress, orDash(snapshot.Error))
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, MarkdownSnapshot(snapshot))
		return err
	default:
		return Encode(w, format, snapshot)
	}
}

// WriteSnapshots writes the remote job listing.
func WriteSnapshots(w io.Writer, format Format, snapshots []models.Snapshot) error {
	switch format {
	case FormatText:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "JOB\tSTATE\tPROGRESS\tFILE\tCREATED")
		for _, s := range snapshots {
			fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\n", s.JobID, s.State, s.Progress, orDash(s.Filename), orDash(s.CreatedAt))
		}
		return tw.Flush()
	case FormatMarkdown:
		_, err := io.WriteString(w, MarkdownSnapshots(snapshots))
		return err
	default:
		return Encode(w, format, snapshots)
	}
}

// WriteHistory writes local job history records.
func WriteHistory(w io.Writer, format Format, records []*models.JobRecord) error {
	switch format {
	case FormatText:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SUBMITTED\tFILE\tSTATE\tVERDICT\tJOB")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				r.CreatedAt.Format("2006-01-02 15:04:05"), orDash(r.Filename), r.State, verdict(r), orDash(r.RemoteJobID))
		}
		return tw.Flush()
	case FormatMarkdown:
		_, err := io.WriteString(w, MarkdownHistory(records))
		return err
	default:
		return Encode(w, format, records)
	}
}

// WriteHealth writes a health probe outcome.
func WriteHealth(w io.Writer, format Format, status models.HealthStatus) error {
	switch format {
	case FormatText:
		state := "healthy"
		if !status.Healthy {
			state = "unhealthy"
		}
		_, err := fmt.Fprintf(w, "%s (%s) at %s\n", state, orDash(status.Status), status.CheckedAt.Format("15:04:05"))
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, MarkdownHealth(status))
		return err
	default:
		return Encode(w, format, status)
	}
}

func verdict(r *models.JobRecord) string {
	if r.State != models.JobStateCompleted {
		if r.Error != "" {
			return r.Error
		}
		return "-"
	}
	return fmt.Sprintf("%s %.1f%%", r.OverallPrediction, r.FakePercentage)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
