package report

import (
	"fmt"
	"strings"

	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/models"
)

// Markdown formats an analysis for assistant tools
func Markdown(doc Document) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Analysis %s\n\n", orDash(doc.Job.ID)))
	b.WriteString(fmt.Sprintf("**File:** %s\n", orDash(doc.Job.Filename)))
	b.WriteString(fmt.Sprintf("**State:** %s\n", doc.Job.State))
	if doc.Job.Error != "" {
		b.WriteString(fmt.Sprintf("**Error:** %s\n", doc.Job.Error))
	}

	r := doc.Result
	if r == nil {
		return b.String()
	}

	b.WriteString(fmt.Sprintf("**Verdict:** %s\n", r.OverallPrediction))
	b.WriteString(fmt.Sprintf("**Fake frames:** %d of %d (%.1f%%)\n", r.FakeFramesCount, r.TotalFramesAnalyzed, r.FakePercentage))
	b.WriteString(fmt.Sprintf("**Processing time:** %.1fs\n", r.ProcessingTimeSeconds))

	b.WriteString("\n## Video\n\n")
	b.WriteString(fmt.Sprintf("- **Resolution:** %dx%d\n", r.VideoInfo.Width, r.VideoInfo.Height))
	b.WriteString(fmt.Sprintf("- **FPS:** %.2f\n", r.VideoInfo.FPS))
	b.WriteString(fmt.Sprintf("- **Duration:** %s\n", common.FormatDuration(r.VideoInfo.DurationSeconds)))
	b.WriteString(fmt.Sprintf("- **Size:** %s\n", common.FormatFileSize(int64(r.VideoInfo.SizeMegabytes*1024*1024))))

	s := doc.Statistics
	if s == nil {
		return b.String()
	}

	b.WriteString("\n## Confidence\n\n")
	b.WriteString(fmt.Sprintf("- **Mean:** %.1f%%\n", s.Summary.MeanConfidence*100))
	b.WriteString(fmt.Sprintf("- **Max:** %.1f%%\n", s.Summary.MaxConfidence*100))
	b.WriteString(fmt.Sprintf("- **Min:** %.1f%%\n", s.Summary.MinConfidence*100))

	b.WriteString("\n| Bucket | Frames |\n|---|---|\n")
	for i, label := range s.Histogram.Labels {
		b.WriteString(fmt.Sprintf("| %s | %d |\n", label, s.Histogram.Counts[i]))
	}

	if len(s.Preview) > 0 {
		b.WriteString(fmt.Sprintf("\n## First %d frames\n\n", len(s.Preview)))
		b.WriteString("| Frame | Time | Prediction | Confidence |\n|---|---|---|---|\n")
		for _, f := range s.Preview {
			b.WriteString(fmt.Sprintf("| %d | %.2fs | %s | %.1f%% |\n", f.FrameNumber, f.TimestampSeconds, f.Prediction, f.Confidence*100))
		}
	}

	return b.String()
}

// MarkdownSnapshot formats one remote job status
func MarkdownSnapshot(s models.Snapshot) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Job %s\n\n", s.JobID))
	b.WriteString(fmt.Sprintf("**Status:** %s\n", s.State))
	b.WriteString(fmt.Sprintf("**Progress:** %d%%\n", s.Progress))
	if s.Filename != "" {
		b.WriteString(fmt.Sprintf("**File:** %s\n", s.Filename))
	}
	if s.Error != "" {
		b.WriteString(fmt.Sprintf("**Error:** %s\n", s.Error))
	}
	return b.String()
}

// MarkdownSnapshots formats the remote job listing
func MarkdownSnapshots(snapshots []models.Snapshot) string {
	if len(snapshots) == 0 {
		return "No jobs found."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Jobs (%d)\n\n", len(snapshots)))
	b.WriteString("| Job | Status | Progress | File |\n|---|---|---|---|\n")
	for _, s := range snapshots {
		b.WriteString(fmt.Sprintf("| %s | %s | %d%% | %s |\n", s.JobID, s.State, s.Progress, orDash(s.Filename)))
	}
	return b.String()
}

// MarkdownHistory formats local job history
func MarkdownHistory(records []*models.JobRecord) string {
	if len(records) == 0 {
		return "No analyses recorded."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# History (%d)\n\n", len(records)))
	for i, r := range records {
		b.WriteString(fmt.Sprintf("## %d. %s\n\n", i+1, orDash(r.Filename)))
		b.WriteString(fmt.Sprintf("- **State:** %s\n", r.State))
		b.WriteString(fmt.Sprintf("- **Submitted:** %s\n", r.CreatedAt.Format("2006-01-02 15:04:05")))
		if r.RemoteJobID != "" {
			b.WriteString(fmt.Sprintf("- **Job:** %s\n", r.RemoteJobID))
		}
		b.WriteString(fmt.Sprintf("- **Verdict:** %s\n\n", verdict(r)))
	}
	return b.String()
}

// MarkdownHealth formats a health probe outcome
func MarkdownHealth(status models.HealthStatus) string {
	state := "Healthy"
	if !status.Healthy {
		state = "Unhealthy"
	}
	return fmt.Sprintf("**Detection service:** %s (%s)\n", state, orDash(status.Status))
}
