package jobs

import "github.com/ternarybob/deepscan/internal/models"

// StageMessage returns the caption shown next to the progress bar.
func StageMessage(job models.Job) string {
	switch job.State {
	case models.JobStateSubmitting:
		return "Uploading video..."
	case models.JobStateQueued:
		return "Video uploaded successfully, queued for processing..."
	case models.JobStateProcessing:
		switch {
		case job.Progress < 30:
			return "Extracting frames from video..."
		case job.Progress < 60:
			return "Analyzing video properties..."
		case job.Progress < 90:
			return "Running AI detection on frames..."
		default:
			return "Finalizing results..."
		}
	case models.JobStateCompleted:
		return "Analysis complete"
	case models.JobStateFailed:
		return job.Error
	case models.JobStateCancelled:
		return "Analysis cancelled"
	default:
		return ""
	}
}
