package domain

import "time"

type ExportStatus string

const (
	ExportStatusWaiting ExportStatus = "waiting"
	ExportStatusRunning ExportStatus = "running"
	ExportStatusDone    ExportStatus = "done"
	ExportStatusFailed  ExportStatus = "failed"
)

// Export is an asynchronous file-generation job. Clients poll the download
// URL: 409 while waiting/running, 410 once failed, 200 when done, 404 after
// the artifact expired.
type Export struct {
	ID          string
	OrganizerID string
	EventID     string
	Provider    string
	Status      ExportStatus
	ObjectKey   string
	FileName    string
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Expired reports whether a finished export's artifact has passed its ttl.
func (e Export) Expired(now time.Time, ttl time.Duration) bool {
	if e.Status != ExportStatusDone || e.CompletedAt == nil {
		return false
	}
	return now.Sub(*e.CompletedAt) > ttl
}
