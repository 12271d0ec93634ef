package models

import "time"

// Statuses carried by TaskEvent messages.
const (
	StatusQueued      = "queued"
	StatusPreparing   = "preparing"
	StatusDownloading = "downloading"
	StatusUploading   = "uploading"
	StatusUploaded    = "uploaded"
	StatusFailed      = "failed"
	StatusFinished    = "finished"
)

// ProgressInfo represents the byte progress of an upload
type ProgressInfo struct {
	Current int64 `json:"current"`
	Total   int64 `json:"total"`
	Percent int   `json:"percent"`
}

// TaskEvent is a log message emitted while a download batch runs
type TaskEvent struct {
	TaskID    string        `json:"task_id"`
	Title     string        `json:"title"`
	Episode   int           `json:"episode,omitempty"`
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Progress  *ProgressInfo `json:"progress,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
