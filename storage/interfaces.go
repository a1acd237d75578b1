package storage

import "poll-reader/models"

// PollWriter is the interface any poll persistence backend must satisfy.
type PollWriter interface {
	Write(table *models.PollTable) error
	Close() error
}

// ReportWriter is the interface for exporting a computed PollReport.
type ReportWriter interface {
	WriteReport(report *models.PollReport) error
	Close() error
}
