package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"poll-reader/models"
)

// reportHeader is shared by the CSV and XLSX report writers.
var reportHeader = []string{"metric", "label", "harris", "trump"}

// CSVWriter writes a PollReport to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteReport appends one row per available statistic.
func (c *CSVWriter) WriteReport(r *models.PollReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, row := range reportRows(r) {
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// NewReportWriter picks a writer from the file extension: .xlsx gets an Excel
// workbook, anything else CSV.
func NewReportWriter(path string) (ReportWriter, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return NewXLSXWriter(path)
	}
	return NewCSVWriter(path)
}

// reportRows flattens a report into string rows matching reportHeader.
// Statistics that failed to compute are omitted.
func reportRows(r *models.PollReport) [][]string {
	rows := [][]string{
		{"total_polls", "", strconv.Itoa(r.TotalPolls), strconv.Itoa(r.TotalPolls)},
		{"likely_voter_polls", "", strconv.Itoa(r.LikelyVoterPolls), strconv.Itoa(r.LikelyVoterPolls)},
	}
	if r.Highest != nil {
		pct := formatFloat(r.Highest.Percentage)
		harris, trump := pct, pct
		switch r.Highest.Label {
		case models.LabelHarris:
			trump = ""
		case models.LabelTrump:
			harris = ""
		}
		rows = append(rows, []string{"highest_percentage", r.Highest.Label, harris, trump})
	}
	if r.LikelyVoterAverage != nil {
		rows = append(rows, []string{"likely_voter_average", "",
			formatFloat(r.LikelyVoterAverage.Harris), formatFloat(r.LikelyVoterAverage.Trump)})
	}
	if r.HistoryChange != nil {
		rows = append(rows, []string{"history_change", "",
			formatFloat(r.HistoryChange.Harris), formatFloat(r.HistoryChange.Trump)})
	}
	return rows
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
