package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"

	"poll-reader/models"
)

const reportSheet = "Report"

// XLSXWriter writes a PollReport to an Excel workbook. Numeric cells are
// stored as numbers. The workbook is saved on Close.
type XLSXWriter struct {
	mu   sync.Mutex
	path string
	file *excelize.File
	next int
}

// NewXLSXWriter prepares a workbook with a header row. Nothing is written to
// disk until Close.
func NewXLSXWriter(path string) (*XLSXWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	w := &XLSXWriter{path: path, file: f, next: 1}
	if err := w.writeRow(reportHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// WriteReport appends one row per available statistic.
func (x *XLSXWriter) WriteReport(r *models.PollReport) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, row := range reportRows(r) {
		if err := x.writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (x *XLSXWriter) writeRow(row []string) error {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cells[i] = f
		} else {
			cells[i] = v
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, x.next)
	if err != nil {
		return fmt.Errorf("xlsx: cell name: %w", err)
	}
	if err := x.file.SetSheetRow(reportSheet, cell, &cells); err != nil {
		return fmt.Errorf("xlsx: write row %d: %w", x.next, err)
	}
	x.next++
	return nil
}

// Close saves the workbook to disk and releases it.
func (x *XLSXWriter) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.file.SaveAs(x.path); err != nil {
		_ = x.file.Close()
		return fmt.Errorf("xlsx: save %q: %w", x.path, err)
	}
	return x.file.Close()
}
