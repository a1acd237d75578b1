package models

import (
	"fmt"
	"slices"
)

// Row is one parsed polling record. The table stores rows column-wise, so a
// Row only exists while parsing or when a single record is read back.
type Row struct {
	Month        string
	Date         int
	SampleSize   int
	SampleType   string
	HarrisResult float64
	TrumpResult  float64
}

// PollTable holds polling records as six parallel columns in input order.
// The zero value is an unloaded table; NewPollTable returns a loaded one.
// A PollTable never changes after construction and is safe for concurrent reads.
type PollTable struct {
	months      []string
	dates       []int
	sampleSizes []int
	sampleTypes []string
	harris      []float64
	trump       []float64
	loaded      bool
}

// NewPollTable builds a loaded table from rows. Rows must be in chronological
// order, earliest first, for window-based queries to be meaningful.
func NewPollTable(rows []Row) *PollTable {
	t := &PollTable{
		months:      make([]string, 0, len(rows)),
		dates:       make([]int, 0, len(rows)),
		sampleSizes: make([]int, 0, len(rows)),
		sampleTypes: make([]string, 0, len(rows)),
		harris:      make([]float64, 0, len(rows)),
		trump:       make([]float64, 0, len(rows)),
		loaded:      true,
	}
	for _, r := range rows {
		t.months = append(t.months, r.Month)
		t.dates = append(t.dates, r.Date)
		t.sampleSizes = append(t.sampleSizes, r.SampleSize)
		t.sampleTypes = append(t.sampleTypes, r.SampleType)
		t.harris = append(t.harris, r.HarrisResult)
		t.trump = append(t.trump, r.TrumpResult)
	}
	return t
}

// Loaded reports whether the table was populated by NewPollTable.
func (t *PollTable) Loaded() bool { return t != nil && t.loaded }

// Len returns the number of rows.
func (t *PollTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.months)
}

// Row returns the record at index i in insertion order.
func (t *PollTable) Row(i int) Row {
	return Row{
		Month:        t.months[i],
		Date:         t.dates[i],
		SampleSize:   t.sampleSizes[i],
		SampleType:   t.sampleTypes[i],
		HarrisResult: t.harris[i],
		TrumpResult:  t.trump[i],
	}
}

// Rows materialises every record, e.g. for persistence.
func (t *PollTable) Rows() []Row {
	rows := make([]Row, t.Len())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

func (t *PollTable) Months() []string { return slices.Clone(t.months) }
func (t *PollTable) Dates() []int { return slices.Clone(t.dates) }
func (t *PollTable) SampleSizes() []int { return slices.Clone(t.sampleSizes) }
func (t *PollTable) SampleTypes() []string { return slices.Clone(t.sampleTypes) }
func (t *PollTable) HarrisResults() []float64 { return slices.Clone(t.harris) }
func (t *PollTable) TrumpResults() []float64 { return slices.Clone(t.trump) }

// Candidate labels returned by the highest polling query.
const (
	LabelHarris = "Harris"
	LabelTrump  = "Trump"
	LabelEven   = "EVEN"
)

// CandidateLead names the candidate with the highest single result and that
// result as a percentage with one decimal digit.
type CandidateLead struct {
	Label      string
	Percentage float64
}

func (c CandidateLead) String() string {
	return fmt.Sprintf("%s %.1f%%", c.Label, c.Percentage)
}

// CandidatePair carries one value per candidate, Harris first.
type CandidatePair struct {
	Harris float64
	Trump  float64
}

// PollReport holds the computed statistics over a loaded table.
// A nil field means that query failed for this dataset.
type PollReport struct {
	TotalPolls         int
	LikelyVoterPolls   int
	Highest            *CandidateLead
	LikelyVoterAverage *CandidatePair
	HistoryChange      *CandidatePair
}
