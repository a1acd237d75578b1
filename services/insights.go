package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"poll-reader/models"
	"poll-reader/utils"
)

const (
	// LikelyVoter is the sample type code for likely-voter polls.
	LikelyVoter = "LV"
	// HistoryWindow is the number of polls in each of the earliest and latest windows.
	HistoryWindow = 30
)

// PollService answers read-only queries over a loaded PollTable.
type PollService struct {
	logger *utils.Logger
}

func NewPollService(logger *utils.Logger) *PollService {
	return &PollService{logger: logger}
}

// HighestPollingCandidate compares the highest single result of each
// candidate. The maxima are taken independently and may come from different
// polls. Equal maxima yield the label EVEN.
func (s *PollService) HighestPollingCandidate(t *models.PollTable) (models.CandidateLead, error) {
	if !t.Loaded() {
		return models.CandidateLead{}, ErrNotLoaded
	}

	harrisMax, okHarris := maxOf(t.HarrisResults())
	trumpMax, okTrump := maxOf(t.TrumpResults())
	if !okHarris || !okTrump {
		return models.CandidateLead{}, fmt.Errorf("highest polling candidate: %w", ErrEmptyDataset)
	}

	switch {
	case trumpMax > harrisMax:
		return models.CandidateLead{Label: models.LabelTrump, Percentage: percent1(trumpMax)}, nil
	case harrisMax > trumpMax:
		return models.CandidateLead{Label: models.LabelHarris, Percentage: percent1(harrisMax)}, nil
	default:
		return models.CandidateLead{Label: models.LabelEven, Percentage: percent1(harrisMax)}, nil
	}
}

// LikelyVoterPollingAverage averages each candidate's result over polls whose
// sample type is exactly "LV". Results are fractions, not percentages.
func (s *PollService) LikelyVoterPollingAverage(t *models.PollTable) (models.CandidatePair, error) {
	if !t.Loaded() {
		return models.CandidatePair{}, ErrNotLoaded
	}

	types := t.SampleTypes()
	harris := t.HarrisResults()
	trump := t.TrumpResults()

	var sum models.CandidatePair
	count := 0
	for i, st := range types {
		if st != LikelyVoter {
			continue
		}
		sum.Harris += harris[i]
		sum.Trump += trump[i]
		count++
	}
	if count == 0 {
		return models.CandidatePair{}, fmt.Errorf("likely voter average: %w", ErrNoMatchingRows)
	}

	return models.CandidatePair{
		Harris: sum.Harris / float64(count),
		Trump:  sum.Trump / float64(count),
	}, nil
}

// PollingHistoryChange returns, per candidate, the average of the latest
// HistoryWindow polls minus the average of the earliest HistoryWindow polls.
// With fewer than 2*HistoryWindow polls the windows overlap.
func (s *PollService) PollingHistoryChange(t *models.PollTable) (models.CandidatePair, error) {
	if !t.Loaded() {
		return models.CandidatePair{}, ErrNotLoaded
	}

	n := HistoryWindow
	if t.Len() < n {
		return models.CandidatePair{}, &InsufficientDataError{Need: n, Have: t.Len()}
	}
	if t.Len() < 2*n {
		s.logger.Debug("[polls] History windows overlap: %d polls, window %d", t.Len(), n)
	}

	harris := t.HarrisResults()
	trump := t.TrumpResults()
	last := len(harris)

	return models.CandidatePair{
		Harris: mean(harris[last-n:]) - mean(harris[:n]),
		Trump:  mean(trump[last-n:]) - mean(trump[:n]),
	}, nil
}

// Generate runs every query. Failed queries leave their report field nil and
// their errors are joined into the returned error.
func (s *PollService) Generate(t *models.PollTable) (*models.PollReport, error) {
	report := &models.PollReport{TotalPolls: t.Len()}
	if !t.Loaded() {
		return report, ErrNotLoaded
	}

	for _, st := range t.SampleTypes() {
		if st == LikelyVoter {
			report.LikelyVoterPolls++
		}
	}

	var errs []error

	if lead, err := s.HighestPollingCandidate(t); err != nil {
		errs = append(errs, err)
	} else {
		report.Highest = &lead
	}

	if avg, err := s.LikelyVoterPollingAverage(t); err != nil {
		errs = append(errs, err)
	} else {
		report.LikelyVoterAverage = &avg
	}

	if change, err := s.PollingHistoryChange(t); err != nil {
		errs = append(errs, fmt.Errorf("polling history change: %w", err))
	} else {
		report.HistoryChange = &change
	}

	s.logger.Info("[polls] Report over %d polls (%d likely voter), %d queries failed",
		report.TotalPolls, report.LikelyVoterPolls, len(errs))
	return report, errors.Join(errs...)
}

// Print writes the report banner to stdout.
func (s *PollService) Print(r *models.PollReport) {
	s.Fprint(os.Stdout, r)
}

// Fprint writes the report banner to w.
func (s *PollService) Fprint(w io.Writer, r *models.PollReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 POLLING INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total polls          : \033[1m%d\033[0m\n", r.TotalPolls)
	fmt.Fprintf(w, "  Likely voter polls   : \033[1m%d\033[0m\n", r.LikelyVoterPolls)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Highest Single Result\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.Highest != nil {
		fmt.Fprintf(w, "  \033[1;32m%s\033[0m\n", r.Highest)
	} else {
		fmt.Fprintf(w, "  No results available\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Likely Voter Average\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.LikelyVoterAverage != nil {
		fmt.Fprintf(w, "  Harris : \033[1m%.2f%%\033[0m\n", r.LikelyVoterAverage.Harris*100)
		fmt.Fprintf(w, "  Trump  : \033[1m%.2f%%\033[0m\n", r.LikelyVoterAverage.Trump*100)
	} else {
		fmt.Fprintf(w, "  No likely voter polls\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Change, Earliest %d vs Latest %d Polls\033[0m\n", HistoryWindow, HistoryWindow)
	fmt.Fprintf(w, "  %s\n", thin)
	if r.HistoryChange != nil {
		fmt.Fprintf(w, "  Harris : %s\n", signed(r.HistoryChange.Harris))
		fmt.Fprintf(w, "  Trump  : %s\n", signed(r.HistoryChange.Trump))
	} else {
		fmt.Fprintf(w, "  Fewer than %d polls\n", HistoryWindow)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func maxOf(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m, true
}

func mean(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// percent1 converts a fraction to a percentage rounded to one decimal the
// same way %.1f renders it, so String never rounds twice.
func percent1(f float64) float64 {
	v, err := strconv.ParseFloat(fmt.Sprintf("%.1f", f*100), 64)
	if err != nil {
		return f * 100
	}
	return v
}

func signed(delta float64) string {
	color := "\033[1;32m"
	if delta < 0 {
		color = "\033[1;31m"
	}
	return fmt.Sprintf("%s%+.2f pts\033[0m", color, delta*100)
}
