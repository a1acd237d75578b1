package services

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poll-reader/models"
)

func mustParse(t *testing.T, lines ...string) *models.PollTable {
	t.Helper()
	table, err := NewParser(newTestLogger()).Parse(lines)
	require.NoError(t, err)
	return table
}

// rowsOf builds n polls; result(i) gives the Harris and Trump result of poll i.
func rowsOf(n int, sampleType string, result func(i int) (float64, float64)) []string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		h, tr := result(i)
		lines = append(lines, fmt.Sprintf("September,%d,1000 %s,%.4f,%.4f", i%30+1, sampleType, h, tr))
	}
	return lines
}

func TestHighestPollingCandidate(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  models.CandidateLead
	}{
		{
			name:  "trump higher",
			lines: []string{"A,1,100 LV,0.50,0.45", "B,2,200 RV,0.40,0.60"},
			want:  models.CandidateLead{Label: "Trump", Percentage: 60.0},
		},
		{
			name:  "harris higher",
			lines: []string{"A,1,100 LV,0.52,0.45", "B,2,200 RV,0.40,0.51"},
			want:  models.CandidateLead{Label: "Harris", Percentage: 52.0},
		},
		{
			name:  "even",
			lines: []string{"A,1,100 LV,0.50,0.50"},
			want:  models.CandidateLead{Label: "EVEN", Percentage: 50.0},
		},
		{
			name:  "maxima from different rows",
			lines: []string{"A,1,100 LV,0.47,0.30", "B,2,100 LV,0.20,0.47"},
			want:  models.CandidateLead{Label: "EVEN", Percentage: 47.0},
		},
		{
			name:  "one decimal",
			lines: []string{"A,1,100 LV,0.4567,0.30"},
			want:  models.CandidateLead{Label: "Harris", Percentage: 45.7},
		},
		{
			name:  "halfway value below binary midpoint",
			lines: []string{"A,1,100 LV,0.0015,0.001"},
			want:  models.CandidateLead{Label: "Harris", Percentage: 0.1},
		},
		{
			name:  "halfway value rounds down",
			lines: []string{"A,1,100 LV,0.001,0.0095"},
			want:  models.CandidateLead{Label: "Trump", Percentage: 0.9},
		},
	}

	svc := NewPollService(newTestLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.HighestPollingCandidate(mustParse(t, tt.lines...))
			require.NoError(t, err)
			assert.Equal(t, tt.want.Label, got.Label)
			assert.InDelta(t, tt.want.Percentage, got.Percentage, 1e-9)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestHighestPollingCandidateString(t *testing.T) {
	lead := models.CandidateLead{Label: "Trump", Percentage: 60}
	assert.Equal(t, "Trump 60.0%", lead.String())
}

func TestPercentMatchesOneDecimalFormatting(t *testing.T) {
	for i := 0; i <= 100000; i += 7 {
		x := float64(i) / 100000
		want := fmt.Sprintf("%.1f%%", x*100)
		got := models.CandidateLead{Percentage: percent1(x)}.String()
		if got != " "+want {
			t.Fatalf("percent1(%v) renders %q, want %q", x, got, " "+want)
		}
	}
}

func TestHighestPollingCandidateBounds(t *testing.T) {
	svc := NewPollService(newTestLogger())
	table := mustParse(t, rowsOf(40, "LV", func(i int) (float64, float64) {
		return float64(i) / 40, float64(40-i) / 40
	})...)

	got, err := svc.HighestPollingCandidate(table)
	require.NoError(t, err)
	assert.Contains(t, []string{"Harris", "Trump", "EVEN"}, got.Label)
	assert.GreaterOrEqual(t, got.Percentage, 0.0)
	assert.LessOrEqual(t, got.Percentage, 100.0)
}

func TestHighestPollingCandidateEmpty(t *testing.T) {
	svc := NewPollService(newTestLogger())

	_, err := svc.HighestPollingCandidate(mustParse(t, "month,date,sample type,Harris result,Trump result"))
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLikelyVoterPollingAverage(t *testing.T) {
	svc := NewPollService(newTestLogger())

	got, err := svc.LikelyVoterPollingAverage(mustParse(t,
		"A,1,100 LV,0.40,0.30",
		"B,2,50 RV,0.60,0.60",
	))
	require.NoError(t, err)
	assert.InDelta(t, 0.40, got.Harris, 1e-9)
	assert.InDelta(t, 0.30, got.Trump, 1e-9)
}

func TestLikelyVoterPollingAverageMultipleRows(t *testing.T) {
	svc := NewPollService(newTestLogger())

	got, err := svc.LikelyVoterPollingAverage(mustParse(t,
		"A,1,100 LV,0.40,0.50",
		"B,2,100 lv,0.99,0.99",
		"C,3,100 LV,0.50,0.40",
		"D,4,100 A,0.10,0.10",
	))
	require.NoError(t, err)
	assert.InDelta(t, 0.45, got.Harris, 1e-9)
	assert.InDelta(t, 0.45, got.Trump, 1e-9)
}

func TestLikelyVoterPollingAverageNoMatches(t *testing.T) {
	svc := NewPollService(newTestLogger())

	_, err := svc.LikelyVoterPollingAverage(mustParse(t,
		"A,1,100 RV,0.40,0.30",
		"B,2,50 A,0.60,0.60",
	))
	assert.ErrorIs(t, err, ErrNoMatchingRows)
}

func TestPollingHistoryChange(t *testing.T) {
	svc := NewPollService(newTestLogger())
	// 30 early polls at 0.40/0.50, then 30 late polls at 0.45/0.48.
	table := mustParse(t, rowsOf(60, "LV", func(i int) (float64, float64) {
		if i < 30 {
			return 0.40, 0.50
		}
		return 0.45, 0.48
	})...)

	got, err := svc.PollingHistoryChange(table)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, got.Harris, 1e-9)
	assert.InDelta(t, -0.02, got.Trump, 1e-9)
}

func TestPollingHistoryChangeOverlappingWindows(t *testing.T) {
	svc := NewPollService(newTestLogger())
	// 40 polls: earliest window is 0..29, latest is 10..39.
	table := mustParse(t, rowsOf(40, "RV", func(i int) (float64, float64) {
		if i < 10 {
			return 0.30, 0.60
		}
		if i >= 30 {
			return 0.60, 0.30
		}
		return 0.45, 0.45
	})...)

	got, err := svc.PollingHistoryChange(table)
	require.NoError(t, err)
	// earliest Harris = (10*0.30 + 20*0.45)/30 = 0.40; latest = (20*0.45 + 10*0.60)/30 = 0.50
	assert.InDelta(t, 0.10, got.Harris, 1e-9)
	assert.InDelta(t, -0.10, got.Trump, 1e-9)
}

func TestPollingHistoryChangeBoundary(t *testing.T) {
	svc := NewPollService(newTestLogger())
	constant := func(int) (float64, float64) { return 0.47, 0.46 }

	got, err := svc.PollingHistoryChange(mustParse(t, rowsOf(30, "LV", constant)...))
	require.NoError(t, err, "exactly 30 polls must succeed")
	assert.InDelta(t, 0.0, got.Harris, 1e-9)
	assert.InDelta(t, 0.0, got.Trump, 1e-9)

	_, err = svc.PollingHistoryChange(mustParse(t, rowsOf(29, "LV", constant)...))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)

	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 30, ide.Need)
	assert.Equal(t, 29, ide.Have)
}

func TestQueriesAreIdempotent(t *testing.T) {
	svc := NewPollService(newTestLogger())
	table := mustParse(t, rowsOf(45, "LV", func(i int) (float64, float64) {
		return 0.40 + float64(i)/1000, 0.50 - float64(i)/1000
	})...)

	lead1, err1 := svc.HighestPollingCandidate(table)
	lead2, err2 := svc.HighestPollingCandidate(table)
	assert.Equal(t, lead1, lead2)
	assert.Equal(t, err1, err2)

	avg1, _ := svc.LikelyVoterPollingAverage(table)
	avg2, _ := svc.LikelyVoterPollingAverage(table)
	assert.Equal(t, avg1, avg2)

	chg1, _ := svc.PollingHistoryChange(table)
	chg2, _ := svc.PollingHistoryChange(table)
	assert.Equal(t, chg1, chg2)

	assert.Equal(t, 45, table.Len())
}

func TestQueriesOnUnloadedTable(t *testing.T) {
	svc := NewPollService(newTestLogger())
	var table models.PollTable

	_, err := svc.HighestPollingCandidate(&table)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = svc.LikelyVoterPollingAverage(&table)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = svc.PollingHistoryChange(&table)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = svc.Generate(nil)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestGenerateFullReport(t *testing.T) {
	svc := NewPollService(newTestLogger())
	table := mustParse(t, rowsOf(30, "LV", func(int) (float64, float64) { return 0.48, 0.47 })...)

	r, err := svc.Generate(table)
	require.NoError(t, err)
	assert.Equal(t, 30, r.TotalPolls)
	assert.Equal(t, 30, r.LikelyVoterPolls)
	require.NotNil(t, r.Highest)
	assert.Equal(t, "Harris", r.Highest.Label)
	require.NotNil(t, r.LikelyVoterAverage)
	assert.InDelta(t, 0.48, r.LikelyVoterAverage.Harris, 1e-9)
	require.NotNil(t, r.HistoryChange)
}

func TestGenerateSurfacesQueryErrors(t *testing.T) {
	svc := NewPollService(newTestLogger())

	r, err := svc.Generate(mustParse(t, "A,1,100 RV,0.40,0.30"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatchingRows)
	assert.ErrorIs(t, err, ErrInsufficientData)

	require.NotNil(t, r.Highest)
	assert.Nil(t, r.LikelyVoterAverage)
	assert.Nil(t, r.HistoryChange)
	assert.Equal(t, 1, r.TotalPolls)
	assert.Equal(t, 0, r.LikelyVoterPolls)
}

func TestFprintFullReport(t *testing.T) {
	svc := NewPollService(newTestLogger())
	var buf bytes.Buffer

	svc.Fprint(&buf, &models.PollReport{
		TotalPolls:         60,
		LikelyVoterPolls:   20,
		Highest:            &models.CandidateLead{Label: models.LabelTrump, Percentage: 52.5},
		LikelyVoterAverage: &models.CandidatePair{Harris: 0.48, Trump: 0.47},
		HistoryChange:      &models.CandidatePair{Harris: 0.02, Trump: -0.01},
	})

	out := buf.String()
	assert.Contains(t, out, "POLLING INSIGHTS")
	assert.Contains(t, out, "Trump 52.5%")
	assert.Contains(t, out, "48.00%")
	assert.Contains(t, out, "+2.00 pts")
	assert.Contains(t, out, "-1.00 pts")
	assert.NotContains(t, out, "No likely voter polls")
	assert.NotContains(t, out, "Fewer than 30 polls")
}

func TestFprintMissingStatistics(t *testing.T) {
	svc := NewPollService(newTestLogger())
	var buf bytes.Buffer

	svc.Fprint(&buf, &models.PollReport{TotalPolls: 0})

	out := buf.String()
	assert.Contains(t, out, "No results available")
	assert.Contains(t, out, "No likely voter polls")
	assert.Contains(t, out, "Fewer than 30 polls")
	assert.Equal(t, 1, strings.Count(out, "Overview"))
}
