package services

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"poll-reader/models"
	"poll-reader/utils"
)

const (
	// headerPrefix marks the optional header line.
	headerPrefix = "month"
	fieldCount   = 5
)

// Parser turns raw CSV lines into a PollTable.
type Parser struct {
	logger *utils.Logger
}

// NewParser creates a Parser with the given logger.
func NewParser(logger *utils.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseReader drains r into lines and parses them.
func (p *Parser) ParseReader(r io.Reader) (*models.PollTable, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parser: read lines: %w", err)
	}
	return p.Parse(lines)
}

// Parse builds a PollTable from lines in chronological order, earliest first.
// Blank lines and a header line starting with "month" are skipped. Any other
// line that fails to parse aborts the load with a *MalformedRowError.
func (p *Parser) Parse(lines []string) (*models.PollTable, error) {
	rows := make([]models.Row, 0, len(lines))
	skipped := 0

	for i, raw := range lines {
		line := strings.TrimRightFunc(raw, unicode.IsSpace)
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, headerPrefix) {
			skipped++
			continue
		}

		row, err := parseRow(line)
		if err != nil {
			err.Line = i + 1
			p.logger.Error("[parser] %v", err)
			return nil, err
		}
		rows = append(rows, row)
	}

	p.logger.Debug("[parser] Parsed %d polls (skipped %d header/blank lines)", len(rows), skipped)
	return models.NewPollTable(rows), nil
}

func parseRow(line string) (models.Row, *MalformedRowError) {
	malformed := func(reason string, err error) *MalformedRowError {
		return &MalformedRowError{Text: line, Reason: reason, Err: err}
	}

	fields := strings.Split(line, ",")
	if len(fields) != fieldCount {
		return models.Row{}, malformed(fmt.Sprintf("expected %d fields, got %d", fieldCount, len(fields)), nil)
	}

	date, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return models.Row{}, malformed("date is not an integer", err)
	}

	sample := strings.Fields(fields[2])
	if len(sample) != 2 {
		return models.Row{}, malformed("sample must be \"<size> <type>\"", nil)
	}
	size, err := strconv.Atoi(sample[0])
	if err != nil {
		return models.Row{}, malformed("sample size is not an integer", err)
	}
	if size <= 0 {
		return models.Row{}, malformed("sample size must be positive", nil)
	}

	harris, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return models.Row{}, malformed("Harris result is not a number", err)
	}
	trump, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
	if err != nil {
		return models.Row{}, malformed("Trump result is not a number", err)
	}

	return models.Row{
		Month:        fields[0],
		Date:         date,
		SampleSize:   size,
		SampleType:   sample[1],
		HarrisResult: harris,
		TrumpResult:  trump,
	}, nil
}
