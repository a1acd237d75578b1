package services

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRow is returned when a data line does not have the poll row shape.
	ErrMalformedRow = errors.New("malformed poll row")

	// ErrEmptyDataset is returned when a query needs at least one value.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrNoMatchingRows is returned when a filtered query matches nothing.
	ErrNoMatchingRows = errors.New("no matching rows")

	// ErrInsufficientData is returned when a windowed query needs more rows than exist.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotLoaded is returned when a query runs against a table that was never loaded.
	ErrNotLoaded = errors.New("poll table not loaded")
)

// MalformedRowError describes the first line that failed to parse.
type MalformedRowError struct {
	Line   int
	Text   string
	Reason string
	Err    error
}

func (e *MalformedRowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d %q: %s: %v", e.Line, e.Text, e.Reason, e.Err)
	}
	return fmt.Sprintf("line %d %q: %s", e.Line, e.Text, e.Reason)
}

func (e *MalformedRowError) Is(target error) bool {
	return target == ErrMalformedRow
}

func (e *MalformedRowError) Unwrap() error {
	return e.Err
}

// InsufficientDataError reports how many rows a query needed and how many it had.
type InsufficientDataError struct {
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("need at least %d polls, have %d", e.Need, e.Have)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}
