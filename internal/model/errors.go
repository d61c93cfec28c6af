package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDataLoad marks a dataset that could not be read or lacks required columns.
	ErrDataLoad = errors.New("dataset load failed")
	// ErrParticipantNotFound is returned when no rows belong to a participant.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrDistrictNotFound is returned when no rows belong to a district.
	ErrDistrictNotFound = errors.New("district not found")
	// ErrUnknownAnswerKey is returned when a question has no configured answer key.
	ErrUnknownAnswerKey = errors.New("no answer key for question")
)

// DataLoadError describes why the response spreadsheet was rejected.
type DataLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DataLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Reason)
}

func (e *DataLoadError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDataLoad, e.Err}
	}
	return []error{ErrDataLoad}
}
