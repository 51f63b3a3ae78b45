package model

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrSourceNotFound    = errors.New("source folder does not exist")
	ErrInvalidTimeFormat = errors.New("invalid time format, expected HH:MM")
	ErrAlreadyRunning    = errors.New("sync already in progress")
)

// CopyFailedError is returned when a single file could not be copied. The run
// it belongs to is aborted.
type CopyFailedError struct {
	Path string
	Err  error
}

func (e *CopyFailedError) Error() string {
	return fmt.Sprintf("failed to copy %s: %v", e.Path, e.Err)
}

func (e *CopyFailedError) Unwrap() error {
	return e.Err
}
