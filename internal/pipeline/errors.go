package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptySeries is returned when an operation needs at least one record.
var ErrEmptySeries = errors.New("series has no records")

// MissingRequiredColumnError reports raw input without a Date or close column.
type MissingRequiredColumnError struct {
	Asset  string
	Column string
}

// Error returns the error message string.
func (e *MissingRequiredColumnError) Error() string {
	return fmt.Sprintf("asset %q: missing required column %q", e.Asset, e.Column)
}

// MalformedRecordError reports a row that could not be parsed.
type MalformedRecordError struct {
	Asset  string
	Row    int
	Reason string
}

// Error returns the error message string.
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("asset %q: malformed record at row %d: %s", e.Asset, e.Row, e.Reason)
}

// UndefinedNormalizationError is returned when the base value of a
// normalization is missing or zero.
type UndefinedNormalizationError struct {
	Asset string
	Base  float64
}

// Error returns the error message string.
func (e *UndefinedNormalizationError) Error() string {
	return fmt.Sprintf("asset %q: cannot normalize against base value %v", e.Asset, e.Base)
}

// DuplicateAssetError is returned when two merger inputs share a name.
type DuplicateAssetError struct {
	Asset string
}

// Error returns the error message string.
func (e *DuplicateAssetError) Error() string {
	return fmt.Sprintf("asset %q supplied more than once", e.Asset)
}

// IsMissingColumn reports whether err is a MissingRequiredColumnError.
func IsMissingColumn(err error) bool {
	var target *MissingRequiredColumnError
	return errors.As(err, &target)
}

// IsUndefinedNormalization reports whether err is an UndefinedNormalizationError.
func IsUndefinedNormalization(err error) bool {
	var target *UndefinedNormalizationError
	return errors.As(err, &target)
}
