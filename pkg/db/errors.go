package db

import "errors"

var (
	// ErrMemberNotFound is returned when a member id does not exist
	ErrMemberNotFound = errors.New("member not found")
	// ErrShiftNotFound is returned when the expected shift no longer exists
	ErrShiftNotFound = errors.New("shift not found")
	// ErrShiftChanged is returned when the date is held by a different shift than expected
	ErrShiftChanged = errors.New("shift changed since it was fetched")
	// ErrDateTaken is returned when a shift already exists for a date expected to be free
	ErrDateTaken = errors.New("date already has a shift")
)
