package core

import "fmt"

// InvalidDateError is returned when a forecast is requested for a day that
// has already passed.
type InvalidDateError struct {
	Target Date
	Today  Date
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("target date %s is before today (%s)", e.Target, e.Today)
}

// MissingBalanceError is returned when the user has no account that can
// provide a starting balance.
type MissingBalanceError struct {
	UserID int64
}

func (e *MissingBalanceError) Error() string {
	return fmt.Sprintf("no account balance available for user %d", e.UserID)
}
