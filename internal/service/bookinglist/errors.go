package bookinglist

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrForbidden       = errors.New("only admins can do this")
)

const (
	MsgFetchFailed     = "Failed to fetch bookings. Please try again later."
	MsgCancelFailed    = "Failed to cancel booking. Please try again."
	MsgTransferMissing = "Please select a booking and enter recipient email"
)
