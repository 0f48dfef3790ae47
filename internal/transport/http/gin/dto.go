package httpgin

import (
	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/service/bookingflow"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type StartFlowRequest struct {
	BusID int64 `json:"busId"`
}

type SelectBusRequest struct {
	BusID int64 `json:"busId" binding:"required"`
}

type SelectSeatTypeRequest struct {
	SeatType domain.SeatType `json:"seatType" binding:"required"`
}

type SelectUserRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

type SelectSeatRequest struct {
	SeatNumber string `json:"seatNumber" binding:"required"`
}

// SetDateRequest carries a date-time picker value, yyyy-mm-ddThh:mm.
type SetDateRequest struct {
	BookingDate string `json:"bookingDate" binding:"required"`
}

type CancelBookingRequest struct {
	Confirm bool `json:"confirm"`
}

type UpdateSeatStatusRequest struct {
	BusID  int64             `json:"busId" binding:"required"`
	Status domain.SeatStatus `json:"status" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type SessionResponse struct {
	User domain.User `json:"user"`
}

// FlowResponse is returned by every booking flow step. Error is set when
// the step was rejected; Flow then shows the unchanged state.
type FlowResponse struct {
	Flow  bookingflow.View `json:"flow"`
	Error string           `json:"error,omitempty"`
	Field string           `json:"field,omitempty"`
}
