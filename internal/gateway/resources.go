package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kirinyoku/busgo/internal/domain"
)

// BusInput is the create/update bus payload. DepartureDate is sent as dd-mm-yyyy.
type BusInput struct {
	Name           string      `json:"name"`
	Route          string      `json:"route"`
	DepartureDate  domain.Date `json:"departureDate"`
	DepartureTime  string      `json:"departureTime"`
	ArrivalTime    string      `json:"arrivalTime"`
	AvailableSeats int         `json:"availableSeats"`
	TotalSeats     int         `json:"totalSeats"`
	Price          float64     `json:"price"`
}

type BusSearch struct {
	Name      string
	Route     string
	Departure string
	Arrival   string
}

func (s BusSearch) values() url.Values {
	q := url.Values{}
	if s.Name != "" {
		q.Set("name", s.Name)
	}
	if s.Route != "" {
		q.Set("route", s.Route)
	}
	if s.Departure != "" {
		q.Set("departure", s.Departure)
	}
	if s.Arrival != "" {
		q.Set("arrival", s.Arrival)
	}
	return q
}

type UserInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role,omitempty"`
	Age      int         `json:"age,omitempty"`
	Pregnant bool        `json:"pregnant,omitempty"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// --- Buses ---

func (c *Client) ListBuses(ctx context.Context) ([]domain.Bus, error) {
	return getJSON[[]domain.Bus](ctx, c, "gateway.ListBuses", "/bus", nil)
}

func (c *Client) GetBus(ctx context.Context, busID int64) (*domain.Bus, error) {
	return getJSON[*domain.Bus](ctx, c, "gateway.GetBus", pathf("/bus/%d", busID), nil)
}

func (c *Client) SearchBuses(ctx context.Context, s BusSearch) ([]domain.Bus, error) {
	return getJSON[[]domain.Bus](ctx, c, "gateway.SearchBuses", "/bus/search", s.values())
}

func (c *Client) CreateBus(ctx context.Context, in BusInput) (*domain.Bus, error) {
	return sendJSON[*domain.Bus](ctx, c, "gateway.CreateBus", http.MethodPost, "/bus", in)
}

func (c *Client) UpdateBus(ctx context.Context, busID int64, in BusInput) (*domain.Bus, error) {
	return sendJSON[*domain.Bus](ctx, c, "gateway.UpdateBus", http.MethodPut, pathf("/bus/%d", busID), in)
}

func (c *Client) DeleteBus(ctx context.Context, busID int64) error {
	_, err := c.do(ctx, "gateway.DeleteBus", http.MethodDelete, pathf("/bus/%d", busID), nil, nil)
	return err
}

// --- Bookings ---

func (c *Client) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	return getJSON[[]domain.Booking](ctx, c, "gateway.ListBookings", "/booking", nil)
}

func (c *Client) ListUserBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	return getJSON[[]domain.Booking](ctx, c, "gateway.ListUserBookings", pathf("/booking/user/%d", userID), nil)
}

func (c *Client) CreateBooking(ctx context.Context, req domain.BookingRequest) (*domain.Booking, error) {
	return sendJSON[*domain.Booking](ctx, c, "gateway.CreateBooking", http.MethodPost, "/booking", req)
}

func (c *Client) DeleteBooking(ctx context.Context, bookingID int64) error {
	_, err := c.do(ctx, "gateway.DeleteBooking", http.MethodDelete, pathf("/booking/%d", bookingID), nil, nil)
	return err
}

// CancelBooking responds with a plain text confirmation, which is ignored.
func (c *Client) CancelBooking(ctx context.Context, bookingID int64) error {
	_, err := c.do(ctx, "gateway.CancelBooking", http.MethodPut, pathf("/booking/%d/cancel", bookingID), nil, nil)
	return err
}

// TransferBooking has no backend endpoint yet and always fails with
// ErrNotImplemented without touching the network.
func (c *Client) TransferBooking(ctx context.Context, bookingID int64, recipientEmail string) error {
	const op = "gateway.TransferBooking"

	c.logger.Info("transfer request",
		"booking_id", bookingID,
		"recipient_email", recipientEmail,
	)

	return fmt.Errorf("%s: %w", op, ErrNotImplemented)
}

// --- Users ---

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	return getJSON[[]domain.User](ctx, c, "gateway.ListUsers", "/users", nil)
}

func (c *Client) CreateUser(ctx context.Context, in UserInput) (*domain.User, error) {
	return sendJSON[*domain.User](ctx, c, "gateway.CreateUser", http.MethodPost, "/users", in)
}

func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	_, err := c.do(ctx, "gateway.DeleteUser", http.MethodDelete, pathf("/users/%d", userID), nil, nil)
	return err
}

func (c *Client) PriorityInfo(ctx context.Context, userID int64) (*domain.UserPriorityInfo, error) {
	return getJSON[*domain.UserPriorityInfo](ctx, c, "gateway.PriorityInfo", pathf("/users/%d/priority", userID), nil)
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*domain.User, error) {
	return sendJSON[*domain.User](ctx, c, "gateway.Login", http.MethodPost, "/users/login", creds)
}

// --- Seats ---

func (c *Client) ListSeats(ctx context.Context, busID int64) ([]domain.Seat, error) {
	return getJSON[[]domain.Seat](ctx, c, "gateway.ListSeats", pathf("/seat/bus/%d", busID), nil)
}

func (c *Client) AvailableSeats(ctx context.Context, busID int64) ([]domain.Seat, error) {
	return getJSON[[]domain.Seat](ctx, c, "gateway.AvailableSeats", pathf("/seat/bus/%d/available", busID), nil)
}

func (c *Client) AvailableSeatsByType(ctx context.Context, busID int64, seatType domain.SeatType) ([]domain.Seat, error) {
	const op = "gateway.AvailableSeatsByType"

	if !seatType.Valid() {
		return nil, fmt.Errorf("%s: invalid seat type %q", op, seatType)
	}

	return getJSON[[]domain.Seat](ctx, c, op, pathf("/seat/bus/%d/available/%s", busID, seatType), nil)
}

func (c *Client) SeatCounts(ctx context.Context, busID int64) (domain.SeatCounts, error) {
	const op = "gateway.SeatCounts"

	counts, err := getJSON[domain.SeatCounts](ctx, c, op, pathf("/seat/bus/%d/count", busID), nil)
	if err != nil {
		return nil, err
	}

	for t, n := range counts {
		if n < 0 {
			return nil, &DecodeError{Op: op, Err: fmt.Errorf("negative count for %s", t)}
		}
	}

	return counts.Normalized(), nil
}

func (c *Client) UpdateSeatStatus(ctx context.Context, seatID int64, status domain.SeatStatus) error {
	const op = "gateway.UpdateSeatStatus"

	if !status.Valid() {
		return fmt.Errorf("%s: invalid seat status %q", op, status)
	}

	q := url.Values{"status": []string{string(status)}}
	_, err := c.do(ctx, op, http.MethodPut, pathf("/seat/%d/status", seatID), q, nil)
	return err
}
