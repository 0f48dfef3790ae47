package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)

	return c
}

func TestListBuses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/bus", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id":3,"name":"Night Rider","route":"A-B","departureDate":"01-07-2025",
			 "departureTime":"21:00","arrivalTime":"06:00","totalSeats":40,"availableSeats":12,"price":500}
		]`)
	})

	buses, err := c.ListBuses(context.Background())
	require.NoError(t, err)
	require.Len(t, buses, 1)
	assert.Equal(t, int64(3), buses[0].ID)
	assert.Equal(t, 500.0, buses[0].Price)
	assert.Equal(t, "01-07-2025", buses[0].DepartureDate.String())
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("http error keeps status and body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Seat R05 is already booked", http.StatusBadRequest)
		})

		_, err := c.CreateBooking(context.Background(), domain.BookingRequest{BusID: 3})

		var he *HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusBadRequest, he.Status)
		assert.Equal(t, "Seat R05 is already booked", he.Body)
		assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	})

	t.Run("malformed json is a decode error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `[{"id":`)
		})

		_, err := c.ListSeats(context.Background(), 1)

		var de *DecodeError
		assert.ErrorAs(t, err, &de)
	})

	t.Run("shape mismatch is a decode error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `[{"id":1,"seatNumber":"R01","seatType":"VIP","status":"AVAILABLE"}]`)
		})

		_, err := c.ListSeats(context.Background(), 1)

		var de *DecodeError
		assert.ErrorAs(t, err, &de)
	})

	t.Run("null object is a decode error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `null`)
		})

		_, err := c.PriorityInfo(context.Background(), 7)

		var de *DecodeError
		assert.ErrorAs(t, err, &de)
	})

	t.Run("unreachable backend is a network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := New(Config{BaseURL: url, Timeout: time.Second}, nil)
		require.NoError(t, err)

		_, err = c.ListUsers(context.Background())

		var ne *NetworkError
		assert.ErrorAs(t, err, &ne)
		assert.True(t, IsGatewayError(err))
	})
}

func TestCreateBookingPayload(t *testing.T) {
	var got map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/booking", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":99,"userId":7,"busId":3,"bookingDate":"2025-06-01T09:30:00",
			"seatNumber":"R05","amount":500.00,"status":"CONFIRMED"}`)
	})

	when, err := domain.ParseLocalDateTime("2025-06-01T09:30")
	require.NoError(t, err)

	b, err := c.CreateBooking(context.Background(), domain.BookingRequest{
		UserID:      7,
		BusID:       3,
		BookingDate: when,
		SeatNumber:  "R05",
		Amount:      500,
		Status:      domain.BookingConfirmed,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99), b.ID)

	assert.Equal(t, map[string]any{
		"userId":      float64(7),
		"busId":       float64(3),
		"bookingDate": "2025-06-01T09:30:00",
		"seatNumber":  "R05",
		"amount":      float64(500),
		"status":      "CONFIRMED",
	}, got)
}

func TestSeatCountsAbsentKeyIsZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/seat/bus/3/count", r.URL.Path)
		_, _ = io.WriteString(w, `{"REGULAR":32,"ELDER":4}`)
	})

	counts, err := c.SeatCounts(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.SeatCounts{
		domain.SeatRegular:  32,
		domain.SeatElder:    4,
		domain.SeatPregnant: 0,
	}, counts)
}

func TestSearchBusesQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bus/search", r.URL.Path)
		assert.Equal(t, "Express", r.URL.Query().Get("name"))
		assert.False(t, r.URL.Query().Has("route"))
		_, _ = io.WriteString(w, `[]`)
	})

	buses, err := c.SearchBuses(context.Background(), BusSearch{Name: "Express"})
	require.NoError(t, err)
	assert.Empty(t, buses)
}

func TestUpdateSeatStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/seat/11/status", r.URL.Path)
		assert.Equal(t, "BOOKED", r.URL.Query().Get("status"))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.UpdateSeatStatus(context.Background(), 11, domain.SeatBooked))
	assert.Error(t, c.UpdateSeatStatus(context.Background(), 11, "BROKEN"))
}

func TestCancelBookingIgnoresTextBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/booking/42/cancel", r.URL.Path)
		_, _ = io.WriteString(w, "Booking cancelled successfully")
	})

	assert.NoError(t, c.CancelBooking(context.Background(), 42))
}

func TestTransferBookingNotImplemented(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL.Path)
	})

	err := c.TransferBooking(context.Background(), 5, "friend@example.com")
	assert.True(t, errors.Is(err, ErrNotImplemented))
}

func TestPathParameters(t *testing.T) {
	const (
		bus     = `{"id":3,"name":"Night Rider","departureDate":"01-07-2025","price":500}`
		user    = `{"id":7,"name":"Alice","role":"USER"}`
		seats   = `[{"id":1,"seatNumber":"R01","seatType":"REGULAR","status":"AVAILABLE"}]`
		booking = `[{"id":42,"userId":7,"busId":3,"seatNumber":"R05","amount":500,"status":"CONFIRMED"}]`
	)

	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		call   func(c *Client) error
	}{
		{"get bus", http.MethodGet, "/bus/3", bus, func(c *Client) error {
			_, err := c.GetBus(ctx, 3)
			return err
		}},
		{"update bus", http.MethodPut, "/bus/3", bus, func(c *Client) error {
			_, err := c.UpdateBus(ctx, 3, BusInput{Name: "Night Rider"})
			return err
		}},
		{"delete bus", http.MethodDelete, "/bus/3", "", func(c *Client) error {
			return c.DeleteBus(ctx, 3)
		}},
		{"user bookings", http.MethodGet, "/booking/user/7", booking, func(c *Client) error {
			_, err := c.ListUserBookings(ctx, 7)
			return err
		}},
		{"delete booking", http.MethodDelete, "/booking/42", "", func(c *Client) error {
			return c.DeleteBooking(ctx, 42)
		}},
		{"cancel booking", http.MethodPut, "/booking/42/cancel", "", func(c *Client) error {
			return c.CancelBooking(ctx, 42)
		}},
		{"delete user", http.MethodDelete, "/users/7", "", func(c *Client) error {
			return c.DeleteUser(ctx, 7)
		}},
		{"priority", http.MethodGet, "/users/7/priority", `{"elderlyPriorityEligible":true}`, func(c *Client) error {
			_, err := c.PriorityInfo(ctx, 7)
			return err
		}},
		{"seats", http.MethodGet, "/seat/bus/3", seats, func(c *Client) error {
			_, err := c.ListSeats(ctx, 3)
			return err
		}},
		{"available seats", http.MethodGet, "/seat/bus/3/available", seats, func(c *Client) error {
			_, err := c.AvailableSeats(ctx, 3)
			return err
		}},
		{"available seats by type", http.MethodGet, "/seat/bus/3/available/REGULAR", seats, func(c *Client) error {
			_, err := c.AvailableSeatsByType(ctx, 3, domain.SeatRegular)
			return err
		}},
		{"seat counts", http.MethodGet, "/seat/bus/3/count", `{"REGULAR":1}`, func(c *Client) error {
			_, err := c.SeatCounts(ctx, 3)
			return err
		}},
		{"seat status", http.MethodPut, "/seat/11/status", "", func(c *Client) error {
			return c.UpdateSeatStatus(ctx, 11, domain.SeatBooked)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMethod, gotPath string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotMethod, gotPath = r.Method, r.URL.EscapedPath()
				_, _ = io.WriteString(w, tt.body)
			})

			require.NoError(t, tt.call(c))
			assert.Equal(t, tt.method, gotMethod)
			assert.Equal(t, tt.path, gotPath)
		})
	}
}

func TestSharedRequestOutlivesCancelledCaller(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var hits atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		_, _ = io.WriteString(w, `[{"id":3,"name":"Night Rider","departureDate":"01-07-2025","price":500}]`)
	})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.ListBuses(ctxA)
		errA <- err
	}()

	<-entered

	type result struct {
		buses []domain.Bus
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		buses, err := c.ListBuses(context.Background())
		resB <- result{buses, err}
	}()

	// let B join the in-flight request before A goes away
	time.Sleep(50 * time.Millisecond)
	cancelA()

	err := <-errA
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)

	b := <-resB
	require.NoError(t, b.err)
	require.Len(t, b.buses, 1)
	assert.Equal(t, int32(1), hits.Load())
}
