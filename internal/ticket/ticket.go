// Package ticket renders printable e-tickets for confirmed bookings.
package ticket

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/phpdave11/gofpdf"
)

var ErrNotPrintable = errors.New("booking is not confirmed")

type Ticket struct {
	Booking   domain.Booking
	Bus       domain.Bus
	Passenger domain.User
	IssuedAt  time.Time
}

// Printable reports whether a booking in status s may be printed.
func Printable(s domain.BookingStatus) bool {
	return s == domain.BookingConfirmed || s == domain.BookingCompleted
}

// Render returns the ticket as a single-page PDF.
func Render(t Ticket) ([]byte, error) {
	const op = "ticket.Render"

	if !Printable(t.Booking.Status) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotPrintable)
	}

	issued := t.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket", false)
	pdf.SetCreationDate(issued)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Booking No : %d", t.Booking.ID),
		fmt.Sprintf("Passenger  : %s", orDash(t.Passenger.Name)),
		fmt.Sprintf("Email      : %s", orDash(t.Passenger.Email)),
		fmt.Sprintf("Bus        : %s", orDash(t.Bus.Name)),
		fmt.Sprintf("Route      : %s", orDash(t.Bus.Route)),
		fmt.Sprintf("Departure  : %s %s", orDash(t.Bus.DepartureDate.String()), t.Bus.DepartureTime),
		fmt.Sprintf("Arrival    : %s", orDash(t.Bus.ArrivalTime)),
		fmt.Sprintf("Seat       : %s", t.Booking.SeatNumber),
		fmt.Sprintf("Booked at  : %s", orDash(t.Booking.BookingDate.String())),
		fmt.Sprintf("Amount     : %.2f", t.Booking.Amount),
		fmt.Sprintf("Status     : %s", t.Booking.Status),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Valid for one passenger and one seat. Show this ticket when boarding.", "", "", false)
	pdf.Cell(0, 6, "Issued "+issued.Format("2006-01-02 15:04"))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
