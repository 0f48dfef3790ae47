package httpgin

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/service"
	"github.com/kirinyoku/busgo/internal/service/bookinglist"
)

// @Summary  List bookings
// @Description Admins see every booking, users their own.
// @Param    status query string false "PENDING, CONFIRMED, CANCELLED or COMPLETED"
// @Success  200 {object} bookinglist.View
// @Router   /bookings [get]
func handleListBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _ := currentUser(c)
		status := domain.BookingStatus(strings.ToUpper(c.Query("status")))

		v, err := svcs.BookingList.View(c.Request.Context(), u, status)
		if err != nil && v.Error == "" {
			respondErr(c, err)
			return
		}
		if err != nil {
			code, _ := errorStatus(err)
			_ = c.Error(err)
			c.JSON(code, v)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// @Summary  Refetch bookings
// @Success  200 {object} bookinglist.List
// @Failure  502 {object} bookinglist.List "previous list with a banner"
// @Router   /bookings/refresh [post]
func handleRefreshBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _ := currentUser(c)
		l, err := svcs.BookingList.Refresh(c.Request.Context(), u)
		respondList(c, l, err)
	}
}

// @Summary  Cancel booking
// @Param    id  path  int  true  "Booking ID"
// @Param    req body  CancelBookingRequest true "confirmation"
// @Success  200 {object} bookinglist.List
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CancelBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		u, _ := currentUser(c)
		l, err := svcs.BookingList.Cancel(c.Request.Context(), u, bookingID, req.Confirm)
		respondList(c, l, err)
	}
}

// @Summary  Delete booking (admin)
// @Param    id  path  int  true  "Booking ID"
// @Success  200 {object} bookinglist.List
// @Router   /bookings/{id} [delete]
func handleDeleteBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		u, _ := currentUser(c)
		l, err := svcs.BookingList.Delete(c.Request.Context(), u, bookingID)
		respondList(c, l, err)
	}
}

// @Summary  Download booking e-ticket
// @Param    id  path  int  true  "Booking ID"
// @Produce  application/pdf
// @Success  200 {file} binary
// @Router   /bookings/{id}/ticket [get]
func handleBookingTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		u, _ := currentUser(c)
		pdf, err := svcs.BookingList.Ticket(c.Request.Context(), u, bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writePDF(c, fmt.Sprintf("ticket-%d.pdf", bookingID), pdf)
	}
}

// @Summary  Bookings that can be transferred
// @Success  200 {array} domain.Booking
// @Router   /transfers/candidates [get]
func handleTransferCandidates(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _ := currentUser(c)
		bookings, err := svcs.BookingList.TransferCandidates(c.Request.Context(), u)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookings)
	}
}

// @Summary  Transfer a booking
// @Param    req body  bookinglist.TransferRequest true "booking and recipient"
// @Success  202
// @Failure  422 {object} ErrorResponse
// @Failure  501 {object} ErrorResponse "not available yet"
// @Router   /transfers [post]
func handleTransfer(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bookinglist.TransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		u, _ := currentUser(c)
		if err := svcs.BookingList.Transfer(c.Request.Context(), u, req); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// respondList returns the list with its banner when a backend call failed.
func respondList(c *gin.Context, l bookinglist.List, err error) {
	if err == nil {
		c.JSON(http.StatusOK, l)
		return
	}
	if l.Error == "" {
		respondErr(c, err)
		return
	}

	status, _ := errorStatus(err)
	_ = c.Error(err)
	c.JSON(status, l)
}
