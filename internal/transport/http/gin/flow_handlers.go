package httpgin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/busgo/internal/domain"
	redisx "github.com/kirinyoku/busgo/internal/redis"
	"github.com/kirinyoku/busgo/internal/service"
	"github.com/kirinyoku/busgo/internal/service/bookingflow"
)

type flowStep func(ctx context.Context, id string, viewer domain.User) (bookingflow.State, error)

// respondFlow writes the flow view. A rejected step still returns the flow
// so the form can show it next to the error.
func respondFlow(c *gin.Context, st bookingflow.State, err error, okStatus int) {
	if err == nil {
		c.JSON(okStatus, FlowResponse{Flow: st.View()})
		return
	}

	if st.ID == "" {
		respondErr(c, err)
		return
	}

	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if st.Error != "" && !isValidation(err) {
		body.Error = st.Error
	}

	c.JSON(status, FlowResponse{Flow: st.View(), Error: body.Error, Field: body.Field})
}

func isValidation(err error) bool {
	var ve *domain.ValidationError
	return errors.As(err, &ve)
}

func runStep(c *gin.Context, step flowStep) {
	u, _ := currentUser(c)
	st, err := step(c.Request.Context(), c.Param("id"), u)
	respondFlow(c, st, err, http.StatusOK)
}

// @Summary  Start a booking
// @Param    req body  StartFlowRequest false "optional preselected bus"
// @Success  201 {object} FlowResponse
// @Failure  502 {object} FlowResponse "buses and users could not be loaded"
// @Router   /booking-flows [post]
func handleStartFlow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartFlowRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}

		u, _ := currentUser(c)
		st, err := svcs.BookingFlow.Start(c.Request.Context(), bookingflow.StartInput{
			User:  u,
			BusID: req.BusID,
		})
		respondFlow(c, st, err, http.StatusCreated)
	}
}

// @Summary  Get a booking flow
// @Param    id  path  string  true  "Flow ID"
// @Success  200 {object} FlowResponse
// @Failure  404 {object} ErrorResponse
// @Router   /booking-flows/{id} [get]
func handleGetFlow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		runStep(c, svcs.BookingFlow.Get)
	}
}

// @Summary  Cancel a booking flow
// @Param    id  path  string  true  "Flow ID"
// @Success  204
// @Router   /booking-flows/{id} [delete]
func handleAbandonFlow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _ := currentUser(c)
		if err := svcs.BookingFlow.Abandon(c.Request.Context(), c.Param("id"), u); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Choose the bus
// @Param    id  path  string  true  "Flow ID"
// @Param    req body  SelectBusRequest true "payload"
// @Success  200 {object} FlowResponse
// @Failure  422 {object} FlowResponse
// @Router   /booking-flows/{id}/bus [put]
func handleSelectBus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SelectBusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		runStep(c, func(ctx context.Context, id string, u domain.User) (bookingflow.State, error) {
			return svcs.BookingFlow.SelectBus(ctx, id, u, req.BusID)
		})
	}
}

// @Summary  Choose the seat type
// @Param    id  path  string  true  "Flow ID"
// @Param    req body  SelectSeatTypeRequest true "payload"
// @Success  200 {object} FlowResponse
// @Router   /booking-flows/{id}/seat-type [put]
func handleSelectSeatType(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SelectSeatTypeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		runStep(c, func(ctx context.Context, id string, u domain.User) (bookingflow.State, error) {
			return svcs.BookingFlow.SelectSeatType(ctx, id, u, req.SeatType)
		})
	}
}

// @Summary  Book for another user (admin)
// @Param    id  path  string  true  "Flow ID"
// @Param    req body  SelectUserRequest true "payload"
// @Success  200 {object} FlowResponse
// @Router   /booking-flows/{id}/user [put]
func handleSelectUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SelectUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		runStep(c, func(ctx context.Context, id string, u domain.User) (bookingflow.State, error) {
			return svcs.BookingFlow.SelectUser(ctx, id, u, req.UserID)
		})
	}
}

// @Summary  Pick a seat on the map
// @Param    id  path  string  true  "Flow ID"
// @Param    req body  SelectSeatRequest true "payload"
// @Success  200 {object} FlowResponse
// @Failure  422 {object} FlowResponse "seat not selectable"
// @Router   /booking-flows/{id}/seat [put]
func handleSelectSeat(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SelectSeatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		runStep(c, func(ctx context.Context, id string, u domain.User) (bookingflow.State, error) {
			return svcs.BookingFlow.SelectSeat(ctx, id, u, req.SeatNumber)
		})
	}
}

// @Summary  Set the booking date
// @Param    id  path  string  true  "Flow ID"
// @Param    req body  SetDateRequest true "payload"
// @Success  200 {object} FlowResponse
// @Router   /booking-flows/{id}/date [put]
func handleSetBookingDate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetDateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		runStep(c, func(ctx context.Context, id string, u domain.User) (bookingflow.State, error) {
			return svcs.BookingFlow.SetBookingDate(ctx, id, u, req.BookingDate)
		})
	}
}

// @Summary  Submit the booking form
// @Param    id  path  string  true  "Flow ID"
// @Success  200 {object} FlowResponse "draft awaiting payment"
// @Failure  422 {object} FlowResponse
// @Router   /booking-flows/{id}/submit [post]
func handleSubmitFlow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		runStep(c, svcs.BookingFlow.Submit)
	}
}

// @Summary  Confirm payment (idempotent)
// @Param    id  path  string  true  "Flow ID"
// @Param    Idempotency-Key  header  string  false  "replays the first successful response"
// @Header   200 {string} Idempotency-Key "echo"
// @Success  200 {object} FlowResponse "booking confirmed"
// @Failure  409 {object} ErrorResponse "already being confirmed"
// @Failure  502 {object} FlowResponse "backend rejected the booking"
// @Router   /booking-flows/{id}/confirm [post]
func handleConfirmPayment(svcs *service.Services, idem Idempotency) gin.HandlerFunc {
	return func(c *gin.Context) {
		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		if idem == nil || idemKey == "" {
			runStep(c, svcs.BookingFlow.ConfirmPayment)
			return
		}

		ctx := c.Request.Context()
		u, _ := currentUser(c)
		storageKey := redisx.KeyIdemConfirm(u.ID, c.Param("id"), idemKey)

		replay := func() bool {
			payload, ok, _ := idem.GetResult(ctx, storageKey)
			if !ok {
				return false
			}
			c.Header("Idempotency-Key", idemKey)
			c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
			return true
		}

		if replay() {
			return
		}

		locked, err := idem.AcquireLock(ctx, storageKey, time.Minute)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !locked {
			if replay() {
				return
			}
			c.Header("Retry-After", "1")
			c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
			return
		}

		st, err := svcs.BookingFlow.ConfirmPayment(ctx, c.Param("id"), u)
		if err != nil {
			_ = idem.Release(context.WithoutCancel(ctx), storageKey)
			respondFlow(c, st, err, http.StatusOK)
			return
		}

		b, err := json.Marshal(FlowResponse{Flow: st.View()})
		if err != nil {
			_ = idem.Release(context.WithoutCancel(ctx), storageKey)
			respondErr(c, err)
			return
		}
		_ = idem.SaveResult(context.WithoutCancel(ctx), storageKey, b)

		c.Header("Idempotency-Key", idemKey)
		c.Data(http.StatusOK, "application/json; charset=utf-8", b)
	}
}

// @Summary  Download the e-ticket
// @Param    id  path  string  true  "Flow ID"
// @Produce  application/pdf
// @Success  200 {file} binary
// @Router   /booking-flows/{id}/ticket [get]
func handleFlowTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _ := currentUser(c)
		pdf, err := svcs.BookingFlow.Ticket(c.Request.Context(), c.Param("id"), u)
		if err != nil {
			respondErr(c, err)
			return
		}
		writePDF(c, fmt.Sprintf("ticket-%s.pdf", c.Param("id")), pdf)
	}
}
