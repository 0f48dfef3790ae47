package httpgin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/gateway"
	"github.com/kirinyoku/busgo/internal/service"
	"github.com/kirinyoku/busgo/internal/service/account"
	"github.com/kirinyoku/busgo/internal/service/admin"
	"github.com/kirinyoku/busgo/internal/service/bookingflow"
	"github.com/kirinyoku/busgo/internal/service/bookinglist"
	"github.com/kirinyoku/busgo/internal/ticket"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const sessionCookie = "busgo_session"

// BusSubscriber delivers bus-changed notifications for the SSE stream.
type BusSubscriber interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, busID int64)) error
}

// Idempotency stores responses by Idempotency-Key.
type Idempotency interface {
	AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key string, payload []byte) error
	GetResult(ctx context.Context, key string) ([]byte, bool, error)
	Release(ctx context.Context, key string) error
}

type Config struct {
	CORSOrigins  []string
	SessionTTL   time.Duration
	SecureCookie bool
	// KeepAlive is the SSE ping interval.
	KeepAlive time.Duration
}

func NewRouter(
	svcs *service.Services,
	events BusSubscriber,
	idem Idempotency,
	logger *slog.Logger,
	cfg Config,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 25 * time.Second
	}

	r := gin.New()

	r.Use(
		gin.Recovery(),
		LoggingMiddleware(logger),
		RequestIDMiddleware(),
		CORS(cfg.CORSOrigins),
		SessionMiddleware(svcs.Account),
	)
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// account
	r.POST("/login", handleLogin(svcs, cfg))
	r.POST("/logout", handleLogout(svcs, cfg))
	r.GET("/me", RequireUser(), handleMe())

	// bus catalogue
	buses := r.Group("/buses")
	{
		buses.GET("", handleListBuses(svcs))
		buses.GET("/search", handleSearchBuses(svcs))
		buses.GET("/:id", handleGetBus(svcs))
		buses.GET("/:id/seats", handleListSeats(svcs))
		buses.GET("/:id/seats/available", handleListSeats(svcs))
		buses.GET("/:id/seats/available/:type", handleListSeats(svcs))
		buses.GET("/:id/seats/count", handleSeatCounts(svcs))
		buses.GET("/:id/seatmap", handleSeatMap(svcs))
		buses.GET("/:id/events", handleBusEvents(events, cfg.KeepAlive))
	}

	// booking workflow
	flows := r.Group("/booking-flows", RequireUser())
	{
		flows.POST("", handleStartFlow(svcs))
		flows.GET("/:id", handleGetFlow(svcs))
		flows.DELETE("/:id", handleAbandonFlow(svcs))
		flows.PUT("/:id/bus", handleSelectBus(svcs))
		flows.PUT("/:id/seat-type", handleSelectSeatType(svcs))
		flows.PUT("/:id/user", handleSelectUser(svcs))
		flows.PUT("/:id/seat", handleSelectSeat(svcs))
		flows.PUT("/:id/date", handleSetBookingDate(svcs))
		flows.POST("/:id/submit", handleSubmitFlow(svcs))
		flows.POST("/:id/confirm", handleConfirmPayment(svcs, idem))
		flows.GET("/:id/ticket", handleFlowTicket(svcs))
	}

	// booking list and transfers
	bookings := r.Group("/bookings", RequireUser())
	{
		bookings.GET("", handleListBookings(svcs))
		bookings.POST("/refresh", handleRefreshBookings(svcs))
		bookings.POST("/:id/cancel", handleCancelBooking(svcs))
		bookings.DELETE("/:id", RequireAdmin(), handleDeleteBooking(svcs))
		bookings.GET("/:id/ticket", handleBookingTicket(svcs))
	}

	transfers := r.Group("/transfers", RequireUser())
	{
		transfers.GET("/candidates", handleTransferCandidates(svcs))
		transfers.POST("", handleTransfer(svcs))
	}

	// Admin-API
	adm := r.Group("/admin", RequireAdmin())
	{
		adm.POST("/buses", handleCreateBus(svcs))
		adm.PUT("/buses/:id", handleUpdateBus(svcs))
		adm.DELETE("/buses/:id", handleDeleteBus(svcs))
		adm.GET("/users", handleListUsers(svcs))
		adm.POST("/users", handleCreateUser(svcs))
		adm.DELETE("/users/:id", handleDeleteUser(svcs))
		adm.PUT("/seats/:id/status", handleUpdateSeatStatus(svcs))
	}

	return r
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func writePDF(c *gin.Context, name string, pdf []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// errorStatus maps a service error to the HTTP status and the message shown
// to the user.
func errorStatus(err error) (int, ErrorResponse) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, ErrorResponse{Error: ve.Message, Field: ve.Field}
	}

	var rl *account.RateLimitedError
	if errors.As(err, &rl) {
		return http.StatusTooManyRequests, ErrorResponse{Error: rl.Error()}
	}

	switch {
	// account service
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: "invalid email or password"}
	case errors.Is(err, account.ErrSessionNotFound):
		return http.StatusUnauthorized, ErrorResponse{Error: "login required"}
	// booking flow
	case errors.Is(err, bookingflow.ErrFlowNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "booking flow not found"}
	case errors.Is(err, bookingflow.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "booking flow belongs to another user"}
	case errors.Is(err, bookingflow.ErrFlowClosed):
		return http.StatusConflict, ErrorResponse{Error: "booking flow is closed, start a new booking"}
	case errors.Is(err, bookingflow.ErrSubmissionInProgress):
		return http.StatusConflict, ErrorResponse{Error: "booking is being confirmed"}
	case errors.Is(err, bookingflow.ErrWrongPhase):
		return http.StatusConflict, ErrorResponse{Error: err.Error()}
	// booking list
	case errors.Is(err, bookinglist.ErrBookingNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "booking not found"}
	case errors.Is(err, bookinglist.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "admins only"}
	// admin service
	case errors.Is(err, admin.ErrBusNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "bus not found"}
	case errors.Is(err, admin.ErrUserNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "user not found"}
	case errors.Is(err, admin.ErrSeatNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "seat not found"}
	// tickets
	case errors.Is(err, ticket.ErrNotPrintable):
		return http.StatusConflict, ErrorResponse{Error: "only confirmed bookings have a ticket"}
	// backend
	case errors.Is(err, gateway.ErrNotImplemented):
		return http.StatusNotImplemented, ErrorResponse{Error: "seat transfer is not available yet"}
	case gateway.StatusOf(err) == http.StatusNotFound:
		return http.StatusNotFound, ErrorResponse{Error: "not found"}
	case gateway.IsGatewayError(err):
		return http.StatusBadGateway, ErrorResponse{Error: "booking service unavailable"}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: "internal error"}
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	var rl *account.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
	}

	c.JSON(status, body)
}
