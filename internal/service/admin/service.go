// Package admin manages the bus catalogue, users and seats through the
// backend API.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/gateway"
	"github.com/kirinyoku/busgo/internal/seatmap"
)

type Gateway interface {
	ListBuses(ctx context.Context) ([]domain.Bus, error)
	GetBus(ctx context.Context, busID int64) (*domain.Bus, error)
	SearchBuses(ctx context.Context, s gateway.BusSearch) ([]domain.Bus, error)
	CreateBus(ctx context.Context, in gateway.BusInput) (*domain.Bus, error)
	UpdateBus(ctx context.Context, busID int64, in gateway.BusInput) (*domain.Bus, error)
	DeleteBus(ctx context.Context, busID int64) error

	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, in gateway.UserInput) (*domain.User, error)
	DeleteUser(ctx context.Context, userID int64) error

	ListSeats(ctx context.Context, busID int64) ([]domain.Seat, error)
	AvailableSeats(ctx context.Context, busID int64) ([]domain.Seat, error)
	AvailableSeatsByType(ctx context.Context, busID int64, t domain.SeatType) ([]domain.Seat, error)
	SeatCounts(ctx context.Context, busID int64) (domain.SeatCounts, error)
	UpdateSeatStatus(ctx context.Context, seatID int64, status domain.SeatStatus) error
}

type Notifier interface {
	PublishBusChanged(ctx context.Context, busID int64) error
}

// BusForm is the add/edit bus form. DepartureDate comes from a date picker
// (yyyy-mm-dd) and is sent to the backend as dd-mm-yyyy.
type BusForm struct {
	Name           string  `json:"name" validate:"required"`
	Route          string  `json:"route" validate:"required"`
	DepartureDate  string  `json:"departureDate" validate:"required"`
	DepartureTime  string  `json:"departureTime" validate:"required"`
	ArrivalTime    string  `json:"arrivalTime" validate:"required"`
	TotalSeats     int     `json:"totalSeats" validate:"gt=0"`
	AvailableSeats int     `json:"availableSeats" validate:"gte=0,ltefield=TotalSeats"`
	Price          float64 `json:"price" validate:"gt=0"`
}

type UserForm struct {
	Name     string      `json:"name" validate:"required"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=USER ADMIN"`
	Age      int         `json:"age" validate:"gte=0,lte=130"`
	Pregnant bool        `json:"pregnant"`
}

type Service struct {
	gw       Gateway
	notifier Notifier
	validate *validator.Validate
	logger   *slog.Logger
}

func New(gw Gateway, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		gw:       gw,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With(slog.String("component", "admin")),
	}
}

func (s *Service) ListBuses(ctx context.Context) ([]domain.Bus, error) {
	const op = "service.admin.ListBuses"

	buses, err := s.gw.ListBuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buses, nil
}

func (s *Service) GetBus(ctx context.Context, busID int64) (*domain.Bus, error) {
	const op = "service.admin.GetBus"

	bus, err := s.gw.GetBus(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, ErrBusNotFound))
	}

	return bus, nil
}

func (s *Service) SearchBuses(ctx context.Context, q gateway.BusSearch) ([]domain.Bus, error) {
	const op = "service.admin.SearchBuses"

	buses, err := s.gw.SearchBuses(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buses, nil
}

// CreateBus validates the form and creates the bus.
//
// Returns:
//   - *domain.Bus: the bus as stored by the backend.
//   - error: *domain.ValidationError when the form is incomplete.
func (s *Service) CreateBus(ctx context.Context, f BusForm) (*domain.Bus, error) {
	const op = "service.admin.CreateBus"

	in, err := s.busInput(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bus, err := s.gw.CreateBus(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("bus created", slog.Int64("bus_id", bus.ID), slog.String("name", bus.Name))

	return bus, nil
}

func (s *Service) UpdateBus(ctx context.Context, busID int64, f BusForm) (*domain.Bus, error) {
	const op = "service.admin.UpdateBus"

	in, err := s.busInput(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bus, err := s.gw.UpdateBus(ctx, busID, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, ErrBusNotFound))
	}

	s.publish(ctx, busID)

	return bus, nil
}

func (s *Service) DeleteBus(ctx context.Context, busID int64) error {
	const op = "service.admin.DeleteBus"

	if err := s.gw.DeleteBus(ctx, busID); err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err, ErrBusNotFound))
	}

	s.logger.Info("bus deleted", slog.Int64("bus_id", busID))
	s.publish(ctx, busID)

	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	const op = "service.admin.ListUsers"

	users, err := s.gw.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

func (s *Service) CreateUser(ctx context.Context, f UserForm) (*domain.User, error) {
	const op = "service.admin.CreateUser"

	f.Email = strings.TrimSpace(f.Email)
	if err := s.validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, validationError(err))
	}

	u, err := s.gw.CreateUser(ctx, gateway.UserInput{
		Name:     f.Name,
		Email:    f.Email,
		Password: f.Password,
		Role:     f.Role,
		Age:      f.Age,
		Pregnant: f.Pregnant,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	const op = "service.admin.DeleteUser"

	if err := s.gw.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err, ErrUserNotFound))
	}

	return nil
}

// Seats lists the seats of a bus: all of them, the available ones, or the
// available ones of one type.
func (s *Service) Seats(ctx context.Context, busID int64, availableOnly bool, t domain.SeatType) ([]domain.Seat, error) {
	const op = "service.admin.Seats"

	var (
		seats []domain.Seat
		err   error
	)
	switch {
	case t != "":
		if !t.Valid() {
			return nil, fmt.Errorf("%s: %w", op,
				domain.NewValidationError("seatType", "unknown seat type %q", t))
		}
		seats, err = s.gw.AvailableSeatsByType(ctx, busID, t)
	case availableOnly:
		seats, err = s.gw.AvailableSeats(ctx, busID)
	default:
		seats, err = s.gw.ListSeats(ctx, busID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, ErrBusNotFound))
	}

	return seats, nil
}

func (s *Service) SeatCounts(ctx context.Context, busID int64) (domain.SeatCounts, error) {
	const op = "service.admin.SeatCounts"

	counts, err := s.gw.SeatCounts(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, ErrBusNotFound))
	}

	return counts, nil
}

// SeatMap renders the seat layout of a bus for a seat type. It is the
// read-only map shown on the bus details page.
func (s *Service) SeatMap(ctx context.Context, busID int64, t domain.SeatType, selected string) (seatmap.Layout, error) {
	const op = "service.admin.SeatMap"

	if t == "" {
		t = domain.SeatRegular
	}
	if !t.Valid() {
		return seatmap.Layout{}, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("seatType", "unknown seat type %q", t))
	}

	bus, err := s.gw.GetBus(ctx, busID)
	if err != nil {
		return seatmap.Layout{}, fmt.Errorf("%s: %w", op, notFound(err, ErrBusNotFound))
	}

	seats, err := s.gw.ListSeats(ctx, busID)
	if err != nil {
		return seatmap.Layout{}, fmt.Errorf("%s: %w", op, err)
	}

	return seatmap.Render(seats, selected, t, bus.TotalSeats), nil
}

// UpdateSeatStatus flips a seat between AVAILABLE and BOOKED and tells
// watchers of busID.
func (s *Service) UpdateSeatStatus(ctx context.Context, busID, seatID int64, status domain.SeatStatus) error {
	const op = "service.admin.UpdateSeatStatus"

	if !status.Valid() {
		return fmt.Errorf("%s: %w", op,
			domain.NewValidationError("status", "unknown seat status %q", status))
	}

	if err := s.gw.UpdateSeatStatus(ctx, seatID, status); err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err, ErrSeatNotFound))
	}

	s.logger.Info("seat status updated",
		slog.Int64("seat_id", seatID),
		slog.String("status", string(status)),
	)
	s.publish(ctx, busID)

	return nil
}

func (s *Service) busInput(f BusForm) (gateway.BusInput, error) {
	if err := s.validate.Struct(f); err != nil {
		return gateway.BusInput{}, validationError(err)
	}

	date, err := domain.ParsePickerDate(f.DepartureDate)
	if err != nil {
		return gateway.BusInput{}, domain.NewValidationError("departureDate", "invalid date %q", f.DepartureDate)
	}

	return gateway.BusInput{
		Name:           strings.TrimSpace(f.Name),
		Route:          strings.TrimSpace(f.Route),
		DepartureDate:  date,
		DepartureTime:  f.DepartureTime,
		ArrivalTime:    f.ArrivalTime,
		AvailableSeats: f.AvailableSeats,
		TotalSeats:     f.TotalSeats,
		Price:          f.Price,
	}, nil
}

func (s *Service) publish(ctx context.Context, busID int64) {
	if s.notifier == nil || busID == 0 {
		return
	}
	if err := s.notifier.PublishBusChanged(ctx, busID); err != nil {
		s.logger.Warn("failed to publish bus change",
			slog.Int64("bus_id", busID),
			slog.String("err", err.Error()),
		)
	}
}

// validationError reports the first failing field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(field, "%s is required", field)
	case "email":
		return domain.NewValidationError(field, "invalid email address")
	case "ltefield":
		return domain.NewValidationError(field, "%s cannot exceed %s", field, lowerFirst(fe.Param()))
	default:
		return domain.NewValidationError(field, "%s must be %s %s", field, fe.Tag(), fe.Param())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// notFound turns a backend 404 into the given sentinel while keeping the
// gateway error in the chain.
func notFound(err, sentinel error) error {
	if gateway.StatusOf(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
