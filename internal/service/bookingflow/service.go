// Package bookingflow drives a single booking from bus selection to a
// confirmed booking.
package bookingflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/eligibility"
	"github.com/kirinyoku/busgo/internal/repository"
	"github.com/kirinyoku/busgo/internal/ticket"
	"golang.org/x/sync/errgroup"
)

// Gateway is the part of the backend API the flow talks to.
type Gateway interface {
	ListBuses(ctx context.Context) ([]domain.Bus, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListSeats(ctx context.Context, busID int64) ([]domain.Seat, error)
	SeatCounts(ctx context.Context, busID int64) (domain.SeatCounts, error)
	PriorityInfo(ctx context.Context, userID int64) (*domain.UserPriorityInfo, error)
	CreateBooking(ctx context.Context, req domain.BookingRequest) (*domain.Booking, error)
}

type Store interface {
	Load(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, id string, st State) error
	Delete(ctx context.Context, id string) error
}

type Locker interface {
	Acquire(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, id string) error
}

type Notifier interface {
	PublishBusChanged(ctx context.Context, busID int64) error
}

// ListInvalidator drops cached booking lists so that the bookings page
// shows a booking confirmed here.
type ListInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...int64) error
}

type Config struct {
	SuccessDelay    time.Duration
	SuccessRedirect string
	LockTTL         time.Duration
}

type Service struct {
	gw       Gateway
	store    Store
	locker   Locker
	notifier Notifier
	lists    ListInvalidator
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

func New(
	gw Gateway,
	store Store,
	locker Locker,
	notifier Notifier,
	lists ListInvalidator,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.SuccessDelay <= 0 {
		cfg.SuccessDelay = 2 * time.Second
	}

	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/bookings"
	}

	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		gw:       gw,
		store:    store,
		locker:   locker,
		notifier: notifier,
		lists:    lists,
		logger:   logger.With(slog.String("component", "bookingflow")),
		cfg:      cfg,
		now:      time.Now,
	}
}

type StartInput struct {
	User  domain.User
	BusID int64
}

// Start opens a new flow for user. The bus and user lists are required and
// a failure to load them leaves the flow errored. Seats and priority info
// are optional and only degrade the form.
//
// Returns:
//   - State: the new flow, also when it ended up errored.
//   - error: the gateway error that made the flow errored.
func (s *Service) Start(ctx context.Context, in StartInput) (State, error) {
	const op = "service.bookingflow.Start"

	st := State{
		ID:    uuid.NewString(),
		Phase: PhaseInitializing,
		Owner: in.User,
		Form: Form{
			UserID:      in.User.ID,
			BusID:       in.BusID,
			SeatType:    domain.SeatRegular,
			BookingDate: domain.LocalDateTime{Time: s.now().Truncate(time.Minute)},
		},
		SeatsGen:    1,
		PriorityGen: 1,
	}

	var (
		buses    []domain.Bus
		users    []domain.User
		seats    []domain.Seat
		counts   domain.SeatCounts
		priority *domain.UserPriorityInfo
		seatsErr error
		prioErr  error
	)

	required, rctx := errgroup.WithContext(ctx)
	required.Go(func() error {
		var err error
		buses, err = s.gw.ListBuses(rctx)
		return err
	})
	required.Go(func() error {
		var err error
		users, err = s.gw.ListUsers(rctx)
		return err
	})

	var optional errgroup.Group
	if in.BusID != 0 {
		optional.Go(func() error {
			seats, counts, seatsErr = s.fetchSeats(ctx, in.BusID)
			return nil
		})
	}
	if in.User.ID != 0 {
		optional.Go(func() error {
			priority, prioErr = s.gw.PriorityInfo(ctx, in.User.ID)
			return nil
		})
	}

	loadErr := required.Wait()
	_ = optional.Wait()

	if loadErr != nil {
		s.logger.Error("failed to load buses and users",
			slog.String("flow_id", st.ID),
			slog.String("err", loadErr.Error()),
		)

		st.Phase = PhaseErrored
		st.Error = MsgLoadFailed
		if err := s.save(ctx, &st); err != nil {
			return st, fmt.Errorf("%s: %w", op, err)
		}
		return st, fmt.Errorf("%s: %w", op, loadErr)
	}

	st.Buses = buses
	st.Users = users
	st.Phase = PhaseSelecting

	if bus, ok := findBus(buses, in.BusID); ok {
		st.BusLocked = true
		st.Form.Amount = bus.Price
		s.applySeats(&st, seats, counts, seatsErr)
	} else {
		st.Form.BusID = 0
	}

	if prioErr != nil {
		s.logPartial(st.ID, &PartialLoadError{Section: "priority", Err: prioErr})
	} else {
		s.applyPriority(&st, priority)
	}

	if err := s.save(ctx, &st); err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("booking flow started",
		slog.String("flow_id", st.ID),
		slog.Int64("user_id", in.User.ID),
		slog.Int64("bus_id", st.Form.BusID),
	)

	return st, nil
}

func (s *Service) Get(ctx context.Context, id string, viewer domain.User) (State, error) {
	const op = "service.bookingflow.Get"

	st, err := s.load(ctx, id, viewer)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// SelectBus switches the bus and reloads its seats. A bus picked from the
// bus list before the flow started cannot be changed.
func (s *Service) SelectBus(ctx context.Context, id string, viewer domain.User, busID int64) (State, error) {
	const op = "service.bookingflow.SelectBus"

	st, err := s.loadSelecting(ctx, id, viewer, "select a bus")
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	if st.BusLocked {
		return st, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("busId", "bus is fixed for this booking"))
	}

	bus, ok := findBus(st.Buses, busID)
	if !ok {
		return st, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("busId", "bus %d not found", busID))
	}

	st.Form.BusID = bus.ID
	st.Form.Amount = bus.Price
	st.Form.SeatNumber = ""

	st, err = s.reloadSeats(ctx, st)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// SelectSeatType clears the seat and reloads the current bus's seats.
// Types the user is not eligible for are accepted here and rejected by
// Submit.
func (s *Service) SelectSeatType(ctx context.Context, id string, viewer domain.User, t domain.SeatType) (State, error) {
	const op = "service.bookingflow.SelectSeatType"

	st, err := s.loadSelecting(ctx, id, viewer, "select a seat type")
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	if !t.Valid() {
		return st, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("seatType", "unknown seat type %q", t))
	}

	st.Form.SeatType = t
	st.Form.SeatNumber = ""

	if st.Form.BusID == 0 {
		if err := s.save(ctx, &st); err != nil {
			return st, fmt.Errorf("%s: %w", op, err)
		}
		return st, nil
	}

	st, err = s.reloadSeats(ctx, st)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// SelectUser lets an admin book for someone else. The chosen user's
// priority info replaces the current one.
func (s *Service) SelectUser(ctx context.Context, id string, viewer domain.User, userID int64) (State, error) {
	const op = "service.bookingflow.SelectUser"

	st, err := s.loadSelecting(ctx, id, viewer, "select a user")
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	if !st.Owner.IsAdmin() {
		return st, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("userId", "only admins can book for other users"))
	}

	found := false
	for _, u := range st.Users {
		if u.ID == userID {
			found = true
			break
		}
	}
	if !found {
		return st, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("userId", "user %d not found", userID))
	}

	st.Form.UserID = userID
	st.Priority = nil
	st.PriorityMessage = ""
	st.PriorityGen++
	gen := st.PriorityGen

	if err := s.save(ctx, &st); err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	info, fetchErr := s.gw.PriorityInfo(ctx, userID)

	latest, err := s.store.Load(ctx, id)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, s.mapLoadErr(err))
	}
	if latest.PriorityGen != gen {
		s.logger.Info("discarding superseded priority fetch",
			slog.String("flow_id", id),
			slog.Uint64("gen", gen),
			slog.Uint64("current_gen", latest.PriorityGen),
		)
		return latest, nil
	}
	if latest.Phase != PhaseSelecting {
		s.logger.Info("discarding priority fetch after phase change",
			slog.String("flow_id", id),
			slog.String("phase", string(latest.Phase)),
		)
		return latest, nil
	}

	if fetchErr != nil {
		s.logPartial(id, &PartialLoadError{Section: "priority", Err: fetchErr})
	} else {
		s.applyPriority(&latest, info)
	}

	if err := s.save(ctx, &latest); err != nil {
		return latest, fmt.Errorf("%s: %w", op, err)
	}

	return latest, nil
}

// SelectSeat picks a seat on the map. Seats of another type or already
// booked are refused and the selection stays as it was.
func (s *Service) SelectSeat(ctx context.Context, id string, viewer domain.User, number string) (State, error) {
	const op = "service.bookingflow.SelectSeat"

	st, err := s.loadSelecting(ctx, id, viewer, "select a seat")
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	if st.SeatMap().Select(number) != number {
		return st, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("seatNumber", "seat %s is not available", number))
	}

	st.Form.SeatNumber = number

	if err := s.save(ctx, &st); err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// SetBookingDate takes a date-time picker value (yyyy-mm-ddThh:mm).
func (s *Service) SetBookingDate(ctx context.Context, id string, viewer domain.User, value string) (State, error) {
	const op = "service.bookingflow.SetBookingDate"

	st, err := s.loadSelecting(ctx, id, viewer, "change the booking date")
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	t, err := domain.ParseLocalDateTime(value)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("bookingDate", "invalid date %q", value))
	}

	st.Form.BookingDate = t

	if err := s.save(ctx, &st); err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// Submit validates the form and assembles a PENDING draft. Nothing is sent
// to the backend until ConfirmPayment.
func (s *Service) Submit(ctx context.Context, id string, viewer domain.User) (State, error) {
	const op = "service.bookingflow.Submit"

	st, err := s.loadSelecting(ctx, id, viewer, "submit")
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	if err := validateForm(st); err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	bus, _ := st.SelectedBus()
	date := st.Form.BookingDate
	if date.IsZero() {
		date = domain.LocalDateTime{Time: s.now().Truncate(time.Minute)}
	}

	st.Draft = &domain.BookingDraft{
		BookingRequest: domain.BookingRequest{
			UserID:      st.Form.UserID,
			BusID:       bus.ID,
			BookingDate: date,
			SeatNumber:  st.Form.SeatNumber,
			Amount:      bus.Price,
			Status:      domain.BookingPending,
		},
		Bus: bus,
	}
	st.Phase = PhaseAwaitingPayment
	st.Error = ""

	if err := s.save(ctx, &st); err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

func validateForm(st State) error {
	if st.Form.SeatNumber == "" {
		return domain.NewValidationError("seatNumber", "Please select a seat")
	}
	if st.Form.UserID == 0 {
		return domain.NewValidationError("userId", "Please select a user")
	}
	if _, ok := st.SelectedBus(); !ok {
		return domain.NewValidationError("busId", "Please select a bus")
	}

	if err := st.Eligibility().Check(st.Form.SeatType); err != nil {
		return err
	}

	c, ok := st.SeatMap().Cell(st.Form.SeatNumber)
	if !ok || !c.Selectable {
		return domain.NewValidationError("seatNumber", "seat %s is not available", st.Form.SeatNumber)
	}

	return nil
}

// ConfirmPayment sends the draft as a CONFIRMED booking. Only one confirm
// per flow runs at a time; a failed confirm can be retried.
//
// Returns:
//   - error: ErrSubmissionInProgress if another confirm holds the flow.
//   - error: the gateway error when the backend rejected the booking.
func (s *Service) ConfirmPayment(ctx context.Context, id string, viewer domain.User) (State, error) {
	const op = "service.bookingflow.ConfirmPayment"

	st, err := s.loadConfirmable(ctx, id, viewer)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.locker.Acquire(ctx, id, s.cfg.LockTTL)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return st, fmt.Errorf("%s: %w", op, ErrSubmissionInProgress)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), id); err != nil {
			s.logger.Warn("failed to release submission lock",
				slog.String("flow_id", id),
				slog.String("err", err.Error()),
			)
		}
	}()

	// a confirm that finished before we took the lock has moved the phase on
	st, err = s.loadConfirmable(ctx, id, viewer)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	st.Phase = PhaseSubmitting
	st.Error = ""
	if err := s.save(ctx, &st); err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	req := st.Draft.BookingRequest
	req.Status = domain.BookingConfirmed

	booking, createErr := s.gw.CreateBooking(ctx, req)
	if createErr != nil {
		s.logger.Error("failed to confirm booking",
			slog.String("flow_id", id),
			slog.Int64("bus_id", req.BusID),
			slog.String("seat", req.SeatNumber),
			slog.String("err", createErr.Error()),
		)

		st.Phase = PhaseAwaitingPayment
		st.Error = MsgConfirmFailed
		if err := s.save(context.WithoutCancel(ctx), &st); err != nil {
			return st, fmt.Errorf("%s: %w", op, err)
		}
		return st, fmt.Errorf("%s: %w", op, createErr)
	}

	st.Phase = PhaseDone
	st.Booking = booking
	st.RedirectTo = s.cfg.SuccessRedirect
	st.RedirectAfterMs = s.cfg.SuccessDelay.Milliseconds()
	if err := s.save(context.WithoutCancel(ctx), &st); err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("booking confirmed",
		slog.String("flow_id", id),
		slog.Int64("booking_id", booking.ID),
		slog.Int64("bus_id", req.BusID),
	)

	if s.lists != nil {
		if err := s.lists.Invalidate(context.WithoutCancel(ctx), st.Owner.ID, req.UserID); err != nil {
			s.logger.Warn("failed to invalidate booking lists",
				slog.String("flow_id", id),
				slog.String("err", err.Error()),
			)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.PublishBusChanged(ctx, req.BusID); err != nil {
			s.logger.Warn("failed to publish bus change",
				slog.Int64("bus_id", req.BusID),
				slog.String("err", err.Error()),
			)
		}
	}

	return st, nil
}

// Abandon drops the flow. A flow being confirmed cannot be abandoned.
func (s *Service) Abandon(ctx context.Context, id string, viewer domain.User) error {
	const op = "service.bookingflow.Abandon"

	st, err := s.load(ctx, id, viewer)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if st.Phase == PhaseSubmitting {
		return fmt.Errorf("%s: %w", op, ErrSubmissionInProgress)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Ticket renders the e-ticket of a confirmed flow.
func (s *Service) Ticket(ctx context.Context, id string, viewer domain.User) ([]byte, error) {
	const op = "service.bookingflow.Ticket"

	st, err := s.load(ctx, id, viewer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if st.Phase != PhaseDone || st.Booking == nil {
		return nil, fmt.Errorf("%s: %w", op, &PhaseError{Action: "print a ticket", Phase: st.Phase})
	}

	var bus domain.Bus
	if st.Draft != nil {
		bus = st.Draft.Bus
	}

	pdf, err := ticket.Render(ticket.Ticket{
		Booking:   *st.Booking,
		Bus:       bus,
		Passenger: st.BookingUser(),
		IssuedAt:  st.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pdf, nil
}

// reloadSeats bumps the seat generation, saves st and fetches the seats of
// the current bus. The result is applied to the latest stored state only
// when no newer fetch has started meanwhile.
func (s *Service) reloadSeats(ctx context.Context, st State) (State, error) {
	st.SeatsGen++
	st.Seats = nil
	st.SeatCounts = nil
	st.Error = ""
	gen, busID := st.SeatsGen, st.Form.BusID

	if err := s.save(ctx, &st); err != nil {
		return st, err
	}

	seats, counts, fetchErr := s.fetchSeats(ctx, busID)

	latest, err := s.store.Load(ctx, st.ID)
	if err != nil {
		return st, s.mapLoadErr(err)
	}
	if latest.SeatsGen != gen {
		s.logger.Info("discarding superseded seat fetch",
			slog.String("flow_id", st.ID),
			slog.Int64("bus_id", busID),
			slog.Uint64("gen", gen),
			slog.Uint64("current_gen", latest.SeatsGen),
		)
		return latest, nil
	}
	if latest.Phase != PhaseSelecting {
		s.logger.Info("discarding seat fetch after phase change",
			slog.String("flow_id", st.ID),
			slog.String("phase", string(latest.Phase)),
		)
		return latest, nil
	}

	s.applySeats(&latest, seats, counts, fetchErr)

	if err := s.save(ctx, &latest); err != nil {
		return latest, err
	}

	return latest, nil
}

func (s *Service) fetchSeats(ctx context.Context, busID int64) ([]domain.Seat, domain.SeatCounts, error) {
	var (
		seats  []domain.Seat
		counts domain.SeatCounts
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		seats, err = s.gw.ListSeats(gctx, busID)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.gw.SeatCounts(gctx, busID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return seats, counts, nil
}

func (s *Service) applySeats(st *State, seats []domain.Seat, counts domain.SeatCounts, err error) {
	if err != nil {
		s.logPartial(st.ID, &PartialLoadError{Section: "seats", Err: err})
		st.Seats = nil
		st.SeatCounts = nil
		st.Error = MsgSeatsFailed
		return
	}

	st.Seats = seats
	st.SeatCounts = counts
	st.Error = ""
}

// applyPriority stores info and switches to the recommended seat type.
func (s *Service) applyPriority(st *State, info *domain.UserPriorityInfo) {
	st.Priority = info

	r := eligibility.Resolve(info, st.Owner.Role)
	rec, ok := r.Recommended()
	if !ok {
		st.PriorityMessage = ""
		return
	}

	if rec != st.Form.SeatType {
		st.Form.SeatType = rec
		st.Form.SeatNumber = ""
	}
	st.PriorityMessage = r.Message()
}

func (s *Service) logPartial(flowID string, err *PartialLoadError) {
	s.logger.Warn("partial load failed",
		slog.String("flow_id", flowID),
		slog.String("section", err.Section),
		slog.String("err", err.Err.Error()),
	)
}

func (s *Service) load(ctx context.Context, id string, viewer domain.User) (State, error) {
	st, err := s.store.Load(ctx, id)
	if err != nil {
		return State{}, s.mapLoadErr(err)
	}

	if st.Owner.ID != viewer.ID {
		return State{}, ErrForbidden
	}

	return st, nil
}

// loadSelecting loads a flow that still accepts form changes.
func (s *Service) loadSelecting(ctx context.Context, id string, viewer domain.User, action string) (State, error) {
	st, err := s.load(ctx, id, viewer)
	if err != nil {
		return st, err
	}

	switch {
	case st.Phase.Terminal():
		return st, ErrFlowClosed
	case st.Phase != PhaseSelecting:
		return st, &PhaseError{Action: action, Phase: st.Phase}
	}

	return st, nil
}

func (s *Service) loadConfirmable(ctx context.Context, id string, viewer domain.User) (State, error) {
	st, err := s.load(ctx, id, viewer)
	if err != nil {
		return st, err
	}

	switch {
	case st.Phase.Terminal():
		return st, ErrFlowClosed
	case st.Phase == PhaseSubmitting:
		return st, ErrSubmissionInProgress
	case st.Phase != PhaseAwaitingPayment || st.Draft == nil:
		return st, &PhaseError{Action: "confirm payment", Phase: st.Phase}
	}

	return st, nil
}

func (s *Service) mapLoadErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrFlowNotFound
	}
	return err
}

func (s *Service) save(ctx context.Context, st *State) error {
	st.UpdatedAt = s.now().UTC()
	return s.store.Save(ctx, st.ID, *st)
}
