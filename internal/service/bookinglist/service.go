// Package bookinglist serves the "my bookings" page: listing, filtering,
// cancelling and transferring bookings.
package bookinglist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/repository"
	"github.com/kirinyoku/busgo/internal/ticket"
	"golang.org/x/sync/errgroup"
)

type Gateway interface {
	ListBookings(ctx context.Context) ([]domain.Booking, error)
	ListUserBookings(ctx context.Context, userID int64) ([]domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64) error
	DeleteBooking(ctx context.Context, bookingID int64) error
	GetBus(ctx context.Context, busID int64) (*domain.Bus, error)
	TransferBooking(ctx context.Context, bookingID int64, recipientEmail string) error
}

type Store interface {
	Load(ctx context.Context, id string) (List, error)
	Save(ctx context.Context, id string, l List) error
	Delete(ctx context.Context, id string) error
}

type Notifier interface {
	PublishBusChanged(ctx context.Context, busID int64) error
}

// List is the last fetched booking list of one viewer.
type List struct {
	Bookings  []domain.Booking `json:"bookings"`
	Error     string           `json:"error,omitempty"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// Filtered keeps the bookings with status s, in order. An empty status
// keeps everything.
func (l List) Filtered(s domain.BookingStatus) []domain.Booking {
	out := make([]domain.Booking, 0, len(l.Bookings))
	for _, b := range l.Bookings {
		if s == "" || b.Status == s {
			out = append(out, b)
		}
	}
	return out
}

type View struct {
	Bookings []domain.Booking     `json:"bookings"`
	Status   domain.BookingStatus `json:"status,omitempty"`
	Error    string               `json:"error,omitempty"`
}

type TransferRequest struct {
	BookingID      int64  `json:"bookingId"`
	RecipientEmail string `json:"recipientEmail"`
}

type Service struct {
	gw       Gateway
	store    Store
	notifier Notifier
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func New(gw Gateway, store Store, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		gw:       gw,
		store:    store,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With(slog.String("component", "bookinglist")),
		now:      time.Now,
	}
}

// Refresh refetches the viewer's list: every booking for admins, their own
// otherwise. On failure the previous list is kept with a banner.
func (s *Service) Refresh(ctx context.Context, viewer domain.User) (List, error) {
	const op = "service.bookinglist.Refresh"

	l, err := s.load(ctx, viewer)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return l, fmt.Errorf("%s: %w", op, err)
	}

	var bookings []domain.Booking
	if viewer.IsAdmin() {
		bookings, err = s.gw.ListBookings(ctx)
	} else {
		bookings, err = s.gw.ListUserBookings(ctx, viewer.ID)
	}
	if err != nil {
		s.logger.Error("failed to fetch bookings",
			slog.Int64("user_id", viewer.ID),
			slog.String("err", err.Error()),
		)

		l.Error = MsgFetchFailed
		if serr := s.save(ctx, viewer, l); serr != nil {
			return l, fmt.Errorf("%s: %w", op, serr)
		}
		return l, fmt.Errorf("%s: %w", op, err)
	}

	l = List{Bookings: bookings, FetchedAt: s.now().UTC()}
	if err := s.save(ctx, viewer, l); err != nil {
		return l, fmt.Errorf("%s: %w", op, err)
	}

	return l, nil
}

// View filters the stored list by status without refetching. The list is
// fetched only when nothing is stored yet.
func (s *Service) View(ctx context.Context, viewer domain.User, status domain.BookingStatus) (View, error) {
	const op = "service.bookinglist.View"

	if status != "" && !status.Valid() {
		return View{}, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("status", "unknown status %q", status))
	}

	l, err := s.current(ctx, viewer)
	if err != nil {
		return View{Bookings: []domain.Booking{}, Status: status, Error: l.Error}, fmt.Errorf("%s: %w", op, err)
	}

	return View{Bookings: l.Filtered(status), Status: status, Error: l.Error}, nil
}

// Cancel cancels a booking after the user confirmed the prompt. Only the
// cancelled booking is patched locally, the list is not refetched.
func (s *Service) Cancel(ctx context.Context, viewer domain.User, bookingID int64, confirmed bool) (List, error) {
	const op = "service.bookinglist.Cancel"

	if !confirmed {
		return List{}, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("confirm", "Please confirm the cancellation"))
	}

	l, err := s.current(ctx, viewer)
	if err != nil {
		return l, fmt.Errorf("%s: %w", op, err)
	}

	i := l.index(bookingID)
	if i < 0 {
		return l, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
	}

	b := l.Bookings[i]
	if b.Status != domain.BookingPending && b.Status != domain.BookingConfirmed {
		return l, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("status", "a %s booking cannot be cancelled", strings.ToLower(string(b.Status))))
	}

	if err := s.gw.CancelBooking(ctx, bookingID); err != nil {
		s.logger.Error("failed to cancel booking",
			slog.Int64("booking_id", bookingID),
			slog.String("err", err.Error()),
		)

		l.Error = MsgCancelFailed
		if serr := s.save(ctx, viewer, l); serr != nil {
			return l, fmt.Errorf("%s: %w", op, serr)
		}
		return l, fmt.Errorf("%s: %w", op, err)
	}

	l.Bookings = slices.Clone(l.Bookings)
	l.Bookings[i].Status = domain.BookingCancelled
	l.Error = ""
	if err := s.save(ctx, viewer, l); err != nil {
		return l, fmt.Errorf("%s: %w", op, err)
	}

	s.dropOtherViews(ctx, viewer, b.UserID)
	s.publish(ctx, b.BusID)

	return l, nil
}

// Delete removes a booking for good. Admins only.
func (s *Service) Delete(ctx context.Context, viewer domain.User, bookingID int64) (List, error) {
	const op = "service.bookinglist.Delete"

	if !viewer.IsAdmin() {
		return List{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	l, err := s.current(ctx, viewer)
	if err != nil {
		return l, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.gw.DeleteBooking(ctx, bookingID); err != nil {
		return l, fmt.Errorf("%s: %w", op, err)
	}

	var busID, ownerID int64
	if i := l.index(bookingID); i >= 0 {
		busID, ownerID = l.Bookings[i].BusID, l.Bookings[i].UserID
		l.Bookings = slices.Delete(slices.Clone(l.Bookings), i, i+1)
	}

	if err := s.save(ctx, viewer, l); err != nil {
		return l, fmt.Errorf("%s: %w", op, err)
	}

	s.dropOtherViews(ctx, viewer, ownerID)
	s.publish(ctx, busID)

	return l, nil
}

// TransferCandidates lists the viewer's CONFIRMED bookings with their bus
// attached. A bus that fails to load is left empty.
func (s *Service) TransferCandidates(ctx context.Context, viewer domain.User) ([]domain.Booking, error) {
	const op = "service.bookinglist.TransferCandidates"

	bookings, err := s.gw.ListUserBookings(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]domain.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status == domain.BookingConfirmed {
			out = append(out, b)
		}
	}

	var g errgroup.Group
	g.SetLimit(4)
	for i := range out {
		if out[i].Bus != nil {
			continue
		}
		g.Go(func() error {
			bus, err := s.gw.GetBus(ctx, out[i].BusID)
			if err != nil {
				s.logger.Warn("failed to load bus for booking",
					slog.Int64("booking_id", out[i].ID),
					slog.Int64("bus_id", out[i].BusID),
					slog.String("err", err.Error()),
				)
				return nil
			}
			out[i].Bus = bus
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

// Transfer hands a confirmed booking to another user by email.
func (s *Service) Transfer(ctx context.Context, viewer domain.User, req TransferRequest) error {
	const op = "service.bookinglist.Transfer"

	email := strings.TrimSpace(req.RecipientEmail)
	if req.BookingID == 0 || email == "" {
		return fmt.Errorf("%s: %w", op, domain.NewValidationError("", MsgTransferMissing))
	}

	if err := s.validate.Var(email, "email"); err != nil {
		return fmt.Errorf("%s: %w", op,
			domain.NewValidationError("recipientEmail", "invalid email address %q", email))
	}

	if strings.EqualFold(email, viewer.Email) {
		return fmt.Errorf("%s: %w", op,
			domain.NewValidationError("recipientEmail", "cannot transfer a booking to yourself"))
	}

	bookings, err := s.gw.ListUserBookings(ctx, viewer.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	idx := slices.IndexFunc(bookings, func(b domain.Booking) bool { return b.ID == req.BookingID })
	if idx < 0 {
		return fmt.Errorf("%s: %w", op, ErrBookingNotFound)
	}
	if bookings[idx].Status != domain.BookingConfirmed {
		return fmt.Errorf("%s: %w", op,
			domain.NewValidationError("bookingId", "only confirmed bookings can be transferred"))
	}

	if err := s.gw.TransferBooking(ctx, req.BookingID, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Ticket renders the e-ticket of a confirmed or completed booking from the
// viewer's list.
func (s *Service) Ticket(ctx context.Context, viewer domain.User, bookingID int64) ([]byte, error) {
	const op = "service.bookinglist.Ticket"

	l, err := s.current(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	i := l.index(bookingID)
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
	}
	b := l.Bookings[i]

	var bus domain.Bus
	if b.Bus != nil {
		bus = *b.Bus
	} else if got, err := s.gw.GetBus(ctx, b.BusID); err == nil {
		bus = *got
	} else {
		s.logger.Warn("printing ticket without bus details",
			slog.Int64("booking_id", b.ID),
			slog.String("err", err.Error()),
		)
	}

	passenger := domain.User{ID: b.UserID}
	if b.UserID == viewer.ID {
		passenger = viewer
	}

	pdf, err := ticket.Render(ticket.Ticket{
		Booking:   b,
		Bus:       bus,
		Passenger: passenger,
		IssuedAt:  s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pdf, nil
}

func (l List) index(bookingID int64) int {
	return slices.IndexFunc(l.Bookings, func(b domain.Booking) bool { return b.ID == bookingID })
}

// Invalidate drops the stored lists of userIDs and the shared admin list, so
// the next visit refetches. Called after a booking was created elsewhere.
func (s *Service) Invalidate(ctx context.Context, userIDs ...int64) error {
	const op = "service.bookinglist.Invalidate"

	keys := []string{adminListKey}
	for _, id := range userIDs {
		if id != 0 {
			keys = append(keys, strconv.FormatInt(id, 10))
		}
	}

	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// dropOtherViews invalidates the lists that show the changed booking but
// were not patched: the owner's own list after an admin change, the admin
// list after an owner change.
func (s *Service) dropOtherViews(ctx context.Context, viewer domain.User, ownerID int64) {
	var err error
	switch {
	case viewer.IsAdmin() && ownerID != 0:
		err = s.store.Delete(ctx, strconv.FormatInt(ownerID, 10))
	case !viewer.IsAdmin():
		err = s.store.Delete(ctx, adminListKey)
	}
	if err != nil {
		s.logger.Warn("failed to drop stale booking list",
			slog.Int64("owner_id", ownerID),
			slog.String("err", err.Error()),
		)
	}
}

// current returns the stored list, fetching it when there is none.
func (s *Service) current(ctx context.Context, viewer domain.User) (List, error) {
	l, err := s.load(ctx, viewer)
	if errors.Is(err, repository.ErrNotFound) {
		return s.Refresh(ctx, viewer)
	}
	return l, err
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

func (s *Service) load(ctx context.Context, viewer domain.User) (List, error) {
	return s.store.Load(ctx, listKey(viewer))
}

func (s *Service) save(ctx context.Context, viewer domain.User, l List) error {
	return s.store.Save(ctx, listKey(viewer), l)
}

// adminListKey stores the all-bookings list every admin sees.
const adminListKey = "all"

func listKey(viewer domain.User) string {
	if viewer.IsAdmin() {
		return adminListKey
	}
	return strconv.FormatInt(viewer.ID, 10)
}
