package bookinglist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/gateway"
	"github.com/kirinyoku/busgo/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu sync.Mutex

	all   []domain.Booking
	buses map[int64]domain.Bus

	listErr   error
	cancelErr error

	listCalls int
	cancelled []int64
	deleted   []int64
	transfers []string
}

func (g *fakeGateway) ListBookings(context.Context) ([]domain.Booking, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	return g.all, g.listErr
}

func (g *fakeGateway) ListUserBookings(_ context.Context, userID int64) ([]domain.Booking, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	var out []domain.Booking
	for _, b := range g.all {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (g *fakeGateway) CancelBooking(_ context.Context, id int64) error {
	g.cancelled = append(g.cancelled, id)
	return g.cancelErr
}

func (g *fakeGateway) DeleteBooking(_ context.Context, id int64) error {
	g.deleted = append(g.deleted, id)
	return nil
}

func (g *fakeGateway) GetBus(_ context.Context, id int64) (*domain.Bus, error) {
	bus, ok := g.buses[id]
	if !ok {
		return nil, &gateway.HTTPError{Op: "GetBus", Status: 404}
	}
	return &bus, nil
}

func (g *fakeGateway) TransferBooking(_ context.Context, id int64, email string) error {
	g.transfers = append(g.transfers, email)
	return gateway.ErrNotImplemented
}

type memStore struct {
	docs map[string][]byte
}

func (m *memStore) Load(_ context.Context, id string) (List, error) {
	b, ok := m.docs[id]
	if !ok {
		return List{}, repository.ErrNotFound
	}
	var l List
	err := json.Unmarshal(b, &l)
	return l, err
}

func (m *memStore) Delete(_ context.Context, id string) error {
	delete(m.docs, id)
	return nil
}

func (m *memStore) Save(_ context.Context, id string, l List) error {
	b, err := json.Marshal(l)
	if err != nil {
		return err
	}
	m.docs[id] = b
	return nil
}

type recordingNotifier struct {
	buses []int64
}

func (n *recordingNotifier) PublishBusChanged(_ context.Context, busID int64) error {
	n.buses = append(n.buses, busID)
	return nil
}

var (
	alice = domain.User{ID: 7, Name: "Alice", Email: "alice@example.com", Role: domain.RoleUser}
	admin = domain.User{ID: 1, Name: "Root", Role: domain.RoleAdmin}
)

func newService(gw *fakeGateway) (*Service, *recordingNotifier) {
	n := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(gw, &memStore{docs: map[string][]byte{}}, n, logger), n
}

func aliceBookings() []domain.Booking {
	return []domain.Booking{
		{ID: 41, UserID: 7, BusID: 3, SeatNumber: "R01", Amount: 500, Status: domain.BookingPending},
		{ID: 42, UserID: 7, BusID: 3, SeatNumber: "R02", Amount: 500, Status: domain.BookingConfirmed},
		{ID: 43, UserID: 7, BusID: 4, SeatNumber: "R03", Amount: 350, Status: domain.BookingConfirmed},
		{ID: 44, UserID: 7, BusID: 4, SeatNumber: "R04", Amount: 350, Status: domain.BookingCancelled},
	}
}

func ids(bs []domain.Booking) []int64 {
	out := make([]int64, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func TestViewFilters(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, _ := newService(gw)
	ctx := context.Background()

	tests := []struct {
		status domain.BookingStatus
		want   []int64
	}{
		{status: "", want: []int64{41, 42, 43, 44}},
		{status: domain.BookingConfirmed, want: []int64{42, 43}},
		{status: domain.BookingPending, want: []int64{41}},
		{status: domain.BookingCompleted, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			v, err := svc.View(ctx, alice, tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(v.Bookings))
		})
	}

	assert.Equal(t, 1, gw.listCalls, "filtering must not refetch")
}

func TestViewRejectsUnknownStatus(t *testing.T) {
	svc, _ := newService(&fakeGateway{})

	_, err := svc.View(context.Background(), alice, "LOST")
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRefreshScope(t *testing.T) {
	all := append(aliceBookings(), domain.Booking{ID: 50, UserID: 8, BusID: 3, SeatNumber: "R09", Status: domain.BookingPending})
	gw := &fakeGateway{all: all}
	svc, _ := newService(gw)
	ctx := context.Background()

	l, err := svc.Refresh(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, l.Bookings, 4)

	l, err = svc.Refresh(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, l.Bookings, 5)
}

func TestRefreshFailureKeepsList(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, _ := newService(gw)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, alice)
	require.NoError(t, err)

	gw.listErr = &gateway.NetworkError{Op: "ListUserBookings", Err: errors.New("timeout")}
	l, err := svc.Refresh(ctx, alice)
	require.Error(t, err)
	assert.Equal(t, MsgFetchFailed, l.Error)
	assert.Len(t, l.Bookings, 4)
}

func TestCancelPatchesLocally(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, n := newService(gw)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, alice)
	require.NoError(t, err)

	l, err := svc.Cancel(ctx, alice, 42, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, gw.cancelled)
	assert.Equal(t, 1, gw.listCalls, "cancel must not refetch")
	assert.Equal(t, []int64{3}, n.buses)

	statuses := make([]domain.BookingStatus, len(l.Bookings))
	for i, b := range l.Bookings {
		statuses[i] = b.Status
	}
	assert.Equal(t, []domain.BookingStatus{
		domain.BookingPending,
		domain.BookingCancelled,
		domain.BookingConfirmed,
		domain.BookingCancelled,
	}, statuses)

	v, err := svc.View(ctx, alice, domain.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, []int64{43}, ids(v.Bookings))
}

func TestCancelNeedsConfirmation(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, _ := newService(gw)

	_, err := svc.Cancel(context.Background(), alice, 42, false)
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Empty(t, gw.cancelled)
}

func TestCancelFailure(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings(), cancelErr: &gateway.HTTPError{Op: "CancelBooking", Status: 500}}
	svc, n := newService(gw)

	l, err := svc.Cancel(context.Background(), alice, 42, true)
	require.Error(t, err)
	assert.Equal(t, MsgCancelFailed, l.Error)
	assert.Equal(t, domain.BookingConfirmed, l.Bookings[1].Status)
	assert.Empty(t, n.buses)
}

func TestCancelAlreadyCancelled(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, _ := newService(gw)

	_, err := svc.Cancel(context.Background(), alice, 44, true)
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Empty(t, gw.cancelled)
}

func TestDeleteAdminOnly(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, _ := newService(gw)
	ctx := context.Background()

	_, err := svc.Delete(ctx, alice, 41)
	assert.ErrorIs(t, err, ErrForbidden)

	l, err := svc.Delete(ctx, admin, 41)
	require.NoError(t, err)
	assert.Equal(t, []int64{41}, gw.deleted)
	assert.Equal(t, []int64{42, 43, 44}, ids(l.Bookings))
}

func TestInvalidateRefetchesOnNextView(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, _ := newService(gw)
	ctx := context.Background()

	v, err := svc.View(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, v.Bookings, 4)

	_, err = svc.View(ctx, admin, "")
	require.NoError(t, err)
	require.Equal(t, 2, gw.listCalls)

	// a booking is created through the booking flow
	gw.all = append(gw.all, domain.Booking{ID: 45, UserID: 7, BusID: 3, SeatNumber: "R05", Status: domain.BookingConfirmed})
	require.NoError(t, svc.Invalidate(ctx, alice.ID))

	v, err = svc.View(ctx, alice, domain.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 43, 45}, ids(v.Bookings))

	v, err = svc.View(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, v.Bookings, 5, "the shared admin list is dropped as well")
	assert.Equal(t, 4, gw.listCalls)
}

func TestAdminsShareTheAllBookingsList(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, _ := newService(gw)
	ctx := context.Background()
	other := domain.User{ID: 2, Name: "Ops", Role: domain.RoleAdmin}

	_, err := svc.Cancel(ctx, admin, 41, true)
	require.NoError(t, err)

	v, err := svc.View(ctx, other, domain.BookingCancelled)
	require.NoError(t, err)
	assert.Equal(t, []int64{41, 44}, ids(v.Bookings))
	assert.Equal(t, 1, gw.listCalls)
}

func TestAdminCancelDropsOwnerList(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, _ := newService(gw)
	ctx := context.Background()

	_, err := svc.View(ctx, alice, "")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, admin, 42, true)
	require.NoError(t, err)
	gw.all[1].Status = domain.BookingCancelled

	v, err := svc.View(ctx, alice, domain.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, []int64{43}, ids(v.Bookings), "alice sees the admin's cancellation")
}

func TestTransferCandidates(t *testing.T) {
	gw := &fakeGateway{
		all:   aliceBookings(),
		buses: map[int64]domain.Bus{3: {ID: 3, Name: "Night Express"}},
	}
	svc, _ := newService(gw)

	got, err := svc.TransferCandidates(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 43}, ids(got))
	require.NotNil(t, got[0].Bus)
	assert.Equal(t, "Night Express", got[0].Bus.Name)
	assert.Nil(t, got[1].Bus, "bus 4 failed to load")
}

func TestTransferValidation(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, _ := newService(gw)
	ctx := context.Background()

	var ve *domain.ValidationError

	err := svc.Transfer(ctx, alice, TransferRequest{BookingID: 42})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgTransferMissing, ve.Message)

	err = svc.Transfer(ctx, alice, TransferRequest{RecipientEmail: "bob@example.com"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgTransferMissing, ve.Message)

	err = svc.Transfer(ctx, alice, TransferRequest{BookingID: 42, RecipientEmail: "not-an-email"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "recipientEmail", ve.Field)

	err = svc.Transfer(ctx, alice, TransferRequest{BookingID: 41, RecipientEmail: "bob@example.com"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "bookingId", ve.Field)

	assert.Empty(t, gw.transfers)
}

func TestTransferNotImplemented(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings()}
	svc, _ := newService(gw)

	err := svc.Transfer(context.Background(), alice, TransferRequest{BookingID: 42, RecipientEmail: "bob@example.com"})
	assert.ErrorIs(t, err, gateway.ErrNotImplemented)
	assert.Equal(t, []string{"bob@example.com"}, gw.transfers)
}

func TestTicket(t *testing.T) {
	gw := &fakeGateway{all: aliceBookings(), buses: map[int64]domain.Bus{3: {ID: 3, Name: "Night Express"}}}
	svc, _ := newService(gw)
	ctx := context.Background()

	pdf, err := svc.Ticket(ctx, alice, 42)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))

	_, err = svc.Ticket(ctx, alice, 41)
	assert.Error(t, err, "pending bookings have no ticket")

	_, err = svc.Ticket(ctx, alice, 999)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
