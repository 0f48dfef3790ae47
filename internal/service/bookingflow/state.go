package bookingflow

import (
	"time"

	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/eligibility"
	"github.com/kirinyoku/busgo/internal/seatmap"
)

type Phase string

const (
	PhaseInitializing    Phase = "initializing"
	PhaseSelecting       Phase = "selecting"
	PhaseAwaitingPayment Phase = "awaiting_payment"
	PhaseSubmitting      Phase = "submitting"
	PhaseDone            Phase = "done"
	PhaseErrored         Phase = "errored"
)

func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseErrored
}

// Form holds the user's current choices.
type Form struct {
	UserID      int64                `json:"userId"`
	BusID       int64                `json:"busId"`
	SeatType    domain.SeatType      `json:"seatType"`
	SeatNumber  string               `json:"seatNumber"`
	BookingDate domain.LocalDateTime `json:"bookingDate"`
	Amount      float64              `json:"amount"`
}

// State is one booking flow. Every step loads it, changes it and saves it
// back; nothing else holds a reference to it.
type State struct {
	ID        string      `json:"id"`
	Phase     Phase       `json:"phase"`
	Owner     domain.User `json:"owner"`
	BusLocked bool        `json:"busLocked"`

	Buses []domain.Bus  `json:"buses"`
	Users []domain.User `json:"users"`
	Form  Form          `json:"form"`

	Seats           []domain.Seat            `json:"seats"`
	SeatCounts      domain.SeatCounts        `json:"seatCounts"`
	Priority        *domain.UserPriorityInfo `json:"priority,omitempty"`
	PriorityMessage string                   `json:"priorityMessage,omitempty"`

	Draft   *domain.BookingDraft `json:"draft,omitempty"`
	Booking *domain.Booking      `json:"booking,omitempty"`

	Error           string `json:"error,omitempty"`
	RedirectTo      string `json:"redirectTo,omitempty"`
	RedirectAfterMs int64  `json:"redirectAfterMs,omitempty"`

	// Generations of the latest seat and priority fetch. A fetch whose
	// generation no longer matches was superseded and is dropped.
	SeatsGen    uint64 `json:"seatsGen"`
	PriorityGen uint64 `json:"priorityGen"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func (s State) SelectedBus() (domain.Bus, bool) {
	return findBus(s.Buses, s.Form.BusID)
}

// BookingUser is the user the booking is made for.
func (s State) BookingUser() domain.User {
	if s.Form.UserID == s.Owner.ID {
		return s.Owner
	}
	for _, u := range s.Users {
		if u.ID == s.Form.UserID {
			return u
		}
	}
	return domain.User{ID: s.Form.UserID}
}

func (s State) Eligibility() eligibility.Resolution {
	return eligibility.Resolve(s.Priority, s.Owner.Role)
}

func (s State) SeatMap() seatmap.Layout {
	total := 0
	if bus, ok := s.SelectedBus(); ok {
		total = bus.TotalSeats
	}
	return seatmap.Render(s.Seats, s.Form.SeatNumber, s.Form.SeatType, total)
}

func (s State) CanSubmit() bool {
	return s.Phase == PhaseSelecting && s.Form.SeatNumber != ""
}

// View is what the booking page renders.
type View struct {
	State
	SeatMap    seatmap.Layout       `json:"seatMap"`
	Legend     []seatmap.LegendItem `json:"legend"`
	SeatTypes  []eligibility.Option `json:"seatTypes"`
	SeatCounts domain.SeatCounts    `json:"seatCounts"`
	CanSubmit  bool                 `json:"canSubmit"`
	CanConfirm bool                 `json:"canConfirm"`
}

func (s State) View() View {
	return View{
		State:      s,
		SeatMap:    s.SeatMap(),
		Legend:     seatmap.Legend(),
		SeatTypes:  s.Eligibility().Options(),
		SeatCounts: s.SeatCounts.Normalized(),
		CanSubmit:  s.CanSubmit(),
		CanConfirm: s.Phase == PhaseAwaitingPayment,
	}
}

func findBus(buses []domain.Bus, id int64) (domain.Bus, bool) {
	if id == 0 {
		return domain.Bus{}, false
	}
	for _, b := range buses {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Bus{}, false
}
