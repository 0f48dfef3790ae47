package domain

type SeatType string

const (
	SeatRegular  SeatType = "REGULAR"
	SeatElder    SeatType = "ELDER"
	SeatPregnant SeatType = "PREGNANT"
)

// SeatTypes lists every seat type in form order.
var SeatTypes = []SeatType{SeatRegular, SeatElder, SeatPregnant}

func (t SeatType) Valid() bool {
	switch t {
	case SeatRegular, SeatElder, SeatPregnant:
		return true
	}
	return false
}

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatBooked    SeatStatus = "BOOKED"
)

func (s SeatStatus) Valid() bool {
	return s == SeatAvailable || s == SeatBooked
}

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

type Bus struct {
	ID             int64   `json:"id" validate:"required"`
	Name           string  `json:"name"`
	Route          string  `json:"route"`
	DepartureDate  Date    `json:"departureDate"`
	DepartureTime  string  `json:"departureTime"`
	ArrivalTime    string  `json:"arrivalTime"`
	TotalSeats     int     `json:"totalSeats" validate:"gte=0"`
	AvailableSeats int     `json:"availableSeats" validate:"gte=0"`
	Price          float64 `json:"price" validate:"gte=0"`
}

type Seat struct {
	ID         int64      `json:"id" validate:"required"`
	BusID      int64      `json:"busId,omitempty"`
	SeatNumber string     `json:"seatNumber" validate:"required"`
	SeatType   SeatType   `json:"seatType" validate:"oneof=REGULAR ELDER PREGNANT"`
	Status     SeatStatus `json:"status" validate:"oneof=AVAILABLE BOOKED"`
}

type User struct {
	ID    int64  `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserPriorityInfo is computed by the backend from the user profile.
type UserPriorityInfo struct {
	ElderlyPriorityEligible  bool     `json:"elderlyPriorityEligible"`
	PregnantPriorityEligible bool     `json:"pregnantPriorityEligible"`
	RecommendedSeatType      SeatType `json:"recommendedSeatType,omitempty" validate:"omitempty,oneof=REGULAR ELDER PREGNANT"`
}

type Booking struct {
	ID          int64         `json:"id" validate:"required"`
	UserID      int64         `json:"userId" validate:"required"`
	BusID       int64         `json:"busId" validate:"required"`
	BookingDate LocalDateTime `json:"bookingDate"`
	SeatNumber  string        `json:"seatNumber" validate:"required"`
	Amount      float64       `json:"amount" validate:"gte=0"`
	Status      BookingStatus `json:"status" validate:"oneof=PENDING CONFIRMED CANCELLED COMPLETED"`
	Bus         *Bus          `json:"bus,omitempty"`
}

// BookingRequest is the create-booking payload.
type BookingRequest struct {
	UserID      int64         `json:"userId"`
	BusID       int64         `json:"busId"`
	BookingDate LocalDateTime `json:"bookingDate"`
	SeatNumber  string        `json:"seatNumber"`
	Amount      float64       `json:"amount"`
	Status      BookingStatus `json:"status"`
}

// BookingDraft is an assembled booking that has not been sent yet.
type BookingDraft struct {
	BookingRequest
	Bus Bus `json:"bus"`
}

// SeatCounts maps seat type to seat count. Missing keys read as zero.
type SeatCounts map[SeatType]int

func (c SeatCounts) Get(t SeatType) int {
	if c == nil {
		return 0
	}
	return c[t]
}

// Normalized returns a copy holding exactly the known seat types.
func (c SeatCounts) Normalized() SeatCounts {
	out := make(SeatCounts, len(SeatTypes))
	for _, t := range SeatTypes {
		out[t] = c.Get(t)
	}
	return out
}
