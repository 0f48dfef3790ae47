// Package seatmap turns a flat seat list into the row layout shown on the
// booking form.
package seatmap

import (
	"cmp"
	"iter"
	"slices"
	"strconv"

	"github.com/kirinyoku/busgo/internal/domain"
)

const (
	RowSize           = 4
	DefaultTotalSeats = 40
)

// State is how a seat is drawn.
type State string

const (
	StateSelected  State = "selected"
	StateOccupied  State = "occupied"
	StatePriority  State = "priority"
	StateAvailable State = "available"
)

type LegendItem struct {
	State State  `json:"state"`
	Label string `json:"label"`
}

func Legend() []LegendItem {
	return []LegendItem{
		{State: StateAvailable, Label: "Available"},
		{State: StateSelected, Label: "Selected"},
		{State: StateOccupied, Label: "Occupied"},
		{State: StatePriority, Label: "Priority"},
	}
}

type Cell struct {
	SeatID     int64             `json:"seatId"`
	Number     string            `json:"number"`
	Type       domain.SeatType   `json:"type"`
	Status     domain.SeatStatus `json:"status"`
	State      State             `json:"state"`
	Selectable bool              `json:"selectable"`
}

type Layout struct {
	Rows         [][]Cell        `json:"rows"`
	TotalSeats   int             `json:"totalSeats"`
	SelectedType domain.SeatType `json:"selectedType"`
	Selected     string          `json:"selected,omitempty"`
}

// Render builds the layout from scratch. The input slice is not modified.
func Render(
	seats []domain.Seat,
	selected string,
	selectedType domain.SeatType,
	totalSeats int,
) Layout {
	if totalSeats <= 0 {
		totalSeats = DefaultTotalSeats
	}

	sorted := slices.Clone(seats)
	slices.SortStableFunc(sorted, func(a, b domain.Seat) int {
		na, okA := SeatIndex(a.SeatNumber)
		nb, okB := SeatIndex(b.SeatNumber)
		switch {
		case okA && okB:
			return cmp.Compare(na, nb)
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})

	rows := make([][]Cell, 0, (len(sorted)+RowSize-1)/RowSize)
	for chunk := range slices.Chunk(sorted, RowSize) {
		row := make([]Cell, len(chunk))
		for i, s := range chunk {
			row[i] = cell(s, selected, selectedType)
		}
		rows = append(rows, row)
	}

	return Layout{
		Rows:         rows,
		TotalSeats:   totalSeats,
		SelectedType: selectedType,
		Selected:     selected,
	}
}

func cell(s domain.Seat, selected string, selectedType domain.SeatType) Cell {
	c := Cell{
		SeatID:     s.ID,
		Number:     s.SeatNumber,
		Type:       s.SeatType,
		Status:     s.Status,
		Selectable: s.Status == domain.SeatAvailable && s.SeatType == selectedType,
	}

	switch {
	case selected != "" && s.SeatNumber == selected:
		c.State = StateSelected
	case s.Status == domain.SeatBooked:
		c.State = StateOccupied
	case s.SeatType != domain.SeatRegular:
		c.State = StatePriority
	default:
		c.State = StateAvailable
	}

	return c
}

// SeatIndex parses the numeric part of a seat number ("R05" -> 5).
func SeatIndex(number string) (int, bool) {
	if len(number) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(number[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Cells yields every cell in display order.
func (l Layout) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for _, row := range l.Rows {
			for _, c := range row {
				if !yield(c) {
					return
				}
			}
		}
	}
}

func (l Layout) Cell(number string) (Cell, bool) {
	for c := range l.Cells() {
		if c.Number == number {
			return c, true
		}
	}
	return Cell{}, false
}

// Select returns the selection after clicking number. Clicks on seats that
// are not selectable keep the current selection.
func (l Layout) Select(number string) string {
	c, ok := l.Cell(number)
	if !ok || !c.Selectable {
		return l.Selected
	}
	return c.Number
}
