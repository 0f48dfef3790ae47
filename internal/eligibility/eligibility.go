// Package eligibility decides which seat types a user may book.
package eligibility

import (
	"github.com/kirinyoku/busgo/internal/domain"
)

const (
	MsgPregnantEligible = "You are eligible for pregnant priority seating."
	MsgElderlyEligible  = "You are eligible for elderly priority seating."

	MsgPregnantNotEligible = "You are not eligible for pregnant priority seating. Please select a different seat type."
	MsgElderlyNotEligible  = "You are not eligible for elderly priority seating. Please select a different seat type."
)

type Option struct {
	Type        domain.SeatType `json:"type"`
	Allowed     bool            `json:"allowed"`
	NotEligible bool            `json:"notEligible"`
}

// Resolution is the outcome of resolving a priority profile for a role.
type Resolution struct {
	info  *domain.UserPriorityInfo
	admin bool
}

// Resolve never fails; a nil info means nothing beyond REGULAR and no
// recommendation.
func Resolve(info *domain.UserPriorityInfo, role domain.Role) Resolution {
	return Resolution{info: info, admin: role == domain.RoleAdmin}
}

func (r Resolution) Allowed(t domain.SeatType) bool {
	if !t.Valid() {
		return false
	}
	if r.admin || t == domain.SeatRegular {
		return true
	}
	if r.info == nil {
		return false
	}

	switch t {
	case domain.SeatElder:
		return r.info.ElderlyPriorityEligible
	case domain.SeatPregnant:
		return r.info.PregnantPriorityEligible
	}
	return false
}

// Recommended returns the backend recommendation, if any.
func (r Resolution) Recommended() (domain.SeatType, bool) {
	if r.info == nil || !r.info.RecommendedSeatType.Valid() {
		return "", false
	}
	return r.info.RecommendedSeatType, true
}

// Message is surfaced on load when a recommendation exists. Pregnant
// eligibility wins over elderly eligibility.
func (r Resolution) Message() string {
	if _, ok := r.Recommended(); !ok {
		return ""
	}
	switch {
	case r.info.PregnantPriorityEligible:
		return MsgPregnantEligible
	case r.info.ElderlyPriorityEligible:
		return MsgElderlyEligible
	}
	return ""
}

func (r Resolution) Options() []Option {
	out := make([]Option, 0, len(domain.SeatTypes))
	for _, t := range domain.SeatTypes {
		out = append(out, Option{
			Type:        t,
			Allowed:     r.Allowed(t),
			NotEligible: r.notEligible(t),
		})
	}
	return out
}

// notEligible marks types the profile rules out, even when an admin may
// still pick them.
func (r Resolution) notEligible(t domain.SeatType) bool {
	if r.info == nil {
		return false
	}
	switch t {
	case domain.SeatElder:
		return !r.info.ElderlyPriorityEligible
	case domain.SeatPregnant:
		return !r.info.PregnantPriorityEligible
	}
	return false
}

// Check rejects a seat type the user may not book.
func (r Resolution) Check(t domain.SeatType) error {
	if r.Allowed(t) {
		return nil
	}

	switch t {
	case domain.SeatPregnant:
		return &domain.ValidationError{Field: "seatType", Message: MsgPregnantNotEligible}
	case domain.SeatElder:
		return &domain.ValidationError{Field: "seatType", Message: MsgElderlyNotEligible}
	}
	return domain.NewValidationError("seatType", "unknown seat type %q", t)
}
