package eligibility

import (
	"errors"
	"testing"

	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminOverride(t *testing.T) {
	profiles := []*domain.UserPriorityInfo{
		nil,
		{},
		{ElderlyPriorityEligible: true},
		{PregnantPriorityEligible: true},
	}

	for _, p := range profiles {
		r := Resolve(p, domain.RoleAdmin)
		for _, st := range domain.SeatTypes {
			assert.True(t, r.Allowed(st), "admin must be allowed %s", st)
			assert.NoError(t, r.Check(st))
		}
	}
}

func TestUserGating(t *testing.T) {
	tests := []struct {
		name     string
		info     *domain.UserPriorityInfo
		elder    bool
		pregnant bool
	}{
		{name: "no profile", info: nil},
		{name: "no flags", info: &domain.UserPriorityInfo{}},
		{name: "elderly", info: &domain.UserPriorityInfo{ElderlyPriorityEligible: true}, elder: true},
		{name: "pregnant", info: &domain.UserPriorityInfo{PregnantPriorityEligible: true}, pregnant: true},
		{
			name:     "both",
			info:     &domain.UserPriorityInfo{ElderlyPriorityEligible: true, PregnantPriorityEligible: true},
			elder:    true,
			pregnant: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Resolve(tt.info, domain.RoleUser)
			assert.True(t, r.Allowed(domain.SeatRegular))
			assert.Equal(t, tt.elder, r.Allowed(domain.SeatElder))
			assert.Equal(t, tt.pregnant, r.Allowed(domain.SeatPregnant))
		})
	}
}

func TestCheckMessages(t *testing.T) {
	r := Resolve(&domain.UserPriorityInfo{}, domain.RoleUser)

	var ve *domain.ValidationError

	err := r.Check(domain.SeatElder)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, MsgElderlyNotEligible, ve.Message)

	err = r.Check(domain.SeatPregnant)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, MsgPregnantNotEligible, ve.Message)

	assert.NoError(t, r.Check(domain.SeatRegular))
}

func TestRecommendationPrefersPregnantMessage(t *testing.T) {
	r := Resolve(&domain.UserPriorityInfo{
		ElderlyPriorityEligible:  true,
		PregnantPriorityEligible: true,
		RecommendedSeatType:      domain.SeatPregnant,
	}, domain.RoleUser)

	rec, ok := r.Recommended()
	require.True(t, ok)
	assert.Equal(t, domain.SeatPregnant, rec)
	assert.Equal(t, MsgPregnantEligible, r.Message())
}

func TestNoRecommendationNoMessage(t *testing.T) {
	r := Resolve(&domain.UserPriorityInfo{ElderlyPriorityEligible: true}, domain.RoleUser)

	_, ok := r.Recommended()
	assert.False(t, ok)
	assert.Empty(t, r.Message())

	_, ok = Resolve(nil, domain.RoleUser).Recommended()
	assert.False(t, ok)
}

func TestOptionsFlagIneligibleTypesForAdmin(t *testing.T) {
	opts := Resolve(&domain.UserPriorityInfo{ElderlyPriorityEligible: true}, domain.RoleAdmin).Options()

	require.Len(t, opts, 3)
	assert.Equal(t, Option{Type: domain.SeatRegular, Allowed: true}, opts[0])
	assert.Equal(t, Option{Type: domain.SeatElder, Allowed: true}, opts[1])
	assert.Equal(t, Option{Type: domain.SeatPregnant, Allowed: true, NotEligible: true}, opts[2])
}
