package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/makerspace/internal/domain/materials"
	"github.com/Spok95/makerspace/internal/domain/users"
)

func TestPrice(t *testing.T) {
	m := &materials.Material{
		ID:          "m1",
		MemberPrice: decimal.NewFromInt(5),
		DropInPrice: decimal.NewFromInt(8),
	}
	tests := []struct {
		name     string
		material *materials.Material
		amount   string
		own      bool
		member   bool
		want     string
	}{
		{name: "member", material: m, amount: "3", member: true, want: "15"},
		{name: "drop-in", material: m, amount: "3", want: "24"},
		{name: "own material", material: m, amount: "3", own: true, member: true, want: "0"},
		{name: "no material", material: nil, amount: "3", member: true, want: "0"},
		{name: "zero amount", material: m, amount: "0", member: true, want: "0"},
		{name: "fractional", material: m, amount: "0.333", member: true, want: "1.67"},
		{name: "half away from zero", material: &materials.Material{MemberPrice: decimal.RequireFromString("0.01")}, amount: "0.5", member: true, want: "0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Price(tt.material, decimal.RequireFromString(tt.amount), tt.own, tt.member)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestPriceNegativeAmount(t *testing.T) {
	_, err := Price(&materials.Material{}, decimal.NewFromInt(-1), false, true)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestMembershipModes(t *testing.T) {
	member := users.User{IsMember: true}
	guest := users.User{}

	p, err := FromMode("")
	require.NoError(t, err)
	assert.True(t, p.IsMember(guest))

	p, err = FromMode(ModeNeverMember)
	require.NoError(t, err)
	assert.False(t, p.IsMember(member))

	p, err = FromMode(ModeProfile)
	require.NoError(t, err)
	assert.True(t, p.IsMember(member))
	assert.False(t, p.IsMember(guest))

	_, err = FromMode("gold")
	assert.Error(t, err)
}
