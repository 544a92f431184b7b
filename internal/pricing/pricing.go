// Package pricing считает стоимость использования материала.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Spok95/makerspace/internal/domain/materials"
	"github.com/Spok95/makerspace/internal/domain/users"
)

var ErrNegativeAmount = errors.New("amount must not be negative")

// Price: свой материал или неизвестный материал: бесплатно, иначе
// ставка (членская или разовая) × количество, округление до копеек.
func Price(m *materials.Material, amount decimal.Decimal, usesOwnMaterial, isMember bool) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	if usesOwnMaterial || m == nil {
		return decimal.Zero, nil
	}
	rate := m.DropInPrice
	if isMember {
		rate = m.MemberPrice
	}
	// Round в shopspring/decimal: половина от нуля
	return rate.Mul(amount).Round(2), nil
}

// Membership решает, платит ли пользователь по членской ставке.
type Membership interface {
	IsMember(u users.User) bool
}

type fixed bool

// Fixed: одинаковый ответ для всех.
func Fixed(member bool) Membership { return fixed(member) }

func (f fixed) IsMember(users.User) bool { return bool(f) }

// ProfileFlag берёт флаг is_member из профиля.
type ProfileFlag struct{}

func (ProfileFlag) IsMember(u users.User) bool { return u.IsMember }

const (
	ModeAlwaysMember = "always_member"
	ModeNeverMember  = "never_member"
	ModeProfile      = "profile"
)

// FromMode строит политику по значению membership.mode из конфига.
func FromMode(mode string) (Membership, error) {
	switch mode {
	case "", ModeAlwaysMember:
		return Fixed(true), nil
	case ModeNeverMember:
		return Fixed(false), nil
	case ModeProfile:
		return ProfileFlag{}, nil
	default:
		return nil, errors.New("unknown membership mode: " + mode)
	}
}
