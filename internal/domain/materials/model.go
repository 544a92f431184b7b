package materials

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Spok95/makerspace/internal/docstore"
)

const Collection = "materials"

var ErrMalformed = errors.New("malformed material document")

type Material struct {
	ID                string
	Name              string
	Unit              string // "g", "m", "pcs", "sheet"...
	Stock             decimal.Decimal
	LowStockThreshold decimal.Decimal
	MemberPrice       decimal.Decimal // за единицу
	DropInPrice       decimal.Decimal // за единицу
}

// IsLow: остаток на пороге или ниже.
func (m Material) IsLow() bool {
	return m.Stock.LessThanOrEqual(m.LowStockThreshold)
}

func (m Material) Ref() docstore.Ref { return Ref(m.ID) }

func Ref(id string) docstore.Ref { return docstore.NewRef(Collection, id) }

func (m Material) Fields() docstore.Fields {
	return docstore.Fields{
		"name":                m.Name,
		"unit":                m.Unit,
		"stock":               docstore.Number(m.Stock),
		"low_stock_threshold": docstore.Number(m.LowStockThreshold),
		"member_price":        docstore.Number(m.MemberPrice),
		"drop_in_price":       docstore.Number(m.DropInPrice),
	}
}

// StockFields: частичное обновление только остатка.
func StockFields(stock decimal.Decimal) docstore.Fields {
	return docstore.Fields{"stock": docstore.Number(stock)}
}

func FromDocument(d docstore.Document) (Material, error) {
	m := Material{
		ID:   d.ID,
		Name: d.Fields.Text("name"),
		Unit: d.Fields.Text("unit"),
	}
	if m.ID == "" || m.Name == "" {
		return Material{}, fmt.Errorf("%w %q: missing name", ErrMalformed, d.ID)
	}

	var err error
	if m.Stock, err = d.Fields.Decimal("stock"); err != nil {
		return Material{}, fmt.Errorf("%w %q: %w", ErrMalformed, d.ID, err)
	}
	if m.LowStockThreshold, err = d.Fields.Decimal("low_stock_threshold"); err != nil {
		return Material{}, fmt.Errorf("%w %q: %w", ErrMalformed, d.ID, err)
	}
	if m.MemberPrice, err = d.Fields.Decimal("member_price"); err != nil {
		return Material{}, fmt.Errorf("%w %q: %w", ErrMalformed, d.ID, err)
	}
	if m.DropInPrice, err = d.Fields.Decimal("drop_in_price"); err != nil {
		return Material{}, fmt.Errorf("%w %q: %w", ErrMalformed, d.ID, err)
	}
	return m, nil
}
