package usagelog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/makerspace/internal/docstore"
)

const Collection = "usage_log"

// Entry: запись журнала использования. Только добавляется, не меняется.
type Entry struct {
	ID              string
	UserID          string
	UserName        string // денормализовано на момент списания
	MaterialID      string
	MaterialName    string
	MachineID       string
	Amount          decimal.Decimal
	Price           decimal.Decimal
	Duration        decimal.Decimal // минуты работы станка
	UsesOwnMaterial bool
	Timestamp       time.Time // время коммита, проставляет хранилище
}

// Fields кодирует запись для Append; timestamp: ServerTimestamp.
func (e Entry) Fields() docstore.Fields {
	return docstore.Fields{
		"user_id":           e.UserID,
		"user_name":         e.UserName,
		"material_id":       e.MaterialID,
		"material_name":     e.MaterialName,
		"machine_id":        e.MachineID,
		"amount":            docstore.Number(e.Amount),
		"price":             docstore.Number(e.Price),
		"duration":          docstore.Number(e.Duration),
		"uses_own_material": e.UsesOwnMaterial,
		"timestamp":         docstore.ServerTimestamp,
	}
}

func FromDocument(d docstore.Document) (Entry, error) {
	e := Entry{
		ID:              d.ID,
		UserID:          d.Fields.Text("user_id"),
		UserName:        d.Fields.Text("user_name"),
		MaterialID:      d.Fields.Text("material_id"),
		MaterialName:    d.Fields.Text("material_name"),
		MachineID:       d.Fields.Text("machine_id"),
		UsesOwnMaterial: d.Fields.Bool("uses_own_material"),
	}
	var err error
	if e.Amount, err = d.Fields.Decimal("amount"); err != nil {
		return Entry{}, err
	}
	if e.Price, err = d.Fields.Decimal("price"); err != nil {
		return Entry{}, err
	}
	if e.Duration, err = d.Fields.Decimal("duration"); err != nil {
		return Entry{}, err
	}
	if e.Timestamp, err = d.Fields.Time("timestamp"); err != nil {
		return Entry{}, err
	}
	return e, nil
}
