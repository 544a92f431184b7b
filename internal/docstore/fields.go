package docstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Decimal читает числовое поле. Отсутствующее поле: ноль.
func (f Fields) Decimal(key string) (decimal.Decimal, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return decimal.Zero, nil
	}
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Zero, fmt.Errorf("field %q: unsupported number type %T", key, v)
	}
}

func (f Fields) Text(key string) string {
	s, _ := f[key].(string)
	return s
}

func (f Fields) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

// Time читает отметку времени: time.Time из памяти или RFC3339 из jsonb.
func (f Fields) Time(key string) (time.Time, error) {
	switch v := f[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		return time.Parse(time.RFC3339Nano, v)
	default:
		return time.Time{}, fmt.Errorf("field %q: unsupported time type %T", key, v)
	}
}

// Number кодирует decimal как JSON-число без потери точности.
func Number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
