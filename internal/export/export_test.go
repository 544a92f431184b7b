package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/makerspace/internal/domain/materials"
)

func sample() []materials.Material {
	return []materials.Material{
		{
			Name: "PLA filament", Unit: "kg",
			Stock: decimal.NewFromInt(7), LowStockThreshold: decimal.NewFromInt(2),
			MemberPrice: decimal.NewFromInt(5), DropInPrice: decimal.NewFromInt(8),
		},
		{
			Name: "Plywood, 3mm", Unit: "sheet",
			Stock: decimal.NewFromInt(1), LowStockThreshold: decimal.NewFromInt(3),
			MemberPrice: decimal.RequireFromString("4.5"), DropInPrice: decimal.NewFromInt(6),
		},
	}
}

func TestCSV(t *testing.T) {
	out, err := CSV(sample())
	require.NoError(t, err)
	assert.Equal(t,
		"Name,Stock,Unit,MemberPrice,DropInPrice\n"+
			"PLA filament,7,kg,5,8\n"+
			"Plywood, 3mm,1,sheet,4.5,6\n",
		string(out))
}

func TestEmptyExport(t *testing.T) {
	_, err := CSV(nil)
	require.ErrorIs(t, err, ErrNoData)
	_, err = XLSX(nil)
	require.ErrorIs(t, err, ErrNoData)
}

func TestXLSX(t *testing.T) {
	out, err := XLSX(sample())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Name", rows[0][0])
	assert.Equal(t, "PLA filament", rows[1][0])
	assert.Equal(t, "7", rows[1][1])
	assert.Equal(t, "Plywood, 3mm", rows[2][0])
	assert.Equal(t, "yes", rows[2][5])
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "inventory_2026-10-16.csv", FileName("csv", at, nil))

	oslo := time.FixedZone("CEST", 2*60*60)
	assert.Equal(t, "inventory_2026-10-17.xlsx", FileName("xlsx", at, oslo))
}

type memUploader struct {
	objects map[string][]byte
}

func (m *memUploader) Put(_ context.Context, name, _ string, body []byte) (string, error) {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[name] = body
	return "exports/" + name, nil
}

func TestArchive(t *testing.T) {
	up := &memUploader{}
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	keys, err := Archive(context.Background(), up, sample(), at, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"exports/inventory_2026-10-16.csv", "exports/inventory_2026-10-16.xlsx"}, keys)
	assert.Contains(t, string(up.objects["inventory_2026-10-16.csv"]), "PLA filament,7,kg,5,8")
}
