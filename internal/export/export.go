// Package export выгружает складские остатки в CSV и XLSX.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/makerspace/internal/domain/materials"
)

var ErrNoData = errors.New("no materials to export")

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	csvHeader = "Name,Stock,Unit,MemberPrice,DropInPrice"
	sheetName = "Inventory"
)

// CSV пишет по строке на материал без кавычек и экранирования. Запятая в
// названии сдвигает колонки.
func CSV(mats []materials.Material) ([]byte, error) {
	if len(mats) == 0 {
		return nil, ErrNoData
	}
	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteByte('\n')
	for _, m := range mats {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s\n",
			m.Name, m.Stock.String(), m.Unit, m.MemberPrice.String(), m.DropInPrice.String())
	}
	return []byte(b.String()), nil
}

func XLSX(mats []materials.Material) ([]byte, error) {
	if len(mats) == 0 {
		return nil, ErrNoData
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, err
	}
	header := []any{"Name", "Stock", "Unit", "Member price", "Drop-in price", "Low stock"}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, err
	}
	for i, m := range mats {
		low := ""
		if m.IsLow() {
			low = "yes"
		}
		row := []any{
			m.Name,
			m.Stock.InexactFloat64(),
			m.Unit,
			m.MemberPrice.InexactFloat64(),
			m.DropInPrice.InexactFloat64(),
			low,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(sheetName, "A", "A", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName: inventory_<YYYY-MM-DD>.<ext> по локальной дате.
func FileName(ext string, at time.Time, loc *time.Location) string {
	if loc != nil {
		at = at.In(loc)
	}
	return fmt.Sprintf("inventory_%s.%s", at.Format(time.DateOnly), ext)
}

type Uploader interface {
	Put(ctx context.Context, name, contentType string, body []byte) (string, error)
}

// Archive выгружает CSV и XLSX в хранилище и возвращает ключи объектов.
func Archive(ctx context.Context, up Uploader, mats []materials.Material, at time.Time, loc *time.Location) ([]string, error) {
	csvBody, err := CSV(mats)
	if err != nil {
		return nil, err
	}
	xlsxBody, err := XLSX(mats)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, f := range []struct {
		ext, ct string
		body    []byte
	}{
		{"csv", ContentTypeCSV, csvBody},
		{"xlsx", ContentTypeXLSX, xlsxBody},
	} {
		key, err := up.Put(ctx, FileName(f.ext, at, loc), f.ct, f.body)
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", f.ext, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
