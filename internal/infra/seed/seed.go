// Package seed заполняет пустой каталог из YAML-файла.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Spok95/makerspace/internal/docstore"
	"github.com/Spok95/makerspace/internal/domain/machines"
	"github.com/Spok95/makerspace/internal/domain/materials"
)

type materialRow struct {
	ID                string `mapstructure:"id"`
	Name              string `mapstructure:"name"`
	Unit              string `mapstructure:"unit"`
	Stock             string `mapstructure:"stock"`
	LowStockThreshold string `mapstructure:"low_stock_threshold"`
	MemberPrice       string `mapstructure:"member_price"`
	DropInPrice       string `mapstructure:"drop_in_price"`
}

type machineRow struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type File struct {
	Materials []materialRow `mapstructure:"materials"`
	Machines  []machineRow  `mapstructure:"machines"`
}

func Load(path string) (File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	var f File
	if err := v.ReadInConfig(); err != nil {
		return f, err
	}
	if err := v.Unmarshal(&f); err != nil {
		return f, err
	}
	return f, nil
}

// Apply пишет документы, только если коллекции пусты. Возвращает число записанных.
func Apply(ctx context.Context, store docstore.Store, f File) (int, error) {
	n := 0

	existing, err := store.FetchAll(ctx, materials.Collection)
	if err != nil {
		return n, err
	}
	if len(existing) == 0 {
		repo := materials.NewRepo(store)
		for _, row := range f.Materials {
			m, err := row.material()
			if err != nil {
				return n, err
			}
			if err := repo.Save(ctx, m); err != nil {
				return n, err
			}
			n++
		}
	}

	existing, err = store.FetchAll(ctx, machines.Collection)
	if err != nil {
		return n, err
	}
	if len(existing) == 0 {
		repo := machines.NewRepo(store)
		for _, row := range f.Machines {
			if err := repo.Save(ctx, machines.Machine{ID: row.ID, Name: row.Name}); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (r materialRow) material() (materials.Material, error) {
	m := materials.Material{ID: r.ID, Name: r.Name, Unit: r.Unit}
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"stock", r.Stock, &m.Stock},
		{"low_stock_threshold", r.LowStockThreshold, &m.LowStockThreshold},
		{"member_price", r.MemberPrice, &m.MemberPrice},
		{"drop_in_price", r.DropInPrice, &m.DropInPrice},
	} {
		if f.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return materials.Material{}, fmt.Errorf("seed material %q: %s: %w", r.ID, f.name, err)
		}
		*f.dst = d
	}
	return m, nil
}
