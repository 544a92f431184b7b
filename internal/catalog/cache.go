// Package catalog держит в памяти снимок материалов и станков.
//
// Снимок заменяется целиком при каждом Refresh; читатели видят либо старый,
// либо новый снимок, но не смесь. При ошибке загрузки старый снимок остаётся.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Spok95/makerspace/internal/domain/machines"
	"github.com/Spok95/makerspace/internal/domain/materials"
)

var ErrFetch = errors.New("catalog fetch failed")

type MaterialSource interface {
	List(ctx context.Context) ([]materials.Material, []error, error)
}

type MachineSource interface {
	List(ctx context.Context) ([]machines.Machine, []error, error)
}

type Observer interface {
	CatalogRefreshed(ok bool, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) CatalogRefreshed(bool, time.Duration) {}

type Snapshot struct {
	Materials  []materials.Material
	Machines   []machines.Machine
	LoadedAt   time.Time
	materialBy map[string]int
	machineBy  map[string]int
}

func newSnapshot(mats []materials.Material, machs []machines.Machine, at time.Time) *Snapshot {
	s := &Snapshot{
		Materials:  mats,
		Machines:   machs,
		LoadedAt:   at,
		materialBy: make(map[string]int, len(mats)),
		machineBy:  make(map[string]int, len(machs)),
	}
	for i, m := range mats {
		s.materialBy[m.ID] = i
	}
	for i, m := range machs {
		s.machineBy[m.ID] = i
	}
	return s
}

type Cache struct {
	materials MaterialSource
	machines  MachineSource
	log       *slog.Logger
	obs       Observer

	refreshMu sync.Mutex
	current   atomic.Pointer[Snapshot]

	listenersMu sync.Mutex
	listeners   []func(Snapshot)
}

func New(mats MaterialSource, machs MachineSource, log *slog.Logger, obs Observer) *Cache {
	if obs == nil {
		obs = nopObserver{}
	}
	c := &Cache{materials: mats, machines: machs, log: log, obs: obs}
	c.current.Store(newSnapshot(nil, nil, time.Time{}))
	return c
}

// OnRefresh подписывает fn на каждый успешный Refresh.
func (c *Cache) OnRefresh(fn func(Snapshot)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Cache) Refresh(ctx context.Context) (Snapshot, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := time.Now()
	var (
		mats  []materials.Material
		machs []machines.Machine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, skipped, err := c.materials.List(gctx)
		if err != nil {
			return fmt.Errorf("materials: %w", err)
		}
		c.warnSkipped("materials", skipped)
		mats = list
		return nil
	})
	g.Go(func() error {
		list, skipped, err := c.machines.List(gctx)
		if err != nil {
			return fmt.Errorf("machines: %w", err)
		}
		c.warnSkipped("machines", skipped)
		machs = list
		return nil
	})
	if err := g.Wait(); err != nil {
		c.obs.CatalogRefreshed(false, time.Since(start))
		c.log.Error("catalog refresh failed, keeping previous snapshot", "err", err)
		return *c.current.Load(), fmt.Errorf("%w: %w", ErrFetch, err)
	}

	snap := newSnapshot(mats, machs, time.Now().UTC())
	c.current.Store(snap)
	c.obs.CatalogRefreshed(true, time.Since(start))
	c.log.Debug("catalog refreshed", "materials", len(mats), "machines", len(machs))

	c.listenersMu.Lock()
	listeners := append([]func(Snapshot){}, c.listeners...)
	c.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(*snap)
	}
	return *snap, nil
}

func (c *Cache) warnSkipped(collection string, skipped []error) {
	for _, err := range skipped {
		c.log.Warn("skipping malformed document", "collection", collection, "err", err)
	}
}

func (c *Cache) Snapshot() Snapshot { return *c.current.Load() }

func (c *Cache) Materials() []materials.Material { return c.current.Load().Materials }

func (c *Cache) Machines() []machines.Machine { return c.current.Load().Machines }

func (c *Cache) LookupMaterial(id string) (materials.Material, bool) {
	s := c.current.Load()
	i, ok := s.materialBy[id]
	if !ok {
		return materials.Material{}, false
	}
	return s.Materials[i], true
}

func (c *Cache) LookupMachine(id string) (machines.Machine, bool) {
	s := c.current.Load()
	i, ok := s.machineBy[id]
	if !ok {
		return machines.Machine{}, false
	}
	return s.Machines[i], true
}

// LowStock: материалы с остатком на пороге или ниже.
func (c *Cache) LowStock() []materials.Material {
	var out []materials.Material
	for _, m := range c.current.Load().Materials {
		if m.IsLow() {
			out = append(out, m)
		}
	}
	return out
}
