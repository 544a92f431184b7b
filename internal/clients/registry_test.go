package clients

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/makerspace/internal/catalog"
	"github.com/Spok95/makerspace/internal/docstore"
	"github.com/Spok95/makerspace/internal/domain/machines"
	"github.com/Spok95/makerspace/internal/domain/materials"
	"github.com/Spok95/makerspace/internal/domain/users"
	"github.com/Spok95/makerspace/internal/session"
	"github.com/Spok95/makerspace/internal/usage"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemory(docstore.RetryConfig{})
	require.NoError(t, materials.NewRepo(store).Save(ctx, materials.Material{
		ID: "m1", Name: "MDF", Unit: "sheet", Stock: decimal.NewFromInt(4),
		MemberPrice: decimal.NewFromInt(3), DropInPrice: decimal.NewFromInt(5),
	}))
	require.NoError(t, machines.NewRepo(store).Save(ctx, machines.Machine{ID: "laser", Name: "Laser cutter"}))
	log := slog.New(slog.DiscardHandler)
	cache := catalog.New(materials.NewRepo(store), machines.NewRepo(store), log, nil)
	_, err := cache.Refresh(ctx)
	require.NoError(t, err)

	return NewRegistry(func(s *session.State) *usage.Engine {
		return usage.NewEngine(usage.Deps{Catalog: cache, Store: store, Session: s, Log: log})
	})
}

func TestGetReturnsSameClient(t *testing.T) {
	r := newRegistry(t)
	u := users.User{ID: "u1", DisplayName: "Ada"}

	c1 := r.Get(u)
	c2 := r.Get(u)
	assert.Same(t, c1, c2)
	cur, ok := c1.Session.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "Ada", cur.DisplayName)

	other := r.Get(users.User{ID: "u2"})
	assert.NotSame(t, c1, other)
	assert.Equal(t, 2, r.Len())
}

func TestDropSignsOutAndClearsSlot(t *testing.T) {
	r := newRegistry(t)
	c := r.Get(users.User{ID: "u1"})
	_, err := c.Engine.Stage(usage.StageRequest{MaterialID: "m1", MachineID: "laser", Amount: "1"})
	require.NoError(t, err)

	r.Drop("u1")
	assert.Equal(t, usage.StateIdle, c.Engine.State())
	_, ok := c.Session.CurrentUser()
	assert.False(t, ok)
	_, ok = r.Lookup("u1")
	assert.False(t, ok)
}

func TestSweepRemovesIdleClients(t *testing.T) {
	r := newRegistry(t)
	base := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	r.Get(users.User{ID: "old"})

	r.now = func() time.Time { return base.Add(2 * time.Hour) }
	r.Get(users.User{ID: "fresh"})

	assert.Equal(t, 1, r.Sweep(time.Hour))
	_, ok := r.Lookup("old")
	assert.False(t, ok)
	_, ok = r.Lookup("fresh")
	assert.True(t, ok)
}
