// Package clients хранит состояние каждого вошедшего пользователя:
// его сессию и движок учёта с единственным слотом подготовки.
package clients

import (
	"sync"
	"time"

	"github.com/Spok95/makerspace/internal/domain/users"
	"github.com/Spok95/makerspace/internal/session"
	"github.com/Spok95/makerspace/internal/usage"
)

type Client struct {
	Session *session.State
	Engine  *usage.Engine

	mu       sync.Mutex
	lastSeen time.Time
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// EngineFactory строит движок для сессии конкретного клиента.
type EngineFactory func(s *session.State) *usage.Engine

type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
	newEng  EngineFactory
	now     func() time.Time
}

func NewRegistry(f EngineFactory) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		newEng:  f,
		now:     time.Now,
	}
}

// Get возвращает клиента пользователя, создавая его при первом обращении.
func (r *Registry) Get(u users.User) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[u.ID]; ok {
		c.touch(r.now())
		return c
	}

	s := session.New()
	c := &Client{Session: s, Engine: r.newEng(s)}
	// выход пользователя сбрасывает подготовленную запись
	s.OnSessionChange(func(u *users.User) {
		if u == nil {
			c.Engine.Reset()
		}
	})
	s.SignedIn(u)
	c.touch(r.now())
	r.clients[u.ID] = c
	return c
}

// Lookup не создаёт клиента.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[userID]
	return c, ok
}

// Drop завершает сессию клиента и забывает его.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	c, ok := r.clients[userID]
	delete(r.clients, userID)
	r.mu.Unlock()

	if ok {
		c.Session.SignOut()
	}
}

// Sweep удаляет клиентов без обращений дольше maxIdle и ничего не коммитящих.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	var stale []*Client

	r.mu.Lock()
	for id, c := range r.clients {
		if c.idleSince().Before(cutoff) && c.Engine.State() != usage.StateCommitting {
			stale = append(stale, c)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		c.Session.SignOut()
	}
	return len(stale)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
