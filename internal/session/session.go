// Package session хранит текущего пользователя клиента и оповещает подписчиков о входе/выходе.
package session

import (
	"sync"

	"github.com/Spok95/makerspace/internal/domain/users"
)

type State struct {
	mu        sync.RWMutex
	user      *users.User
	nextID    int
	listeners map[int]func(*users.User)
}

func New() *State {
	return &State{listeners: make(map[int]func(*users.User))}
}

// CurrentUser возвращает пользователя, если он вошёл.
func (s *State) CurrentUser() (users.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return users.User{}, false
	}
	return *s.user, true
}

func (s *State) SignedIn(u users.User) {
	s.set(&u)
}

func (s *State) SignOut() {
	s.set(nil)
}

// OnSessionChange вызывает cb при каждой смене пользователя (nil: выход).
// Возвращает функцию отписки.
func (s *State) OnSessionChange(cb func(*users.User)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = cb
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *State) set(u *users.User) {
	s.mu.Lock()
	s.user = u
	cbs := make([]func(*users.User), 0, len(s.listeners))
	for _, cb := range s.listeners {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		if u == nil {
			cb(nil)
			continue
		}
		cp := *u
		cb(&cp)
	}
}
