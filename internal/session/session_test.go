package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/makerspace/internal/domain/users"
)

func TestSignInOutNotifies(t *testing.T) {
	s := New()
	_, ok := s.CurrentUser()
	assert.False(t, ok)

	var seen []*users.User
	unsubscribe := s.OnSessionChange(func(u *users.User) { seen = append(seen, u) })

	s.SignedIn(users.User{ID: "u1", DisplayName: "Ada"})
	u, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "Ada", u.DisplayName)

	s.SignOut()
	_, ok = s.CurrentUser()
	assert.False(t, ok)

	require.Len(t, seen, 2)
	assert.Equal(t, "u1", seen[0].ID)
	assert.Nil(t, seen[1])

	unsubscribe()
	s.SignedIn(users.User{ID: "u2"})
	assert.Len(t, seen, 2)
}
