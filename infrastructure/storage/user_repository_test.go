package storage

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	req := require.New(t)
	db := openDB(t, t.TempDir())
	defer db.Close()
	repository := NewUserRepository(db)

	// Given two users in the directory
	req.NoError(repository.Save(domain.User{Username: "bob", FirstName: "Bob", LastName: "Builder"}))
	req.NoError(repository.Save(domain.User{Username: "alice", FirstName: "Alice", LastName: "Liddell"}))

	t.Run("exists", func(t *testing.T) {
		req := require.New(t)
		ok, err := repository.Exists("alice")
		req.NoError(err)
		req.True(ok)

		ok, err = repository.Exists("mallory")
		req.NoError(err)
		req.False(ok)

		ok, err = repository.Exists("")
		req.NoError(err)
		req.False(ok)
	})

	t.Run("get", func(t *testing.T) {
		req := require.New(t)
		user, err := repository.Get("bob")
		req.NoError(err)
		req.Equal("Builder", user.LastName)
		req.False(user.CreatedAt.IsZero())

		_, err = repository.Get("mallory")
		req.ErrorIs(err, errors.ErrUserNotFound)
	})

	t.Run("list is sorted by username", func(t *testing.T) {
		req := require.New(t)
		users, err := repository.List()
		req.NoError(err)
		req.Len(users, 2)
		req.Equal("alice", users[0].Username)
		req.Equal("bob", users[1].Username)
	})

	t.Run("empty username is rejected", func(t *testing.T) {
		require.ErrorIs(t, repository.Save(domain.User{}), errors.ErrInvalidPayload)
	})
}
