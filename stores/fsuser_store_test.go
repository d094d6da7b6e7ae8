package stores_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/telltale-app/telltale"
	"github.com/telltale-app/telltale/stores"
)

func newStore(t *testing.T) *stores.FSUserStore {
	t.Helper()
	return stores.NewFSUserStore(t.TempDir())
}

func TestCreateAndGetLocalUser(t *testing.T) {
	store := newStore(t)

	created, err := store.CreateLocalUser("alice", "hash-of-hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, created.Id)
	assert.True(t, created.IsLocal())

	byId, err := store.GetUserById(created.Id)
	require.NoError(t, err)
	assert.Equal(t, "alice", byId.Username)
	assert.Equal(t, "hash-of-hunter2", byId.PasswordHash)

	byName, err := store.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, created.Id, byName.Id)
}

func TestDuplicateUsernameRejected(t *testing.T) {
	store := newStore(t)

	_, err := store.CreateLocalUser("alice", "hash1")
	require.NoError(t, err)

	_, err = store.CreateLocalUser("alice", "hash2")
	assert.True(t, errors.Is(err, tt.ErrDuplicateUsername), "expected ErrDuplicateUsername, got %v", err)
}

func TestGetUnknownUser(t *testing.T) {
	store := newStore(t)

	_, err := store.GetUserById("missing")
	assert.True(t, errors.Is(err, tt.ErrUserNotFound))

	_, err = store.GetUserByUsername("missing")
	assert.True(t, errors.Is(err, tt.ErrUserNotFound))
}

func TestEnsureGoogleUserIdempotent(t *testing.T) {
	store := newStore(t)

	first, err := store.EnsureGoogleUser("google-123")
	require.NoError(t, err)
	assert.NotEmpty(t, first.Id)
	assert.False(t, first.IsLocal())

	second, err := store.EnsureGoogleUser("google-123")
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)
}

func TestEnsureGoogleUserConcurrent(t *testing.T) {
	store := newStore(t)

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := store.EnsureGoogleUser("google-race")
			if err != nil {
				t.Errorf("EnsureGoogleUser: %v", err)
				return
			}
			ids[i] = user.Id
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, ids[0], ids[i], "concurrent ensure created distinct users")
	}
}

func TestSaveUserUpdatesSecrets(t *testing.T) {
	store := newStore(t)

	user, err := store.CreateLocalUser("alice", "hash")
	require.NoError(t, err)

	user.Secrets = append(user.Secrets, "one", "two")
	require.NoError(t, store.SaveUser(user))

	loaded, err := store.GetUserById(user.Id)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, loaded.Secrets)
}

func TestSaveUnknownUser(t *testing.T) {
	store := newStore(t)
	err := store.SaveUser(&tt.User{Id: "missing"})
	assert.True(t, errors.Is(err, tt.ErrUserNotFound))
}

func TestListUsersWithSecrets(t *testing.T) {
	store := newStore(t)

	alice, err := store.CreateLocalUser("alice", "hash")
	require.NoError(t, err)
	alice.Secrets = []string{"a1"}
	require.NoError(t, store.SaveUser(alice))

	_, err = store.CreateLocalUser("bob", "hash")
	require.NoError(t, err)

	users, err := store.ListUsersWithSecrets()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, alice.Id, users[0].Id)
}
