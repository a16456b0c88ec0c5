package data

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/quayside/authgate/internal/domain/auth"
	apperrors "github.com/quayside/authgate/internal/errors"
	"github.com/quayside/authgate/internal/ports"
	"github.com/quayside/authgate/internal/testutil"
)

func githubConn(id int64, login string) domainauth.Connection {
	return domainauth.Connection{
		Provider:         domainauth.ProviderGitHub,
		ProviderUserID:   id,
		Login:            login,
		TwoFactorEnabled: true,
	}
}

func githubRef(id int64) ports.ConnectionRef {
	return ports.ConnectionRef{Provider: domainauth.ProviderGitHub, ProviderUserID: id}
}

// insertPlainUser seeds a user with no provider connections, as if registered
// by email before SSO existed.
func insertPlainUser(t *testing.T, db *sql.DB, email string) string {
	t.Helper()
	var id string
	err := db.QueryRowContext(context.Background(), `
		INSERT INTO users (email, can_login, verified)
		VALUES ($1, TRUE, TRUE)
		RETURNING id`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestUserRepo_Integration_CreateAndFind(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewUserRepo(db)
		ctx := context.Background()

		created, err := repo.CreateSSOUser(ctx, "alice@example.com", githubConn(1001, "alice"))
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.True(t, created.CanLogin)
		assert.True(t, created.Verified)
		assert.Empty(t, created.Roles)
		require.Len(t, created.Connections, 1)
		assert.Equal(t, int64(1001), created.Connections[0].ProviderUserID)

		t.Run("find by connection", func(t *testing.T) {
			found, err := repo.FindBySSOIdentity(ctx, githubRef(1001), "unrelated@example.com")
			require.NoError(t, err)
			assert.Equal(t, created.ID, found.ID)
		})

		t.Run("find by email", func(t *testing.T) {
			found, err := repo.FindBySSOIdentity(ctx, githubRef(9999), "alice@example.com")
			require.NoError(t, err)
			assert.Equal(t, created.ID, found.ID)
		})

		t.Run("no match", func(t *testing.T) {
			_, err := repo.FindBySSOIdentity(ctx, githubRef(9999), "nobody@example.com")
			assert.True(t, apperrors.IsNotFound(err))
		})
	})
}

func TestUserRepo_Integration_ConnectionMatchWins(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewUserRepo(db)
		ctx := context.Background()

		// One user owns the connection, a different user owns the email.
		withConn, err := repo.CreateSSOUser(ctx, "old@example.com", githubConn(1001, "alice"))
		require.NoError(t, err)
		insertPlainUser(t, db, "alice@example.com")

		found, err := repo.FindBySSOIdentity(ctx, githubRef(1001), "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, withConn.ID, found.ID)
	})
}

func TestUserRepo_Integration_ReplaceConnection(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewUserRepo(db)
		ctx := context.Background()

		created, err := repo.CreateSSOUser(ctx, "alice@example.com", githubConn(1001, "alice"))
		require.NoError(t, err)

		updatedConn := githubConn(1001, "alice-renamed")
		updatedConn.TwoFactorEnabled = false

		updated, err := repo.ReplaceConnection(ctx, created.ID, updatedConn)
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		require.Len(t, updated.Connections, 1)
		assert.Equal(t, "alice-renamed", updated.Connections[0].Login)
		assert.False(t, updated.Connections[0].TwoFactorEnabled)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	})
}

func TestUserRepo_Integration_AddConnection(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewUserRepo(db)
		ctx := context.Background()

		id := insertPlainUser(t, db, "alice@example.com")

		updated, err := repo.AddConnection(ctx, id, githubConn(1001, "alice"))
		require.NoError(t, err)
		assert.Equal(t, id, updated.ID)
		require.Len(t, updated.Connections, 1)
		assert.Equal(t, domainauth.ProviderGitHub, updated.Connections[0].Provider)

		// The appended connection is now findable.
		found, err := repo.FindBySSOIdentity(ctx, githubRef(1001), "other@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, found.ID)
	})
}

func TestUserRepo_Integration_CreateSSOUser_DuplicateEmail(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewUserRepo(db)
		ctx := context.Background()

		first, err := repo.CreateSSOUser(ctx, "alice@example.com", githubConn(1001, "alice"))
		require.NoError(t, err)

		// The loser of the insert race observes the winner's row.
		second, err := repo.CreateSSOUser(ctx, "alice@example.com", githubConn(2002, "alice-alt"))
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		require.Len(t, second.Connections, 1)
		assert.Equal(t, int64(1001), second.Connections[0].ProviderUserID)
	})
}

func TestUserRepo_Integration_ConcurrentCreate(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewUserRepo(db)
		ctx := context.Background()

		const numWorkers = 8
		ids := make(chan string, numWorkers)
		errs := make(chan error, numWorkers)
		var wg sync.WaitGroup

		for i := range numWorkers {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				user, err := repo.CreateSSOUser(ctx, "race@example.com", githubConn(7007, fmt.Sprintf("worker-%d", n)))
				if err != nil {
					errs <- err
					return
				}
				ids <- user.ID
			}(i)
		}

		wg.Wait()
		close(ids)
		close(errs)

		for err := range errs {
			t.Fatalf("concurrent create failed: %v", err)
		}

		seen := make(map[string]bool)
		for id := range ids {
			seen[id] = true
		}
		// Every racer converged on the same record.
		assert.Len(t, seen, 1)

		var count int
		require.NoError(t, db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE email = 'race@example.com'`).Scan(&count))
		assert.Equal(t, 1, count)
	})
}

func TestUserRepo_Integration_RecordSession(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewUserRepo(db)
		ctx := context.Background()

		created, err := repo.CreateSSOUser(ctx, "alice@example.com", githubConn(1001, "alice"))
		require.NoError(t, err)
		require.Nil(t, created.LastSessionAt)

		at := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, repo.RecordSession(ctx, created.ID, at))

		found, err := repo.FindBySSOIdentity(ctx, githubRef(1001), created.Email)
		require.NoError(t, err)
		require.NotNil(t, found.LastSessionAt)
		assert.WithinDuration(t, at, *found.LastSessionAt, time.Second)

		err = repo.RecordSession(ctx, "00000000-0000-0000-0000-000000000000", at)
		assert.True(t, apperrors.IsNotFound(err))
	})
}
