package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quayside/authgate/internal/data/pgxutil"
	domainauth "github.com/quayside/authgate/internal/domain/auth"
	"github.com/quayside/authgate/internal/domain/model"
	apperrors "github.com/quayside/authgate/internal/errors"
	"github.com/quayside/authgate/internal/ports"
)

// UserRepo provides database operations for user accounts and their
// provider connections. It implements ports.UserStore.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ ports.UserStore = (*UserRepo)(nil)

// NewUserRepo creates a new UserRepo instance with the given database connection.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

// NewUserRepoWithTimeProvider creates a UserRepo with a custom TimeProvider (useful for testing).
func NewUserRepoWithTimeProvider(db *sql.DB, timeProvider TimeProvider) *UserRepo {
	return &UserRepo{
		DB:           db,
		timeProvider: timeProvider,
	}
}

const userColumns = `id, email, connections, roles, can_login, verified, last_session_at, created_at, updated_at`

const userFindBySSOIdentityQuery = `
	SELECT ` + userColumns + `
	FROM users
	WHERE connections @> $1::jsonb OR email = $2
	ORDER BY (connections @> $1::jsonb) DESC, created_at ASC
	LIMIT 1`

const userReplaceConnectionQuery = `
	UPDATE users
	SET connections = (
		SELECT COALESCE(jsonb_agg(
			CASE WHEN elem->>'provider' = $2 THEN $3::jsonb ELSE elem END
		), '[]'::jsonb)
		FROM jsonb_array_elements(connections) AS elem
	),
	updated_at = $4
	WHERE id = $1
	RETURNING ` + userColumns

const userAddConnectionQuery = `
	UPDATE users
	SET connections = connections || $2::jsonb, updated_at = $3
	WHERE id = $1
	RETURNING ` + userColumns

const userInsertSSOQuery = `
	INSERT INTO users (email, connections, roles, can_login, verified, created_at, updated_at)
	VALUES ($1, $2::jsonb, '{}', TRUE, TRUE, $3, $3)
	ON CONFLICT (email) DO NOTHING
	RETURNING ` + userColumns

const userGetByEmailQuery = `
	SELECT ` + userColumns + `
	FROM users
	WHERE email = $1`

const userRecordSessionQuery = `
	UPDATE users
	SET last_session_at = $2, updated_at = $2
	WHERE id = $1`

// FindBySSOIdentity looks up the single user matching either an existing
// connection for the given provider identity or the verified email. Both
// arms run in one query; the ORDER BY makes a connection match win when the
// two arms hit different users.
func (r *UserRepo) FindBySSOIdentity(ctx context.Context, ref ports.ConnectionRef, email string) (*model.User, error) {
	probe, err := connectionProbe(ref)
	if err != nil {
		return nil, err
	}
	return r.getUserByQuery(ctx, userFindBySSOIdentityQuery, probe, email)
}

// ReplaceConnection overwrites the user's connection for the connection's
// provider in a single atomic update.
func (r *UserRepo) ReplaceConnection(ctx context.Context, userID string, conn domainauth.Connection) (*model.User, error) {
	payload, err := json.Marshal(conn)
	if err != nil {
		return nil, fmt.Errorf("marshal connection: %w", err)
	}
	return r.getUserByQuery(ctx, userReplaceConnectionQuery, userID, conn.Provider, payload, r.timeProvider.Now().UTC())
}

// AddConnection appends a connection to the user's sequence.
func (r *UserRepo) AddConnection(ctx context.Context, userID string, conn domainauth.Connection) (*model.User, error) {
	payload, err := json.Marshal([]domainauth.Connection{conn})
	if err != nil {
		return nil, fmt.Errorf("marshal connection: %w", err)
	}
	return r.getUserByQuery(ctx, userAddConnectionQuery, userID, payload, r.timeProvider.Now().UTC())
}

// CreateSSOUser creates a user from a first SSO login. ON CONFLICT DO
// NOTHING plus a re-read makes two concurrent first logins for the same
// email converge on one record.
func (r *UserRepo) CreateSSOUser(ctx context.Context, email string, conn domainauth.Connection) (*model.User, error) {
	payload, err := json.Marshal([]domainauth.Connection{conn})
	if err != nil {
		return nil, fmt.Errorf("marshal connection: %w", err)
	}

	user, err := r.getUserByQuery(ctx, userInsertSSOQuery, email, payload, r.timeProvider.Now().UTC())
	if err == nil {
		return user, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	// The insert lost the race; the winner's row satisfies the caller.
	return r.getUserByQuery(ctx, userGetByEmailQuery, email)
}

// RecordSession stamps last_session_at on the user.
func (r *UserRepo) RecordSession(ctx context.Context, userID string, at time.Time) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, execErr := conn.Exec(ctx, userRecordSessionQuery, userID, at.UTC())
		if execErr != nil {
			return execErr
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("record session: %w", apperrors.MapDBError(err))
	}
	if affected == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// getUserByQuery executes a query expected to return at most one user row.
func (r *UserRepo) getUserByQuery(ctx context.Context, q string, args ...any) (*model.User, error) {
	var user model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		user, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &user, nil
}

// connectionProbe builds the jsonb containment probe matching a stored
// connection by provider and provider user id only.
func connectionProbe(ref ports.ConnectionRef) ([]byte, error) {
	probe := []map[string]any{{
		"provider":       ref.Provider,
		"providerUserId": ref.ProviderUserID,
	}}
	payload, err := json.Marshal(probe)
	if err != nil {
		return nil, fmt.Errorf("marshal connection probe: %w", err)
	}
	return payload, nil
}
