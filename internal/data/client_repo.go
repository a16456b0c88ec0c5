package data

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/quayside/authgate/internal/data/pgxutil"
	"github.com/quayside/authgate/internal/domain/model"
	apperrors "github.com/quayside/authgate/internal/errors"
	"github.com/quayside/authgate/internal/ports"
)

// ClientRepo provides database operations for API-client records. It
// implements ports.ClientRepository.
type ClientRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ ports.ClientRepository = (*ClientRepo)(nil)

// NewClientRepo creates a new ClientRepo instance with the given database connection.
func NewClientRepo(db *sql.DB) *ClientRepo {
	return &ClientRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

// NewClientRepoWithTimeProvider creates a ClientRepo with a custom TimeProvider (useful for testing).
func NewClientRepoWithTimeProvider(db *sql.DB, timeProvider TimeProvider) *ClientRepo {
	return &ClientRepo{
		DB:           db,
		timeProvider: timeProvider,
	}
}

const clientColumns = `id, user_id, name, scope, unlocked, last_issued_at, created_at, updated_at`

const clientInsertQuery = `
	INSERT INTO api_clients (user_id, name, scope, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $4)
	RETURNING ` + clientColumns

const clientGetByIDQuery = `
	SELECT ` + clientColumns + `
	FROM api_clients
	WHERE id = $1`

const clientUpdateQuery = `
	UPDATE api_clients
	SET user_id = COALESCE($2::uuid, user_id),
		name = COALESCE($3::text, name),
		scope = COALESCE($4::text[], scope),
		unlocked = COALESCE($5::boolean, unlocked),
		updated_at = $6
	WHERE id = $1
	RETURNING ` + clientColumns

// Create inserts a new API client.
func (r *ClientRepo) Create(ctx context.Context, req *model.CreateClientRequest) (*model.APIClient, error) {
	if req == nil {
		return nil, errors.New("create client request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	scope := req.Scope
	if scope == nil {
		scope = []string{}
	}
	return r.getClientByQuery(ctx, clientInsertQuery, req.UserID, req.Name, scope, r.timeProvider.Now().UTC())
}

// GetByID retrieves an API client by its ID.
func (r *ClientRepo) GetByID(ctx context.Context, id string) (*model.APIClient, error) {
	return r.getClientByQuery(ctx, clientGetByIDQuery, id)
}

// List retrieves API clients with pagination and an optional owner filter,
// returning the page plus the total match count.
func (r *ClientRepo) List(ctx context.Context, opts model.ClientsListOptions) ([]*model.APIClient, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	query := `
		SELECT ` + clientColumns + `, COUNT(*) OVER() AS total
		FROM api_clients
		WHERE ($1::uuid IS NULL OR user_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var (
		clients []*model.APIClient
		total   int
	)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, opts.UserID, opts.Limit, opts.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				c        model.APIClient
				rowTotal int
			)
			if scanErr := rows.Scan(
				&c.ID, &c.UserID, &c.Name, &c.Scope, &c.Unlocked,
				&c.LastIssuedAt, &c.CreatedAt, &c.UpdatedAt, &rowTotal,
			); scanErr != nil {
				return scanErr
			}
			total = rowTotal
			clients = append(clients, &c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, apperrors.MapDBError(err)
	}
	return clients, total, nil
}

// Update applies the set fields of req in a single statement and returns the
// resulting row.
func (r *ClientRepo) Update(ctx context.Context, id string, req model.UpdateClientRequest) (*model.APIClient, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return r.getClientByQuery(ctx, clientUpdateQuery,
		id, req.UserID, req.Name, req.Scope, req.Unlocked, r.timeProvider.Now().UTC())
}

// Delete removes an API client by its ID.
func (r *ClientRepo) Delete(ctx context.Context, id string) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, execErr := conn.Exec(ctx, `DELETE FROM api_clients WHERE id = $1`, id)
		if execErr != nil {
			return execErr
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	if affected == 0 {
		return apperrors.NotFound("api client not found")
	}
	return nil
}

// getClientByQuery executes a query expected to return at most one client row.
func (r *ClientRepo) getClientByQuery(ctx context.Context, q string, args ...any) (*model.APIClient, error) {
	var client model.APIClient
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		client, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.APIClient])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &client, nil
}
