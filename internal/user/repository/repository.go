package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/garaad/community/internal/common/db"
	commonerrors "github.com/garaad/community/internal/common/errors"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/user/domain"
)

// Repository is read-only: accounts are owned by the REST API.
type Repository interface {
	FindByID(ctx context.Context, id domain.ID) (domain.User, error)
	Ping(ctx context.Context) error
	Close() error
}

var ErrUserNotFound = commonerrors.ErrUserNotFound

const usersTable = "accounts_user"

type PgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewPgRepository(pool *pgxpool.Pool, log *logger.Logger) *PgRepository {
	return &PgRepository{pool: pool, log: log}
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	var user domain.User

	err := db.RetryWithBackoff(ctx, r.log, db.DefaultRetryConfig, "find user "+string(id), func() error {
		queryCtx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
		defer cancel()

		start := time.Now()
		row := r.pool.QueryRow(
			queryCtx,
			`SELECT id::text, username, is_active FROM `+usersTable+` WHERE id = ($1::text)::bigint`,
			string(id),
		)

		var u domain.User
		err := row.Scan(&u.ID, &u.Username, &u.IsActive)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			// subject is not an integer key
			db.MeasureQueryDuration("find user by id", "postgres", start)
			return ErrUserNotFound
		}
		if err := db.HandleQueryError(err, ErrUserNotFound, "find user by id", "postgres", start); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	if !user.IsActive {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *PgRepository) Ping(ctx context.Context) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return conn.Conn().Ping(ctx)
}

func (r *PgRepository) Close() error {
	r.pool.Close()
	return nil
}

// Open selects the backend from the URL scheme: postgres:// or sqlite://.
func Open(ctx context.Context, log *logger.Logger, databaseURL string) (Repository, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		pool, err := db.NewPool(ctx, log, databaseURL)
		if err != nil {
			return nil, err
		}
		db.StartPoolMetrics(ctx, pool, 0)
		return NewPgRepository(pool, log), nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return OpenSQLite(log, strings.TrimPrefix(databaseURL, "sqlite://"))
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", databaseURL)
	}
}
