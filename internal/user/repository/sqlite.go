package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/garaad/community/internal/common/constants"
	"github.com/garaad/community/internal/common/db"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/user/domain"
)

const dbQueryTimeout = constants.DBQueryTimeout

// SQLiteRepository reads the same accounts table from a local SQLite file,
// which is what the REST API uses in development.
type SQLiteRepository struct {
	db  *sql.DB
	log *logger.Logger
}

func OpenSQLite(log *logger.Logger, path string) (*SQLiteRepository, error) {
	conn, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	conn.SetMaxOpenConns(4)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	log.Infof("sqlite user directory opened: %s", path)
	return &SQLiteRepository{db: conn, log: log}, nil
}

func NewSQLiteRepository(conn *sql.DB, log *logger.Logger) *SQLiteRepository {
	return &SQLiteRepository{db: conn, log: log}
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	var user domain.User

	err := db.RetryWithBackoff(ctx, r.log, db.DefaultRetryConfig, "find user "+string(id), func() error {
		queryCtx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
		defer cancel()

		start := time.Now()
		row := r.db.QueryRowContext(
			queryCtx,
			`SELECT CAST(id AS TEXT), username, is_active FROM `+usersTable+` WHERE CAST(id AS TEXT) = ?`,
			string(id),
		)

		var u domain.User
		err := row.Scan(&u.ID, &u.Username, &u.IsActive)
		if err := db.HandleQueryError(err, ErrUserNotFound, "find user by id", "sqlite", start); err != nil {
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

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
