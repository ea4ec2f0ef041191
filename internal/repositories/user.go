package repositories

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sbilibin2017/gw-user-accounts/internal/logger"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
)

var (
	// ErrDuplicateUsername is returned when the users.username unique index rejects a write.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrNotFound is returned when an update or delete touches no row.
	ErrNotFound = errors.New("user not found")
)

const uniqueViolation = "23505"

// TxGetter returns the transaction bound to ctx, or nil.
type TxGetter func(ctx context.Context) *sqlx.Tx

func executor(ctx context.Context, db *sqlx.DB, txGetter TxGetter) sqlx.ExtContext {
	if txGetter != nil {
		if tx := txGetter(ctx); tx != nil {
			return tx
		}
	}
	return db
}

func logQuery(query string, args []any, result any, err error) {
	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", args,
		"result", result,
		"error", err,
	)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// escapeLike makes s match literally inside a LIKE pattern with ESCAPE '\'.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UserReadRepository handles user lookups
type UserReadRepository struct {
	db       *sqlx.DB
	txGetter TxGetter
}

func NewUserReadRepository(db *sqlx.DB, txGetter TxGetter) *UserReadRepository {
	return &UserReadRepository{db: db, txGetter: txGetter}
}

// GetByID returns the user with the given id, or nil if there is none.
func (r *UserReadRepository) GetByID(ctx context.Context, id int64) (*models.UserDB, error) {
	const query = `
		SELECT id, name, username, password
		FROM users
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

// GetByUsername returns the first user with exactly this username, or nil.
func (r *UserReadRepository) GetByUsername(ctx context.Context, username string) (*models.UserDB, error) {
	const query = `
		SELECT id, name, username, password
		FROM users
		WHERE username = $1
		ORDER BY id
		LIMIT 1
	`
	return r.getOne(ctx, query, username)
}

func (r *UserReadRepository) getOne(ctx context.Context, query string, arg any) (*models.UserDB, error) {
	var user models.UserDB
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &user, query, arg)

	logQuery(query, []any{arg}, user.ID, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get user")
	}
	return &user, nil
}

// SearchByUsername returns all users whose username contains term,
// case-insensitively, in id order.
func (r *UserReadRepository) SearchByUsername(ctx context.Context, term string) ([]models.UserDB, error) {
	const query = `
		SELECT id, name, username, password
		FROM users
		WHERE username ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY id
	`

	var users []models.UserDB
	err := sqlx.SelectContext(ctx, executor(ctx, r.db, r.txGetter), &users, query, escapeLike(term))

	logQuery(query, []any{term}, len(users), err)

	if err != nil {
		return nil, errors.Wrap(err, "search users")
	}
	return users, nil
}

// UserWriteRepository handles user writes
type UserWriteRepository struct {
	db       *sqlx.DB
	txGetter TxGetter
}

func NewUserWriteRepository(db *sqlx.DB, txGetter TxGetter) *UserWriteRepository {
	return &UserWriteRepository{db: db, txGetter: txGetter}
}

// Save inserts a user and returns the id assigned by the store.
func (r *UserWriteRepository) Save(ctx context.Context, name, username, passwordHash string) (int64, error) {
	const query = `
		INSERT INTO users (name, username, password)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &id, query, name, username, passwordHash)

	// Password hashes stay out of the logs.
	logQuery(query, []any{name, username}, id, err)

	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateUsername
		}
		return 0, errors.Wrap(err, "insert user")
	}
	return id, nil
}

// Update overwrites every mutable field of the user.
func (r *UserWriteRepository) Update(ctx context.Context, id int64, name, username, passwordHash string) error {
	const query = `
		UPDATE users
		SET name = $2, username = $3, password = $4
		WHERE id = $1
	`

	res, err := executor(ctx, r.db, r.txGetter).ExecContext(ctx, query, id, name, username, passwordHash)
	return r.checkAffected(query, []any{id, name, username}, res, err, "update user")
}

// Delete removes the user row.
func (r *UserWriteRepository) Delete(ctx context.Context, id int64) error {
	const query = `
		DELETE FROM users
		WHERE id = $1
	`

	res, err := executor(ctx, r.db, r.txGetter).ExecContext(ctx, query, id)
	return r.checkAffected(query, []any{id}, res, err, "delete user")
}

func (r *UserWriteRepository) checkAffected(query string, args []any, res sql.Result, err error, op string) error {
	var rowsAffected int64
	if err == nil {
		rowsAffected, err = res.RowsAffected()
	}

	logQuery(query, args, rowsAffected, err)

	switch {
	case isUniqueViolation(err):
		return ErrDuplicateUsername
	case err != nil:
		return errors.Wrap(err, op)
	case rowsAffected == 0:
		return ErrNotFound
	}
	return nil
}
