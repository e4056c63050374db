package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// PgxPool is the subset of *pgxpool.Pool the repository uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresRepository implements Store using PostgreSQL.
type PostgresRepository struct {
	db PgxPool
}

// NewPostgresRepository builds a Postgres-backed account store.
func NewPostgresRepository(db PgxPool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, name, email, password_hash, balance, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		role string
		a    Account
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.SealedBalance, &role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	a.Role = Role(role)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, a Account) error {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return NewStorageError("create", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, a.Name, a.Email, a.PasswordHash, a.SealedBalance, string(a.Role), a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateEmail
		}
		return NewStorageError("create", err)
	}
	return nil
}

// FindByEmail fetches an account by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, NewStorageError("find", err)
	}
	return a, nil
}

// List returns all accounts, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, email`)
	if err != nil {
		return nil, NewStorageError("list", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, NewStorageError("list", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("list", err)
	}
	return accounts, nil
}

// Mutate locks the account row, applies fn and writes the result together
// with the optional history entry in one transaction.
func (r *PostgresRepository) Mutate(ctx context.Context, email string, fn MutateFunc) (Account, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Account{}, NewStorageError("mutate", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	current, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1 FOR UPDATE`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, NewStorageError("mutate", err)
	}

	m, err := fn(current)
	if err != nil {
		return Account{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = $2 WHERE email = $3`,
		m.SealedBalance, m.UpdatedAt.UTC(), email); err != nil {
		return Account{}, NewStorageError("mutate", err)
	}
	if e := m.Entry; e != nil {
		entryID, err := uuid.Parse(e.ID)
		if err != nil {
			return Account{}, NewStorageError("mutate", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO entries (id, email, kind, amount, balance, created_at)
            VALUES ($1, $2, $3, $4::text::numeric, $5, $6)`,
			entryID, email, string(e.Kind), e.Amount.String(), e.SealedBalance, e.CreatedAt.UTC()); err != nil {
			return Account{}, NewStorageError("mutate", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, NewStorageError("mutate", err)
	}

	current.SealedBalance = m.SealedBalance
	current.UpdatedAt = m.UpdatedAt.UTC()
	return current, nil
}

// SetPassword stores a new password hash.
func (r *PostgresRepository) SetPassword(ctx context.Context, email string, hash []byte) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE email = $3`,
		hash, time.Now().UTC(), email)
	if err != nil {
		return NewStorageError("set password", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Entries returns the newest history entries for email.
func (r *PostgresRepository) Entries(ctx context.Context, email string, limit int) ([]Entry, error) {
	if _, err := r.FindByEmail(ctx, email); err != nil {
		return nil, err
	}
	query := `SELECT id, email, kind, amount::text, balance, created_at FROM entries
        WHERE email = $1 ORDER BY created_at DESC, id DESC`
	args := []any{email}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("entries", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			kind   string
			amount string
			e      Entry
		)
		if err := rows.Scan(&e.ID, &e.Email, &kind, &amount, &e.SealedBalance, &e.CreatedAt); err != nil {
			return nil, NewStorageError("entries", err)
		}
		e.Kind = EntryKind(kind)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, NewStorageError("entries", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("entries", err)
	}
	return entries, nil
}

// Ping checks connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return NewStorageError("ping", err)
	}
	return nil
}

var _ Store = (*PostgresRepository)(nil)
