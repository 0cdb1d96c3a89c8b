package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IlyasAtabaev731/family-finance/internal/domain/models"
	"github.com/IlyasAtabaev731/family-finance/internal/storage"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(dbUrl string, logger *slog.Logger) (*Storage, error) {
	db, err := sql.Open("postgres", dbUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection error %s", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect database error %s", err)
	}

	return &Storage{db: db, logger: logger}, nil
}

func (s *Storage) Stop() error {
	return s.db.Close()
}

// SaveUser inserts the user and its empty ledger in one transaction.
func (s *Storage) SaveUser(ctx context.Context, user models.User) (int64, error) {
	const op = "storage.postgres.SaveUser"

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"INSERT INTO users (name, address, phone, created_at) VALUES($1, $2, NULLIF($3, ''), $4) RETURNING id",
			user.Name, user.Address, user.Phone, user.CreatedAt,
		).Scan(&id)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO ledgers (user_id, last_entry_id, created_at) VALUES($1, 0, $2)",
			id, user.CreatedAt,
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.postgres.ListUsers"

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, address, COALESCE(phone, ''), created_at FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer s.closeRows(rows)

	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Address, &user.Phone, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.postgres.GetUser"

	stmt, err := s.db.PrepareContext(ctx, "SELECT id, name, address, COALESCE(phone, ''), created_at FROM users WHERE id = $1")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var user models.User
	err = stmt.QueryRowContext(ctx, userID).Scan(&user.ID, &user.Name, &user.Address, &user.Phone, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (s *Storage) UpdateUser(ctx context.Context, user models.User) error {
	const op = "storage.postgres.UpdateUser"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET name = $1, address = $2, phone = NULLIF($3, '') WHERE id = $4",
		user.Name, user.Address, user.Phone, user.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := mustAffect(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteUser relies on ON DELETE CASCADE for the ledger but deletes the
// entries explicitly as well, so the outcome does not depend on the schema.
func (s *Storage) DeleteUser(ctx context.Context, userID int64) error {
	const op = "storage.postgres.DeleteUser"

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM ledger_entries WHERE user_id = $1", userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM ledgers WHERE user_id = $1", userID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = $1", userID)
		if err != nil {
			return err
		}
		return mustAffect(res)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// AppendEntry bumps the ledger counter first; the row lock it takes keeps
// the balance check and the insert consistent.
func (s *Storage) AppendEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, decimal.Decimal, error) {
	const op = "storage.postgres.AppendEntry"

	var balance decimal.Decimal
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"UPDATE ledgers SET last_entry_id = last_entry_id + 1 WHERE user_id = $1 RETURNING last_entry_id",
			entry.UserID,
		).Scan(&entry.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		current, err := sumEntries(ctx, tx, entry.UserID)
		if err != nil {
			return err
		}

		balance = current.Add(entry.Amount)
		if balance.IsNegative() {
			return storage.ErrInsufficientFunds
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO ledger_entries (user_id, entry_id, kind, amount, created_at) VALUES($1, $2, $3, $4, $5)",
			entry.UserID, entry.ID, string(entry.Kind), entry.Amount, entry.CreatedAt,
		)
		return err
	})
	if err != nil {
		return models.LedgerEntry{}, decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return entry, balance, nil
}

func (s *Storage) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	const op = "storage.postgres.Balance"

	if err := s.ledgerExists(ctx, userID); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	balance, err := sumEntries(ctx, s.db, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return balance, nil
}

func (s *Storage) Entries(ctx context.Context, userID int64) ([]models.LedgerEntry, error) {
	const op = "storage.postgres.Entries"

	if err := s.ledgerExists(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT entry_id, user_id, kind, amount, created_at FROM ledger_entries WHERE user_id = $1 ORDER BY entry_id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer s.closeRows(rows)

	entries := make([]models.LedgerEntry, 0)
	for rows.Next() {
		var (
			entry models.LedgerEntry
			kind  string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &kind, &entry.Amount, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if entry.Kind, err = models.ParseEntryKind(kind); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

func (s *Storage) ledgerExists(ctx context.Context, userID int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM ledgers WHERE user_id = $1", userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrUserNotFound
	}
	return err
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	return tx.Commit()
}

func (s *Storage) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.logger.Error("Failed to close rows", "error", err)
	}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sumEntries(ctx context.Context, q queryer, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx, "SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1", userID).Scan(&balance)
	return balance, err
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}
