package economy

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS economy_wallets (
    owner           TEXT   NOT NULL,
    currency        TEXT   NOT NULL,
    balance         BIGINT NOT NULL CHECK (balance >= 0),
    update_time_sec BIGINT NOT NULL DEFAULT 0,
    reset_time_sec  BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (owner, currency)
)`

// PostgresStore keeps wallets in the economy_wallets table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to url and creates the table if it does not exist.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create economy_wallets")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Load(ctx context.Context, owner, currencyID string) (*BalanceRecord, error) {
	const query = `SELECT balance, update_time_sec, reset_time_sec FROM economy_wallets WHERE owner = $1 AND currency = $2`
	var record BalanceRecord
	err := s.db.QueryRow(ctx, query, owner, currencyID).Scan(&record.Balance, &record.UpdateTimeSec, &record.ResetTimeSec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "postgres load wallet %s/%s", owner, currencyID)
	}
	return &record, nil
}

func (s *PostgresStore) Save(ctx context.Context, owner, currencyID string, record *BalanceRecord) error {
	const query = `
        INSERT INTO economy_wallets (owner, currency, balance, update_time_sec, reset_time_sec)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (owner, currency) DO UPDATE
        SET balance = EXCLUDED.balance,
            update_time_sec = EXCLUDED.update_time_sec,
            reset_time_sec = EXCLUDED.reset_time_sec`
	if _, err := s.db.Exec(ctx, query, owner, currencyID, record.Balance, record.UpdateTimeSec, record.ResetTimeSec); err != nil {
		return errors.Wrapf(err, "postgres save wallet %s/%s", owner, currencyID)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, owner string) (map[string]*BalanceRecord, error) {
	const query = `SELECT currency, balance, update_time_sec, reset_time_sec FROM economy_wallets WHERE owner = $1`
	rows, err := s.db.Query(ctx, query, owner)
	if err != nil {
		return nil, errors.Wrapf(err, "postgres list wallets of %s", owner)
	}
	defer rows.Close()

	result := make(map[string]*BalanceRecord)
	for rows.Next() {
		var currencyID string
		var record BalanceRecord
		if err := rows.Scan(&currencyID, &record.Balance, &record.UpdateTimeSec, &record.ResetTimeSec); err != nil {
			return nil, errors.Wrap(err, "scan wallet row")
		}
		result[currencyID] = &record
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate wallet rows")
	}
	return result, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
