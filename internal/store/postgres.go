package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Elishaokon13/loonpay/internal/models"
)

// ErrNotFound is returned when no transaction matches the lookup key.
// UpdateStatus returns it too: a status write against an unknown id is a
// caller bug and fails loudly rather than silently doing nothing.
var ErrNotFound = errors.New("transaction not found")

// Store persists the transactions ledger in Postgres.
type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// CreateParams carries the fields fixed at ledger insertion. The financial
// amounts are stored verbatim as computed upstream; nothing recomputes them.
type CreateParams struct {
	CardNumber    string
	CardAmount    float64
	UsdcAmount    float64
	ProcessingFee float64
	NetworkFee    float64
	WalletAddress string
}

// Create inserts a new PENDING transaction and returns its assigned id.
func (s *Store) Create(ctx context.Context, p CreateParams) (int64, error) {
	var id int64
	err := s.Db.QueryRow(ctx,
		`INSERT INTO transactions (card_number, card_amount, usdc_amount, processing_fee, network_fee, wallet_address, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.CardNumber, p.CardAmount, p.UsdcAmount, p.ProcessingFee, p.NetworkFee, p.WalletAddress, models.StatusPending,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("transaction insert failed: %w", err)
	}
	return id, nil
}

// UpdateStatus sets status (and txHash when non-empty) and refreshes
// updated_at. Returns ErrNotFound when id does not exist.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status models.Status, txHash string) error {
	var ct pgconn.CommandTag
	var err error
	if txHash != "" {
		ct, err = s.Db.Exec(ctx,
			"UPDATE transactions SET status = $1, tx_hash = $2, updated_at = NOW() WHERE id = $3",
			status, txHash, id)
	} else {
		ct, err = s.Db.Exec(ctx,
			"UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2",
			status, id)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus is a compare-and-set status update: the row changes only
// when its current status equals from. Returns true when the transition won.
// This is the at-most-one guard for concurrent settlement and completion.
func (s *Store) TransitionStatus(ctx context.Context, id int64, from, to models.Status, txHash string) (bool, error) {
	var ct pgconn.CommandTag
	var err error
	if txHash != "" {
		ct, err = s.Db.Exec(ctx,
			"UPDATE transactions SET status = $1, tx_hash = $2, updated_at = NOW() WHERE id = $3 AND status = $4",
			to, txHash, id, from)
	} else {
		ct, err = s.Db.Exec(ctx,
			"UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
			to, id, from)
	}
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

const txColumns = "id, card_number, card_amount, usdc_amount, processing_fee, network_fee, wallet_address, COALESCE(tx_hash, ''), status, created_at, updated_at"

// GetByID retrieves a single transaction.
func (s *Store) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	row := s.Db.QueryRow(ctx, "SELECT "+txColumns+" FROM transactions WHERE id = $1", id)
	return scanTransaction(row)
}

// GetByTxHash retrieves the transaction holding a chain hash. Used by the
// status poller, which only knows the hash.
func (s *Store) GetByTxHash(ctx context.Context, txHash string) (*models.Transaction, error) {
	row := s.Db.QueryRow(ctx, "SELECT "+txColumns+" FROM transactions WHERE tx_hash = $1", txHash)
	return scanTransaction(row)
}

// List returns one page of transactions, newest first, plus the total count.
// page is 1-indexed.
func (s *Store) List(ctx context.Context, page, pageSize int) ([]models.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	rows, err := s.Db.Query(ctx,
		"SELECT "+txColumns+" FROM transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	txs := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.CardNumber, &t.CardAmount, &t.UsdcAmount, &t.ProcessingFee,
			&t.NetworkFee, &t.WalletAddress, &t.TxHash, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.Db.QueryRow(ctx, "SELECT COUNT(*) FROM transactions").Scan(&total); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// Stats aggregates the full ledger. A table scan is fine at this scale.
func (s *Store) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{StatusCounts: map[models.Status]int64{}}
	err := s.Db.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(SUM(card_amount), 0), COALESCE(SUM(usdc_amount), 0) FROM transactions",
	).Scan(&stats.TotalCount, &stats.TotalCardAmount, &stats.TotalUsdcAmount)
	if err != nil {
		return nil, err
	}

	rows, err := s.Db.Query(ctx, "SELECT status, COUNT(*) FROM transactions GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status models.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.StatusCounts[status] = count
	}
	return stats, rows.Err()
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.CardNumber, &t.CardAmount, &t.UsdcAmount, &t.ProcessingFee,
		&t.NetworkFee, &t.WalletAddress, &t.TxHash, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
