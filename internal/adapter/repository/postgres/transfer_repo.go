package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
)

// transferRepository implements domain.TransferRepository
type transferRepository struct {
	db *DB
}

// NewTransferRepository creates a new transfer ledger repository
func NewTransferRepository(db *DB) domain.TransferRepository {
	return &transferRepository{db: db}
}

const transferColumns = `
	id, incoming_signature, sender_address, amount_lamports, status,
	current_step, retry_count, last_error, next_retry_at,
	counter_mint, counter_symbol, pool_address, position_mint, pool_created,
	sig_swap_primary, sig_swap_secondary, sig_pool, sig_lock, sig_settle,
	created_at, completed_at
`

// Insert creates a new transfer record. A duplicate incoming signature is
// silently ignored: the first record for a signature is authoritative.
func (r *transferRepository) Insert(ctx context.Context, rec *domain.TransferRecord) error {
	query := `
		INSERT INTO transfers (
			id, incoming_signature, sender_address, amount_lamports,
			status, current_step, retry_count, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (incoming_signature) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.IncomingSignature,
		rec.SenderAddress,
		int64(rec.AmountLamports),
		string(rec.Status),
		string(rec.CurrentStep),
		rec.RetryCount,
		rec.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			// Race with another insert for the same signature; the
			// existing record wins.
			return nil
		}
		return fmt.Errorf("failed to insert transfer record: %w", err)
	}

	return nil
}

// FindBySignature retrieves the record for an incoming signature.
// Returns (nil, nil) when no record exists.
func (r *transferRepository) FindBySignature(ctx context.Context, signature string) (*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE incoming_signature = $1`

	rec, err := scanTransfer(r.db.QueryRowContext(ctx, query, signature))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find transfer by signature: %w", err)
	}

	return rec, nil
}

// Update applies a partial update to the record for the signature.
// Only non-nil fields of the update are written.
func (r *transferRepository) Update(ctx context.Context, signature string, update domain.TransferUpdate) error {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.CurrentStep != nil {
		add("current_step", string(*update.CurrentStep))
	}
	if update.RetryCount != nil {
		add("retry_count", *update.RetryCount)
	}
	if update.LastError != nil {
		add("last_error", *update.LastError)
	}
	if update.NextRetryAt != nil {
		add("next_retry_at", *update.NextRetryAt)
	}
	if update.CounterMint != nil {
		add("counter_mint", *update.CounterMint)
	}
	if update.CounterSymbol != nil {
		add("counter_symbol", *update.CounterSymbol)
	}
	if update.PoolAddress != nil {
		add("pool_address", *update.PoolAddress)
	}
	if update.PositionMint != nil {
		add("position_mint", *update.PositionMint)
	}
	if update.PoolCreated != nil {
		add("pool_created", *update.PoolCreated)
	}
	if update.SwapPrimarySig != nil {
		add("sig_swap_primary", *update.SwapPrimarySig)
	}
	if update.SwapSecondarySig != nil {
		add("sig_swap_secondary", *update.SwapSecondarySig)
	}
	if update.PoolSig != nil {
		add("sig_pool", *update.PoolSig)
	}
	if update.LockSig != nil {
		add("sig_lock", *update.LockSig)
	}
	if update.SettleSig != nil {
		add("sig_settle", *update.SettleSig)
	}
	if update.CompletedAt != nil {
		add("completed_at", *update.CompletedAt)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, signature)
	query := fmt.Sprintf(
		"UPDATE transfers SET %s WHERE incoming_signature = $%d",
		strings.Join(sets, ", "), len(args),
	)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update transfer record: %w", err)
	}

	return nil
}

// FindDueForRetry retrieves up to limit retry-pending records whose next
// retry time has elapsed or is unset, oldest first.
func (r *transferRepository) FindDueForRetry(ctx context.Context, limit int) ([]*domain.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= $2)
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, string(domain.StatusPending), time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due transfers: %w", err)
	}
	defer rows.Close()

	return collectTransfers(rows)
}

// ListRecent retrieves the most recently created records, newest first.
func (r *transferRepository) ListRecent(ctx context.Context, limit int) ([]*domain.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transfers: %w", err)
	}
	defer rows.Close()

	return collectTransfers(rows)
}

// scanner abstracts *sql.Row and *sql.Rows for scanTransfer
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTransfer scans one transfers row into a domain record
func scanTransfer(row scanner) (*domain.TransferRecord, error) {
	var rec domain.TransferRecord
	var amount int64
	var status, step string
	var lastError, counterMint, counterSymbol sql.NullString
	var poolAddress, positionMint sql.NullString
	var sigSwapPrimary, sigSwapSecondary, sigPool, sigLock, sigSettle sql.NullString
	var nextRetryAt, completedAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.IncomingSignature,
		&rec.SenderAddress,
		&amount,
		&status,
		&step,
		&rec.RetryCount,
		&lastError,
		&nextRetryAt,
		&counterMint,
		&counterSymbol,
		&poolAddress,
		&positionMint,
		&rec.PoolCreated,
		&sigSwapPrimary,
		&sigSwapSecondary,
		&sigPool,
		&sigLock,
		&sigSettle,
		&rec.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.AmountLamports = uint64(amount)
	rec.Status = domain.Status(status)
	rec.CurrentStep = domain.Step(step)
	rec.LastError = nullString(lastError)
	rec.NextRetryAt = nullTime(nextRetryAt)
	rec.CounterMint = nullString(counterMint)
	rec.CounterSymbol = nullString(counterSymbol)
	rec.PoolAddress = nullString(poolAddress)
	rec.PositionMint = nullString(positionMint)
	rec.SwapPrimarySig = nullString(sigSwapPrimary)
	rec.SwapSecondarySig = nullString(sigSwapSecondary)
	rec.PoolSig = nullString(sigPool)
	rec.LockSig = nullString(sigLock)
	rec.SettleSig = nullString(sigSettle)
	rec.CompletedAt = nullTime(completedAt)

	return &rec, nil
}

// collectTransfers drains rows into domain records
func collectTransfers(rows *sql.Rows) ([]*domain.TransferRecord, error) {
	records := make([]*domain.TransferRecord, 0)
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfer rows: %w", err)
	}
	return records, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
