package domain

import (
	"context"
	"time"
)

// TransferUpdate is a partial update applied to a transfer record.
// Nil fields are left untouched.
type TransferUpdate struct {
	Status      *Status
	CurrentStep *Step
	RetryCount  *int
	LastError   *string
	NextRetryAt *time.Time

	CounterMint      *string
	CounterSymbol    *string
	PoolAddress      *string
	PositionMint     *string
	PoolCreated      *bool
	SwapPrimarySig   *string
	SwapSecondarySig *string
	PoolSig          *string
	LockSig          *string
	SettleSig        *string

	CompletedAt *time.Time
}

// TransferRepository defines the interface for transfer ledger persistence.
// The ledger is the single source of truth for whether a transfer has been
// started or completed; the workflow engine never deletes records.
type TransferRepository interface {
	// Insert creates a new transfer record. Inserting a duplicate
	// incoming signature is a no-op (the first record wins).
	Insert(ctx context.Context, rec *TransferRecord) error

	// FindBySignature retrieves the record for an incoming signature.
	// Returns (nil, nil) when no record exists.
	FindBySignature(ctx context.Context, signature string) (*TransferRecord, error)

	// Update applies a partial update to the record for the signature.
	Update(ctx context.Context, signature string, update TransferUpdate) error

	// FindDueForRetry retrieves up to limit retry-pending records whose
	// next retry time has elapsed or is unset, oldest first.
	FindDueForRetry(ctx context.Context, limit int) ([]*TransferRecord, error)

	// ListRecent retrieves the most recently created records, newest
	// first. Operational visibility only.
	ListRecent(ctx context.Context, limit int) ([]*TransferRecord, error)
}
