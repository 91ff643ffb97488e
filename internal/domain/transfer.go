package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a transfer record
type Status string

const (
	// StatusPending marks a record that failed an attempt and is waiting
	// for its next retry (retry-pending).
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Step is a named position in the fixed workflow order.
type Step string

const (
	StepCheckPool        Step = "CHECK_POOL"
	StepSwapPrimary      Step = "SWAP_PRIMARY"
	StepSwapSecondary    Step = "SWAP_SECONDARY"
	StepCreateOrJoinPool Step = "CREATE_OR_JOIN_POOL"
	StepLock             Step = "LOCK"
	StepSettle           Step = "TRANSFER_SETTLEMENT"
	StepDone             Step = "DONE"
)

// StepOrder is the fixed execution order of the workflow. StepDone is the
// terminal marker and is never executed.
var StepOrder = []Step{
	StepCheckPool,
	StepSwapPrimary,
	StepSwapSecondary,
	StepCreateOrJoinPool,
	StepLock,
	StepSettle,
	StepDone,
}

// ErrUnknownStep is returned when a persisted step token is not part of the
// fixed workflow order (e.g. written by an incompatible version).
var ErrUnknownStep = errors.New("unknown workflow step")

// Index returns the position of the step in StepOrder, or -1 if unknown.
func (s Step) Index() int {
	for i, step := range StepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// Before reports whether s comes strictly before other in the fixed order.
// Unknown steps are never before anything.
func (s Step) Before(other Step) bool {
	si, oi := s.Index(), other.Index()
	return si >= 0 && oi >= 0 && si < oi
}

// Next returns the step following s in the fixed order. The terminal step
// has no successor and returns itself.
func (s Step) Next() Step {
	i := s.Index()
	if i < 0 || i >= len(StepOrder)-1 {
		return StepDone
	}
	return StepOrder[i+1]
}

// IncomingTransfer is a qualifying inbound payment detected by the monitor.
type IncomingTransfer struct {
	Signature      string
	Sender         string
	AmountLamports uint64
	Slot           uint64
	BlockTime      time.Time
}

// TransferRecord tracks the workflow progress for one inbound transfer.
// IncomingSignature is the natural idempotency key: exactly one record may
// exist per signature, enforced by the ledger store.
type TransferRecord struct {
	ID                uuid.UUID
	IncomingSignature string
	SenderAddress     string
	AmountLamports    uint64
	Status            Status
	CurrentStep       Step
	RetryCount        int
	LastError         *string
	NextRetryAt       *time.Time

	// Artifacts recorded as the workflow progresses.
	CounterMint      *string
	CounterSymbol    *string
	PoolAddress      *string
	PositionMint     *string
	PoolCreated      bool
	SwapPrimarySig   *string
	SwapSecondarySig *string
	PoolSig          *string
	LockSig          *string
	SettleSig        *string

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Validate ensures the record adheres to domain rules.
// CRITICAL: terminal states must be internally consistent so that the retry
// sweep and resume logic can trust persisted records.
func (r *TransferRecord) Validate() error {
	if r.IncomingSignature == "" {
		return errors.New("transfer record must have an incoming signature")
	}
	if r.AmountLamports == 0 {
		return errors.New("transfer record amount must be positive")
	}
	if r.CurrentStep.Index() < 0 {
		return ErrUnknownStep
	}
	switch r.Status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
	default:
		return errors.New("transfer record status must be PENDING, PROCESSING, COMPLETED or FAILED")
	}
	if r.Status == StatusCompleted {
		if r.CompletedAt == nil {
			return errors.New("completed transfer record must have a completion timestamp")
		}
		if r.CurrentStep != StepDone {
			return errors.New("completed transfer record must be at the terminal step")
		}
	}
	if r.RetryCount < 0 {
		return errors.New("transfer record retry count cannot be negative")
	}
	return nil
}
