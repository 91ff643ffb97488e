package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
	"github.com/staccDOTsol/LIQpgobblerr/internal/usecase/submitter"
)

// Policy holds the business parameters of the workflow. These are
// configuration, not architecture: they are injected at construction time.
type Policy struct {
	// CounterMint and CounterSymbol identify the counter asset of the
	// pool pair.
	CounterMint   string
	CounterSymbol string
	// QuoteMint is the other side of the pool pair, wSOL by default.
	QuoteMint string
	// NativeMint is the wrapped form of the funding asset (wSOL). A swap
	// leg whose output equals it is a recorded no-op.
	NativeMint string
	// FeeRetention is the fraction of the inbound amount retained by the
	// operator.
	FeeRetention decimal.Decimal
	// CounterFraction is the fraction of the working budget swapped into
	// the counter asset.
	CounterFraction decimal.Decimal
	// PoolRentReserveLamports is held back when a new pool must be
	// created.
	PoolRentReserveLamports uint64
	// MinBudgetLamports is the minimum spendable budget after fee and
	// reserve; below it the attempt fails before spending anything.
	MinBudgetLamports uint64
	// MaxRetries is the transfer-level retry ceiling.
	MaxRetries int
	// RetryBaseDelay and RetryMaxDelay parameterize the linear, capped
	// transfer-level backoff. This is a separate policy from the
	// submitter's exponential backoff: it bounds operator-interval-scale
	// failures, not network propagation delay.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// ErrSelfPairing is recorded when the counter asset equals the native
// asset; the attempt fails before anything irreversible is spent.
var ErrSelfPairing = errors.New("counter asset equals primary asset")

// TransactionSubmitter lands signed payloads on the network.
type TransactionSubmitter interface {
	SubmitAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SubmitSequence(ctx context.Context, txs []*solana.Transaction) (submitter.SequenceResult, error)
}

// Engine is the workflow state machine. It sequences the fixed steps,
// decides where a resumed record restarts, and routes every step failure
// through the retry-scheduling contract so no failure escapes a transfer's
// processing boundary.
type Engine struct {
	repo    domain.TransferRepository
	quotes  domain.QuoteOracle
	pools   domain.PoolBuilder
	gateway domain.NetworkGateway
	submit  TransactionSubmitter
	funding *domain.FundingAccount
	policy  Policy

	// now is replaceable in tests
	now func() time.Time
}

// NewEngine creates a new workflow engine
func NewEngine(
	repo domain.TransferRepository,
	quotes domain.QuoteOracle,
	pools domain.PoolBuilder,
	gateway domain.NetworkGateway,
	submit TransactionSubmitter,
	funding *domain.FundingAccount,
	policy Policy,
) *Engine {
	return &Engine{
		repo:    repo,
		quotes:  quotes,
		pools:   pools,
		gateway: gateway,
		submit:  submit,
		funding: funding,
		policy:  policy,
		now:     time.Now,
	}
}

// Process runs a fresh workflow for a newly detected inbound transfer.
// The ledger record is inserted first; a duplicate signature is a no-op at
// the store, so the first attempt for a signature is the only one.
func (e *Engine) Process(ctx context.Context, transfer domain.IncomingTransfer) error {
	rec := &domain.TransferRecord{
		ID:                uuid.New(),
		IncomingSignature: transfer.Signature,
		SenderAddress:     transfer.Sender,
		AmountLamports:    transfer.AmountLamports,
		Status:            domain.StatusProcessing,
		CurrentStep:       domain.StepCheckPool,
		CreatedAt:         e.now(),
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid transfer record: %w", err)
	}

	durable := true
	if err := e.repo.Insert(ctx, rec); err != nil {
		// Per the ledger contract this is a warning, not an abort:
		// validation still runs, but no funds move without durable
		// progress tracking.
		log.Printf("workflow: ledger insert failed for %s: %v", rec.IncomingSignature, err)
		durable = false
	}

	log.Printf("workflow: processing transfer %s from %s (%d lamports)",
		rec.IncomingSignature, rec.SenderAddress, rec.AmountLamports)

	return e.run(ctx, rec, 0, durable)
}

// Resume re-enters the workflow for a retry-pending record at its persisted
// step. Every step strictly before the persisted one is already applied and
// is skipped; the persisted step onward is (re-)executed.
func (e *Engine) Resume(ctx context.Context, rec *domain.TransferRecord) error {
	start := rec.CurrentStep.Index()
	if start < 0 {
		err := fmt.Errorf("%w: %q", domain.ErrUnknownStep, rec.CurrentStep)
		e.markForRetry(ctx, rec, err)
		return err
	}
	if rec.CurrentStep == domain.StepDone {
		return nil
	}

	status := domain.StatusProcessing
	if err := e.repo.Update(ctx, rec.IncomingSignature, domain.TransferUpdate{Status: &status}); err != nil {
		log.Printf("workflow: failed to mark %s processing: %v", rec.IncomingSignature, err)
	}
	rec.Status = domain.StatusProcessing

	log.Printf("workflow: resuming transfer %s at step %s (retry %d)",
		rec.IncomingSignature, rec.CurrentStep, rec.RetryCount)

	return e.run(ctx, rec, start, true)
}

// stepFunc executes one step's side effect and durably records its
// artifacts before the engine advances.
type stepFunc struct {
	step domain.Step
	fn   func(ctx context.Context, rec *domain.TransferRecord) error
}

// run executes the workflow from startIndex onward. Steps run synchronously
// in the fixed order within one attempt; the first failure schedules a
// retry and aborts the remainder.
func (e *Engine) run(ctx context.Context, rec *domain.TransferRecord, startIndex int, durable bool) error {
	steps := []stepFunc{
		{domain.StepCheckPool, e.stepCheckPool},
		{domain.StepSwapPrimary, e.stepSwapPrimary},
		{domain.StepSwapSecondary, e.stepSwapSecondary},
		{domain.StepCreateOrJoinPool, e.stepCreateOrJoinPool},
		{domain.StepLock, e.stepLock},
		{domain.StepSettle, e.stepSettle},
	}

	for i := startIndex; i < len(steps); i++ {
		if !durable && steps[i].step != domain.StepCheckPool {
			// Without durable progress tracking no funds move;
			// the monitor re-detects the transfer once the ledger
			// is reachable again.
			log.Printf("workflow: ledger unavailable, stopping %s before step %s",
				rec.IncomingSignature, steps[i].step)
			return nil
		}

		if err := steps[i].fn(ctx, rec); err != nil {
			e.markForRetry(ctx, rec, err)
			return err
		}
	}

	return e.complete(ctx, rec)
}

// complete marks the record terminally successful
func (e *Engine) complete(ctx context.Context, rec *domain.TransferRecord) error {
	now := e.now()
	status := domain.StatusCompleted
	step := domain.StepDone
	err := e.repo.Update(ctx, rec.IncomingSignature, domain.TransferUpdate{
		Status:      &status,
		CurrentStep: &step,
		CompletedAt: &now,
	})
	if err != nil {
		log.Printf("workflow: failed to mark %s completed: %v", rec.IncomingSignature, err)
		return err
	}
	rec.Status = status
	rec.CurrentStep = step
	rec.CompletedAt = &now

	log.Printf("workflow: transfer %s completed", rec.IncomingSignature)
	return nil
}

// markForRetry is the retry-scheduling contract: increment the retry count,
// flip to terminal failed at the ceiling, otherwise schedule the next
// attempt with linear, capped backoff. The error text is persisted either
// way so a failed attempt is diagnosable from the record alone.
func (e *Engine) markForRetry(ctx context.Context, rec *domain.TransferRecord, cause error) {
	rec.RetryCount++
	msg := cause.Error()

	update := domain.TransferUpdate{
		RetryCount: &rec.RetryCount,
		LastError:  &msg,
	}

	if rec.RetryCount >= e.policy.MaxRetries {
		status := domain.StatusFailed
		update.Status = &status
		rec.Status = status
		log.Printf("workflow: transfer %s terminally failed after %d attempts: %s",
			rec.IncomingSignature, rec.RetryCount, msg)
	} else {
		status := domain.StatusPending
		next := e.now().Add(e.retryDelay(rec.RetryCount))
		update.Status = &status
		update.NextRetryAt = &next
		rec.Status = status
		rec.NextRetryAt = &next
		log.Printf("workflow: transfer %s attempt %d failed, retrying at %s: %s",
			rec.IncomingSignature, rec.RetryCount, next.Format(time.RFC3339), msg)
	}
	rec.LastError = &msg

	if err := e.repo.Update(ctx, rec.IncomingSignature, update); err != nil {
		log.Printf("workflow: failed to persist retry state for %s: %v", rec.IncomingSignature, err)
	}
}

// retryDelay computes the linear, capped transfer-level backoff
func (e *Engine) retryDelay(retryCount int) time.Duration {
	delay := time.Duration(retryCount) * e.policy.RetryBaseDelay
	if delay > e.policy.RetryMaxDelay {
		return e.policy.RetryMaxDelay
	}
	return delay
}

// advance durably records a step's artifacts and moves the step marker
// forward. A step is only skippable on resume once this write succeeded.
func (e *Engine) advance(ctx context.Context, rec *domain.TransferRecord, from domain.Step, update domain.TransferUpdate) error {
	next := from.Next()
	update.CurrentStep = &next

	if err := e.repo.Update(ctx, rec.IncomingSignature, update); err != nil {
		return fmt.Errorf("failed to persist %s artifacts: %w", from, err)
	}

	rec.CurrentStep = next
	applyUpdate(rec, update)
	return nil
}

// applyUpdate mirrors the persisted partial update onto the in-memory
// record so later steps in the same attempt see the artifacts.
func applyUpdate(rec *domain.TransferRecord, update domain.TransferUpdate) {
	if update.CounterMint != nil {
		rec.CounterMint = update.CounterMint
	}
	if update.CounterSymbol != nil {
		rec.CounterSymbol = update.CounterSymbol
	}
	if update.PoolAddress != nil {
		rec.PoolAddress = update.PoolAddress
	}
	if update.PositionMint != nil {
		rec.PositionMint = update.PositionMint
	}
	if update.PoolCreated != nil {
		rec.PoolCreated = *update.PoolCreated
	}
	if update.SwapPrimarySig != nil {
		rec.SwapPrimarySig = update.SwapPrimarySig
	}
	if update.SwapSecondarySig != nil {
		rec.SwapSecondarySig = update.SwapSecondarySig
	}
	if update.PoolSig != nil {
		rec.PoolSig = update.PoolSig
	}
	if update.LockSig != nil {
		rec.LockSig = update.LockSig
	}
	if update.SettleSig != nil {
		rec.SettleSig = update.SettleSig
	}
}
