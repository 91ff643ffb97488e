package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	ata "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
	"github.com/staccDOTsol/LIQpgobblerr/internal/usecase/allocator"
)

// skippedLeg marks a swap leg that needed no on-chain work; the artifact is
// persisted so the step counts as applied on resume.
const skippedLeg = "skipped"

// stepCheckPool validates the asset pair, checks pool existence and proves
// the budget is workable before anything irreversible is spent.
func (e *Engine) stepCheckPool(ctx context.Context, rec *domain.TransferRecord) error {
	if e.policy.CounterMint == e.policy.QuoteMint {
		return ErrSelfPairing
	}

	pool, err := e.pools.FindPool(ctx, e.policy.CounterMint, e.policy.QuoteMint)
	if err != nil {
		return fmt.Errorf("pool existence check failed: %w", err)
	}

	// Reserve pool-creation rent when no pool exists; the split fails
	// outright when the reserve cannot be covered.
	split, err := allocator.SplitInbound(
		rec.AmountLamports,
		e.policy.FeeRetention,
		e.policy.CounterFraction,
		e.policy.PoolRentReserveLamports,
		!pool.Exists,
	)
	if err != nil {
		return fmt.Errorf("budget split failed: %w", err)
	}
	if split.Budget() < e.policy.MinBudgetLamports {
		return fmt.Errorf("working budget %d lamports below minimum %d",
			split.Budget(), e.policy.MinBudgetLamports)
	}

	update := domain.TransferUpdate{
		CounterMint:   &e.policy.CounterMint,
		CounterSymbol: &e.policy.CounterSymbol,
	}
	if pool.Exists {
		addr := pool.Address
		update.PoolAddress = &addr
	}

	return e.advance(ctx, rec, domain.StepCheckPool, update)
}

// computeSplit recomputes the budget split for a record. The split is a
// pure function of the persisted amount and pool-existence artifacts, so a
// resumed record always sees the same leg amounts.
func (e *Engine) computeSplit(rec *domain.TransferRecord) (allocator.Split, error) {
	reserveRent := rec.PoolAddress == nil && !rec.PoolCreated
	return allocator.SplitInbound(
		rec.AmountLamports,
		e.policy.FeeRetention,
		e.policy.CounterFraction,
		e.policy.PoolRentReserveLamports,
		reserveRent,
	)
}

// stepSwapPrimary swaps the counter leg into the counter asset.
func (e *Engine) stepSwapPrimary(ctx context.Context, rec *domain.TransferRecord) error {
	split, err := e.computeSplit(rec)
	if err != nil {
		return err
	}

	sig, err := e.executeSwap(ctx, e.policy.CounterMint, split.CounterLamports)
	if err != nil {
		return fmt.Errorf("primary swap failed: %w", err)
	}

	return e.advance(ctx, rec, domain.StepSwapPrimary, domain.TransferUpdate{SwapPrimarySig: &sig})
}

// stepSwapSecondary swaps the remainder leg into the quote asset. When the
// quote asset is the native mint there is nothing to swap; the pool deposit
// wraps the lamports itself.
func (e *Engine) stepSwapSecondary(ctx context.Context, rec *domain.TransferRecord) error {
	split, err := e.computeSplit(rec)
	if err != nil {
		return err
	}

	if e.policy.QuoteMint == e.policy.NativeMint {
		sig := skippedLeg
		return e.advance(ctx, rec, domain.StepSwapSecondary, domain.TransferUpdate{SwapSecondarySig: &sig})
	}

	sig, err := e.executeSwap(ctx, e.policy.QuoteMint, split.NativeLamports)
	if err != nil {
		return fmt.Errorf("secondary swap failed: %w", err)
	}

	return e.advance(ctx, rec, domain.StepSwapSecondary, domain.TransferUpdate{SwapSecondarySig: &sig})
}

// executeSwap quotes, builds, signs and lands one swap leg.
func (e *Engine) executeSwap(ctx context.Context, outputMint string, lamports uint64) (string, error) {
	if lamports == 0 {
		return skippedLeg, nil
	}

	payer, err := e.funding.PublicKey()
	if err != nil {
		return "", err
	}

	quote, err := e.quotes.Quote(ctx, e.policy.NativeMint, outputMint, lamports)
	if err != nil {
		return "", fmt.Errorf("quote unavailable: %w", err)
	}

	tx, err := e.quotes.BuildSwap(ctx, quote, payer)
	if err != nil {
		return "", fmt.Errorf("swap build failed: %w", err)
	}

	if err := e.funding.Sign(tx); err != nil {
		return "", err
	}

	sig, err := e.submit.SubmitAndConfirm(ctx, tx)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

// stepCreateOrJoinPool branches on the pool-existence artifact persisted by
// the check step. Each attempt generates a fresh position keypair, so a
// re-attempt never collides with a partially applied predecessor.
func (e *Engine) stepCreateOrJoinPool(ctx context.Context, rec *domain.TransferRecord) error {
	split, err := e.computeSplit(rec)
	if err != nil {
		return err
	}

	payer, err := e.funding.PublicKey()
	if err != nil {
		return err
	}

	position := solana.NewWallet()

	if rec.PoolAddress != nil {
		return e.joinPool(ctx, rec, payer, position, split)
	}
	return e.createPool(ctx, rec, payer, position, split)
}

// createPool builds and lands the combined create+deposit+lock transaction.
// Combining them into one atomic submission removes the class of
// "succeeded halfway" states a create path would otherwise have.
func (e *Engine) createPool(ctx context.Context, rec *domain.TransferRecord, payer solana.PublicKey, position *solana.Wallet, split allocator.Split) error {
	build, err := e.pools.BuildCreatePool(ctx, domain.CreatePoolParams{
		Payer:        payer,
		PositionMint: position.PublicKey(),
		MintA:        e.policy.CounterMint,
		MintB:        e.policy.QuoteMint,
		AmountA:      split.CounterLamports,
		AmountB:      split.NativeLamports,
	})
	if err != nil {
		return fmt.Errorf("create-pool build failed: %w", err)
	}

	if err := e.funding.Sign(build.Transaction, position.PrivateKey); err != nil {
		return err
	}

	sig, err := e.submit.SubmitAndConfirm(ctx, build.Transaction)
	if err != nil {
		return fmt.Errorf("create-pool submission failed: %w", err)
	}

	created := true
	sigStr := sig.String()
	positionMint := position.PublicKey().String()
	update := domain.TransferUpdate{
		PoolCreated:  &created,
		PositionMint: &positionMint,
		PoolSig:      &sigStr,
		// The combined transaction already locked the position.
		LockSig: &sigStr,
	}
	if build.PoolAddress != "" {
		addr := build.PoolAddress
		update.PoolAddress = &addr
	}

	return e.advance(ctx, rec, domain.StepCreateOrJoinPool, update)
}

// joinPool lands the dependent position+deposit sequence on an existing
// pool. The lock is a separate later step on this path.
func (e *Engine) joinPool(ctx context.Context, rec *domain.TransferRecord, payer solana.PublicKey, position *solana.Wallet, split allocator.Split) error {
	txs, err := e.pools.BuildJoinPool(ctx, domain.JoinPoolParams{
		Payer:        payer,
		PositionMint: position.PublicKey(),
		PoolAddress:  *rec.PoolAddress,
		AmountA:      split.CounterLamports,
		AmountB:      split.NativeLamports,
	})
	if err != nil {
		return fmt.Errorf("join-pool build failed: %w", err)
	}

	for _, tx := range txs {
		if err := e.funding.Sign(tx, position.PrivateKey); err != nil {
			return err
		}
	}

	result, err := e.submit.SubmitSequence(ctx, txs)
	if err != nil {
		return fmt.Errorf("join-pool sequence failed at payload %d: %w", result.FailedIndex, err)
	}
	if len(result.Confirmed) == 0 {
		return errors.New("join-pool sequence confirmed no payloads")
	}

	sigStr := result.Confirmed[len(result.Confirmed)-1].String()
	positionMint := position.PublicKey().String()

	return e.advance(ctx, rec, domain.StepCreateOrJoinPool, domain.TransferUpdate{
		PositionMint: &positionMint,
		PoolSig:      &sigStr,
	})
}

// stepLock permanently restricts withdrawal on the position. The create
// path already locked inside the combined transaction, so only the join
// path submits here. Irreversible once observed on-chain.
func (e *Engine) stepLock(ctx context.Context, rec *domain.TransferRecord) error {
	if rec.LockSig != nil {
		return e.advance(ctx, rec, domain.StepLock, domain.TransferUpdate{})
	}
	if rec.PositionMint == nil {
		return errors.New("lock step reached without a position mint artifact")
	}

	payer, err := e.funding.PublicKey()
	if err != nil {
		return err
	}
	positionMint, err := solana.PublicKeyFromBase58(*rec.PositionMint)
	if err != nil {
		return fmt.Errorf("invalid persisted position mint: %w", err)
	}

	tx, err := e.pools.BuildLock(ctx, payer, positionMint)
	if err != nil {
		return fmt.Errorf("lock build failed: %w", err)
	}
	if err := e.funding.Sign(tx); err != nil {
		return err
	}

	sig, err := e.submit.SubmitAndConfirm(ctx, tx)
	if err != nil {
		return fmt.Errorf("lock submission failed: %w", err)
	}

	sigStr := sig.String()
	return e.advance(ctx, rec, domain.StepLock, domain.TransferUpdate{LockSig: &sigStr})
}

// stepSettle moves the position receipt NFT from the funding wallet to the
// original sender, creating the destination holding account first when it
// does not exist.
func (e *Engine) stepSettle(ctx context.Context, rec *domain.TransferRecord) error {
	if rec.PositionMint == nil {
		return errors.New("settlement step reached without a position mint artifact")
	}

	payer, err := e.funding.PublicKey()
	if err != nil {
		return err
	}
	mint, err := solana.PublicKeyFromBase58(*rec.PositionMint)
	if err != nil {
		return fmt.Errorf("invalid persisted position mint: %w", err)
	}
	recipient, err := solana.PublicKeyFromBase58(rec.SenderAddress)
	if err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}

	source, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return fmt.Errorf("failed to derive source token account: %w", err)
	}
	destination, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return fmt.Errorf("failed to derive destination token account: %w", err)
	}

	instructions := make([]solana.Instruction, 0, 2)

	exists, err := e.gateway.AccountExists(ctx, destination)
	if err != nil {
		return fmt.Errorf("failed to check destination token account: %w", err)
	}
	if !exists {
		createIx, err := ata.NewCreateInstruction(payer, recipient, mint).ValidateAndBuild()
		if err != nil {
			return fmt.Errorf("failed to build token account creation: %w", err)
		}
		instructions = append(instructions, createIx)
	}

	transferIx, err := token.NewTransferInstruction(1, source, destination, payer, nil).ValidateAndBuild()
	if err != nil {
		return fmt.Errorf("failed to build receipt transfer: %w", err)
	}
	instructions = append(instructions, transferIx)

	blockhash, err := e.gateway.LatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return fmt.Errorf("failed to build settlement transaction: %w", err)
	}
	if err := e.funding.Sign(tx); err != nil {
		return err
	}

	sig, err := e.submit.SubmitAndConfirm(ctx, tx)
	if err != nil {
		return fmt.Errorf("settlement submission failed: %w", err)
	}

	sigStr := sig.String()
	return e.advance(ctx, rec, domain.StepSettle, domain.TransferUpdate{SettleSig: &sigStr})
}
