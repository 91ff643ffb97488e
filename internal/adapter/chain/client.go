package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
)

// Client is the Solana RPC gateway. It implements domain.TransactionFeed
// and domain.NetworkGateway on top of a JSON-RPC endpoint.
type Client struct {
	rpc *rpc.Client
}

// NewClient creates a gateway for the given RPC endpoint
func NewClient(endpoint string) *Client {
	return &Client{rpc: rpc.New(endpoint)}
}

// RecentSignatures lists the most recent transaction signatures for an
// address, newest first.
func (c *Client) RecentSignatures(ctx context.Context, address string, limit int) ([]domain.SignatureMeta, error) {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid watch address: %w", err)
	}

	out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, account, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signatures for address: %w", err)
	}

	metas := make([]domain.SignatureMeta, 0, len(out))
	for _, sig := range out {
		if sig.Err != nil {
			// Failed transactions never carry an inbound transfer
			continue
		}
		meta := domain.SignatureMeta{
			Signature: sig.Signature.String(),
			Slot:      sig.Slot,
		}
		if sig.BlockTime != nil {
			meta.BlockTime = sig.BlockTime.Time()
		}
		metas = append(metas, meta)
	}

	return metas, nil
}

// FetchTransaction retrieves balance data for a confirmed transaction.
// Returns (nil, nil) when the transaction is not found or carries no meta.
func (c *Client) FetchTransaction(ctx context.Context, signature string) (*domain.TransactionBalances, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction signature: %w", err)
	}

	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	if out == nil || out.Meta == nil || out.Transaction == nil {
		return nil, nil
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction envelope: %w", err)
	}

	keys := make([]string, 0, len(tx.Message.AccountKeys))
	for _, key := range tx.Message.AccountKeys {
		keys = append(keys, key.String())
	}

	return &domain.TransactionBalances{
		AccountKeys:  keys,
		PreBalances:  out.Meta.PreBalances,
		PostBalances: out.Meta.PostBalances,
	}, nil
}

// Submit broadcasts a signed transaction with preflight skipped; the
// network itself is the validator.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// SignatureStatus polls the landing status of a submitted signature.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (domain.LandingState, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return domain.LandingPending, fmt.Errorf("failed to fetch signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return domain.LandingPending, nil
	}

	status := out.Value[0]
	if status.Err != nil {
		return domain.LandingRejected, nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return domain.LandingConfirmed, nil
	default:
		return domain.LandingPending, nil
	}
}

// LatestBlockhash returns a fresh blockhash for building payloads
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to fetch latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// AccountExists reports whether an account is present on-chain
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	out, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to fetch account info: %w", err)
	}
	return out != nil && out.Value != nil, nil
}

// interface conformance
var (
	_ domain.TransactionFeed = (*Client)(nil)
	_ domain.NetworkGateway  = (*Client)(nil)
)
