package domain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
)

// SignatureMeta describes one entry of a wallet's transaction history.
type SignatureMeta struct {
	Signature string
	Slot      uint64
	BlockTime time.Time
}

// TransactionBalances carries the account keys and pre/post balances of a
// confirmed transaction, enough to compute the watched address's delta.
type TransactionBalances struct {
	AccountKeys  []string
	PreBalances  []uint64
	PostBalances []uint64
}

// TransactionFeed is the watched-address history, consumed by the monitor.
type TransactionFeed interface {
	// RecentSignatures lists the most recent transaction signatures for
	// an address, newest first.
	RecentSignatures(ctx context.Context, address string, limit int) ([]SignatureMeta, error)

	// FetchTransaction retrieves balance data for a confirmed
	// transaction. Returns (nil, nil) when the transaction is not found.
	FetchTransaction(ctx context.Context, signature string) (*TransactionBalances, error)
}

// LandingState classifies the observed network status of a submission.
type LandingState int

const (
	// LandingPending means the payload is not yet visible on the network.
	LandingPending LandingState = iota
	// LandingConfirmed means the payload was durably accepted.
	LandingConfirmed
	// LandingRejected means the network recorded a permanent failure.
	LandingRejected
)

// NetworkGateway submits signed payloads and reports their landing status.
type NetworkGateway interface {
	// Submit broadcasts a signed transaction, skipping preflight
	// validation (the network itself is the validator).
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// SignatureStatus polls the landing status of a submitted signature.
	SignatureStatus(ctx context.Context, sig solana.Signature) (LandingState, error)

	// LatestBlockhash returns a fresh blockhash for building payloads.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)

	// AccountExists reports whether an account is present on-chain.
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
}
