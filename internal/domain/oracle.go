package domain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// SwapQuote is an opaque priced route returned by the quote oracle. The
// engine only inspects the amounts; the route payload is passed back to the
// oracle when building the swap transaction.
type SwapQuote struct {
	InputMint  string
	OutputMint string
	InAmount   uint64
	OutAmount  uint64
	Route      []byte
}

// QuoteOracle is the external swap price-discovery and build API.
type QuoteOracle interface {
	// Quote prices a swap of amount (in the smallest unit of inputMint)
	// into outputMint.
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (*SwapQuote, error)

	// BuildSwap returns a signable transaction executing the quote, with
	// payer as fee payer and token owner.
	BuildSwap(ctx context.Context, quote *SwapQuote, payer solana.PublicKey) (*solana.Transaction, error)
}

// PoolInfo is the result of a pool existence check for an asset pair.
type PoolInfo struct {
	Exists  bool
	Address string
}

// CreatePoolParams parameterizes the combined create+deposit+lock build.
type CreatePoolParams struct {
	Payer        solana.PublicKey
	PositionMint solana.PublicKey
	MintA        string
	MintB        string
	AmountA      uint64
	AmountB      uint64
}

// JoinPoolParams parameterizes the join-existing-pool build.
type JoinPoolParams struct {
	Payer        solana.PublicKey
	PositionMint solana.PublicKey
	PoolAddress  string
	AmountA      uint64
	AmountB      uint64
}

// CreatePoolBuild is the result of a create-pool build: the combined
// transaction plus the derived address of the pool it will create.
type CreatePoolBuild struct {
	Transaction *solana.Transaction
	PoolAddress string
}

// PoolBuilder is the external liquidity-pool SDK. Builders return unsigned
// transactions; signing stays with the funding account.
type PoolBuilder interface {
	// FindPool checks whether a pool for the asset pair already exists.
	FindPool(ctx context.Context, mintA, mintB string) (*PoolInfo, error)

	// BuildCreatePool builds a single atomic transaction creating the
	// pool, depositing initial liquidity and locking the position.
	BuildCreatePool(ctx context.Context, params CreatePoolParams) (*CreatePoolBuild, error)

	// BuildJoinPool builds the dependent transaction sequence that
	// creates or reuses a position on an existing pool and deposits.
	BuildJoinPool(ctx context.Context, params JoinPoolParams) ([]*solana.Transaction, error)

	// BuildLock builds the transaction permanently locking a position.
	BuildLock(ctx context.Context, owner solana.PublicKey, positionMint solana.PublicKey) (*solana.Transaction, error)
}
