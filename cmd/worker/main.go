package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/staccDOTsol/LIQpgobblerr/internal/adapter/chain"
	"github.com/staccDOTsol/LIQpgobblerr/internal/adapter/jupiter"
	"github.com/staccDOTsol/LIQpgobblerr/internal/adapter/meteora"
	"github.com/staccDOTsol/LIQpgobblerr/internal/adapter/repository/postgres"
	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
	"github.com/staccDOTsol/LIQpgobblerr/internal/usecase/monitor"
	"github.com/staccDOTsol/LIQpgobblerr/internal/usecase/scheduler"
	"github.com/staccDOTsol/LIQpgobblerr/internal/usecase/submitter"
	"github.com/staccDOTsol/LIQpgobblerr/internal/usecase/workflow"
)

const (
	defaultRPCURL         = "https://api.mainnet-beta.solana.com"
	defaultQuoteAPIURL    = "https://quote-api.jup.ag/v6"
	defaultPoolBuilderURL = "https://dammv2-api.meteora.ag"

	// wSOL, the wrapped form of the funding asset
	nativeMint = "So11111111111111111111111111111111111111112"
	// USDC, the default counter asset
	defaultCounterMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	defaultCounterSymbol = "USDC"
)

func main() {
	// 1. Setup Database
	dbConnStr := os.Getenv("DB_CONN_STR")
	if dbConnStr == "" {
		// If explicit string is missing, build it from individual vars (Docker friendly)
		host := envOr("DB_HOST", "localhost")
		port := envOr("DB_PORT", "5432")
		user := envOr("DB_USER", "postgres")
		password := envOr("DB_PASSWORD", "postgres")
		dbname := envOr("DB_NAME", "liqgobbler")

		dbConnStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := postgres.NewDB(dbConnStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure ledger schema: %v", err)
	}

	// 2. Funding account and watch address
	keyMaterial := os.Getenv("WALLET_PRIVATE_KEY")
	if keyMaterial == "" {
		log.Fatal("WALLET_PRIVATE_KEY is required")
	}
	funding := domain.NewFundingAccount(keyMaterial)
	fundingPub, err := funding.PublicKey()
	if err != nil {
		log.Fatalf("Failed to load funding account: %v", err)
	}
	watchAddress := envOr("WATCH_ADDRESS", fundingPub.String())

	// 3. External collaborators
	chainClient := chain.NewClient(envOr("RPC_URL", defaultRPCURL))
	quoteOracle := jupiter.NewClient(envOr("QUOTE_API_URL", defaultQuoteAPIURL), envInt("SLIPPAGE_BPS", 100))
	poolBuilder := meteora.NewClient(envOr("POOL_BUILDER_URL", defaultPoolBuilderURL))

	// 4. Ledger repository
	transferRepo := postgres.NewTransferRepository(db)

	// 5. Services
	policy := workflow.Policy{
		CounterMint:             envOr("COUNTER_MINT", defaultCounterMint),
		CounterSymbol:           envOr("COUNTER_SYMBOL", defaultCounterSymbol),
		QuoteMint:               envOr("QUOTE_MINT", nativeMint),
		NativeMint:              nativeMint,
		FeeRetention:            envFraction("FEE_RETENTION", "0.10"),
		CounterFraction:         envFraction("COUNTER_FRACTION", "0.50"),
		PoolRentReserveLamports: envUint("POOL_RENT_RESERVE_LAMPORTS", 50_000_000),
		MinBudgetLamports:       envUint("MIN_BUDGET_LAMPORTS", 10_000_000),
		MaxRetries:              envInt("MAX_RETRIES", 5),
		RetryBaseDelay:          envDuration("RETRY_BASE_DELAY", time.Minute),
		RetryMaxDelay:           envDuration("RETRY_MAX_DELAY", 10*time.Minute),
	}
	if policy.CounterMint == policy.QuoteMint {
		log.Fatal("COUNTER_MINT and QUOTE_MINT must differ")
	}

	submitService := submitter.NewService(chainClient, submitter.DefaultConfig())
	engine := workflow.NewEngine(transferRepo, quoteOracle, poolBuilder, chainClient, submitService, funding, policy)

	monitorService, err := monitor.NewService(chainClient, transferRepo, monitor.Config{
		WatchAddress: watchAddress,
		MinLamports:  envUint("MIN_INBOUND_LAMPORTS", 100_000_000),
		FetchLimit:   envInt("FETCH_LIMIT", 20),
	})
	if err != nil {
		log.Fatalf("Failed to create monitor: %v", err)
	}

	// Operational visibility: surface recent ledger state at start-up
	if recent, err := transferRepo.ListRecent(ctx, 5); err == nil {
		for _, rec := range recent {
			log.Printf("ledger: %s status=%s step=%s retries=%d",
				rec.IncomingSignature, rec.Status, rec.CurrentStep, rec.RetryCount)
		}
	}

	// 6. Run the loop until a shutdown signal arrives
	loop := scheduler.New(monitorService, engine, transferRepo, scheduler.Config{
		Interval:       envDuration("TICK_INTERVAL", 10*time.Second),
		RetryBatchSize: envInt("RETRY_BATCH_SIZE", 10),
	})

	log.Printf("worker watching %s (funding %s)", watchAddress, fundingPub)
	loop.Run(ctx)

	log.Println("worker stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}

func envUint(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return d
}

func envFraction(key, fallback string) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		log.Fatalf("Invalid %s: must be in [0, 1)", key)
	}
	return d
}
