package monitor

import (
	"context"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
)

// Config holds the monitor's policy parameters
type Config struct {
	// WatchAddress is the wallet whose history is polled.
	WatchAddress string
	// MinLamports is the minimum inbound balance delta that qualifies.
	MinLamports uint64
	// FetchLimit is how many recent signatures are examined per tick.
	FetchLimit int
	// SeenCacheSize bounds the in-memory de-duplication cache.
	SeenCacheSize int
}

// Service polls the watched address's transaction history and emits each
// qualifying inbound transfer exactly once.
//
// The seen cache is a fast path only: the ledger's unique incoming
// signature constraint is the authoritative de-duplication check, so losing
// the cache on restart is safe.
type Service struct {
	feed domain.TransactionFeed
	repo domain.TransferRepository
	seen *lru.Cache[string, struct{}]
	cfg  Config
}

// NewService creates a new inbound monitor
func NewService(feed domain.TransactionFeed, repo domain.TransferRepository, cfg Config) (*Service, error) {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 20
	}
	if cfg.SeenCacheSize <= 0 {
		cfg.SeenCacheSize = 4096
	}
	seen, err := lru.New[string, struct{}](cfg.SeenCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{feed: feed, repo: repo, seen: seen, cfg: cfg}, nil
}

// Check fetches the recent history once and returns the new qualifying
// inbound transfers, oldest first. A transiently unreachable network or
// ledger is logged and yields an empty batch; the next tick retries.
func (s *Service) Check(ctx context.Context) []domain.IncomingTransfer {
	metas, err := s.feed.RecentSignatures(ctx, s.cfg.WatchAddress, s.cfg.FetchLimit)
	if err != nil {
		log.Printf("monitor: failed to fetch signatures: %v", err)
		return nil
	}

	transfers := make([]domain.IncomingTransfer, 0)

	// History comes newest first; walk backwards so emissions are in
	// detection order.
	for i := len(metas) - 1; i >= 0; i-- {
		meta := metas[i]

		if s.seen.Contains(meta.Signature) {
			continue
		}

		// The ledger is authoritative: a record means this transfer
		// was already handed to the workflow, possibly before a
		// restart.
		existing, err := s.repo.FindBySignature(ctx, meta.Signature)
		if err != nil {
			// Ledger unreachable; leave the signature uncached so
			// the next tick re-checks it.
			log.Printf("monitor: ledger lookup failed for %s: %v", meta.Signature, err)
			continue
		}
		if existing != nil {
			s.seen.Add(meta.Signature, struct{}{})
			continue
		}

		transfer, ok := s.evaluate(ctx, meta)
		if !ok {
			continue
		}

		s.seen.Add(meta.Signature, struct{}{})
		transfers = append(transfers, transfer)
	}

	return transfers
}

// evaluate fetches the full transaction and decides whether it is a
// qualifying inbound transfer. Non-actionable transactions (no meta, no
// self index, no identifiable sender, dust) are cached as seen so they are
// not re-evaluated every tick.
func (s *Service) evaluate(ctx context.Context, meta domain.SignatureMeta) (domain.IncomingTransfer, bool) {
	var none domain.IncomingTransfer

	balances, err := s.feed.FetchTransaction(ctx, meta.Signature)
	if err != nil {
		// Transient fetch failure: retry on the next tick.
		log.Printf("monitor: failed to fetch transaction %s: %v", meta.Signature, err)
		return none, false
	}
	if balances == nil {
		s.seen.Add(meta.Signature, struct{}{})
		return none, false
	}

	selfIndex := -1
	for i, key := range balances.AccountKeys {
		if key == s.cfg.WatchAddress {
			selfIndex = i
			break
		}
	}
	if selfIndex < 0 || selfIndex >= len(balances.PreBalances) || selfIndex >= len(balances.PostBalances) {
		s.seen.Add(meta.Signature, struct{}{})
		return none, false
	}

	pre := balances.PreBalances[selfIndex]
	post := balances.PostBalances[selfIndex]
	if post <= pre {
		// Outbound or neutral; not an inbound transfer.
		s.seen.Add(meta.Signature, struct{}{})
		return none, false
	}

	delta := post - pre
	if delta < s.cfg.MinLamports {
		// Dust: remember it so it is not re-evaluated every tick.
		s.seen.Add(meta.Signature, struct{}{})
		return none, false
	}

	// The sender is the first other account whose balance decreased.
	sender := ""
	for i, key := range balances.AccountKeys {
		if i == selfIndex || i >= len(balances.PreBalances) || i >= len(balances.PostBalances) {
			continue
		}
		if balances.PostBalances[i] < balances.PreBalances[i] {
			sender = key
			break
		}
	}
	if sender == "" {
		s.seen.Add(meta.Signature, struct{}{})
		return none, false
	}

	return domain.IncomingTransfer{
		Signature:      meta.Signature,
		Sender:         sender,
		AmountLamports: delta,
		Slot:           meta.Slot,
		BlockTime:      meta.BlockTime,
	}, true
}
