package submitter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
)

// Submission failure classification. ErrRejected and ErrBlockhashExpired
// are permanent for the payload as built; everything else is retryable at
// the transfer level.
var (
	// ErrRejected means the network recorded a permanent on-chain
	// failure for the payload (e.g. insufficient funds).
	ErrRejected = errors.New("transaction rejected on-chain")

	// ErrBlockhashExpired means the payload's blockhash fell out of the
	// validity window; it cannot be retried as-is and must be rebuilt.
	ErrBlockhashExpired = errors.New("transaction blockhash expired")

	// ErrNotLanded means the payload never became visible within the
	// bounded retry budget; the whole attempt may be retried later.
	ErrNotLanded = errors.New("transaction did not land within retry budget")
)

// Config holds the submission-level retry policy. This is deliberately a
// separate policy from the transfer-level retry backoff: it bounds network
// propagation delay, not operator-interval-scale failures.
type Config struct {
	// SettleDelay is the fixed wait between broadcasting and the first
	// status poll.
	SettleDelay time.Duration
	// InitialBackoff is the first inter-attempt delay; each subsequent
	// delay grows by 1.5x up to MaxBackoff.
	InitialBackoff time.Duration
	// MaxBackoff caps the inter-attempt delay.
	MaxBackoff time.Duration
	// MaxAttempts bounds the number of broadcast attempts per payload.
	MaxAttempts int
}

// DefaultConfig returns the submission policy used in production
func DefaultConfig() Config {
	return Config{
		SettleDelay:    2 * time.Second,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		MaxAttempts:    10,
	}
}

// SequenceResult reports the outcome of a dependent multi-payload
// submission. FailedIndex is -1 when every payload confirmed.
type SequenceResult struct {
	Confirmed   []solana.Signature
	FailedIndex int
}

// Service lands signed payloads on the network with bounded retries.
type Service struct {
	gateway domain.NetworkGateway
	cfg     Config

	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a new network submitter
func NewService(gateway domain.NetworkGateway, cfg Config) *Service {
	return &Service{
		gateway: gateway,
		cfg:     cfg,
		sleep:   sleepContext,
	}
}

// SubmitAndConfirm broadcasts a signed transaction and polls until it
// lands. Preflight is skipped by the gateway; the network itself is the
// validator. Inconclusive attempts are retried with exponential backoff
// (x1.5, capped); a permanent on-chain rejection or an expired blockhash
// returns immediately.
func (s *Service) SubmitAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	delay := s.cfg.InitialBackoff
	var sig solana.Signature
	var haveSig bool

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				return solana.Signature{}, err
			}
			delay = nextBackoff(delay, s.cfg.MaxBackoff)
		}

		sent, err := s.gateway.Submit(ctx, tx)
		switch {
		case err == nil:
			sig = sent
			haveSig = true
		case isAlreadyProcessed(err):
			// The payload already landed under its own signature;
			// resolve by polling that id instead of failing.
			if !haveSig {
				if len(tx.Signatures) == 0 {
					return solana.Signature{}, fmt.Errorf("already-processed payload has no signature: %w", err)
				}
				sig = tx.Signatures[0]
				haveSig = true
			}
		case isBlockhashExpired(err):
			return solana.Signature{}, ErrBlockhashExpired
		default:
			// Transient broadcast failure; back off and retry.
			log.Printf("submitter: broadcast attempt %d failed: %v", attempt+1, err)
			continue
		}

		if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
			return solana.Signature{}, err
		}

		state, err := s.gateway.SignatureStatus(ctx, sig)
		if err != nil {
			// Status endpoint unreachable is inconclusive.
			log.Printf("submitter: status poll failed for %s: %v", sig, err)
			continue
		}

		switch state {
		case domain.LandingConfirmed:
			return sig, nil
		case domain.LandingRejected:
			return sig, ErrRejected
		default:
			// Not yet visible; back off and resubmit.
		}
	}

	return sig, ErrNotLanded
}

// SubmitSequence lands a sequence of dependent payloads strictly in order.
// A payload is only broadcast once its predecessor confirmed; the first
// failure aborts the remainder and reports its 0-based index.
func (s *Service) SubmitSequence(ctx context.Context, txs []*solana.Transaction) (SequenceResult, error) {
	result := SequenceResult{
		Confirmed:   make([]solana.Signature, 0, len(txs)),
		FailedIndex: -1,
	}

	for i, tx := range txs {
		sig, err := s.SubmitAndConfirm(ctx, tx)
		if err != nil {
			result.FailedIndex = i
			return result, fmt.Errorf("payload %d of %d failed: %w", i+1, len(txs), err)
		}
		result.Confirmed = append(result.Confirmed, sig)
	}

	return result, nil
}

// nextBackoff grows the delay by 1.5x up to the cap
func nextBackoff(current, max time.Duration) time.Duration {
	next := current + current/2
	if next > max {
		return max
	}
	return next
}

func isAlreadyProcessed(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already been processed") ||
		strings.Contains(msg, "AlreadyProcessed")
}

func isBlockhashExpired(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Blockhash not found") ||
		strings.Contains(msg, "BlockhashNotFound")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
