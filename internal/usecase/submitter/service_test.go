package submitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
)

// MockNetworkGateway is a mock implementation of NetworkGateway for testing
type MockNetworkGateway struct {
	mock.Mock
}

func (m *MockNetworkGateway) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockNetworkGateway) SignatureStatus(ctx context.Context, sig solana.Signature) (domain.LandingState, error) {
	args := m.Called(ctx, sig)
	return args.Get(0).(domain.LandingState), args.Error(1)
}

func (m *MockNetworkGateway) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockNetworkGateway) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	args := m.Called(ctx, account)
	return args.Bool(0), args.Error(1)
}

func testConfig() Config {
	return Config{
		SettleDelay:    time.Millisecond,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
		MaxAttempts:    5,
	}
}

// newTestService returns a submitter whose sleeps are captured, not slept
func newTestService(gateway *MockNetworkGateway) (*Service, *[]time.Duration) {
	svc := NewService(gateway, testConfig())
	slept := new([]time.Duration)
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return svc, slept
}

func sigWithByte(b byte) solana.Signature {
	var sig solana.Signature
	sig[0] = b
	return sig
}

func txWithSig(b byte) *solana.Transaction {
	return &solana.Transaction{Signatures: []solana.Signature{sigWithByte(b)}}
}

func TestSubmitAndConfirm_Success(t *testing.T) {
	ctx := context.Background()
	gateway := new(MockNetworkGateway)
	svc, _ := newTestService(gateway)

	tx := txWithSig(1)
	sig := sigWithByte(1)
	gateway.On("Submit", ctx, tx).Return(sig, nil)
	gateway.On("SignatureStatus", ctx, sig).Return(domain.LandingConfirmed, nil)

	got, err := svc.SubmitAndConfirm(ctx, tx)

	require.NoError(t, err)
	assert.Equal(t, sig, got)
	gateway.AssertNumberOfCalls(t, "Submit", 1)
}

func TestSubmitAndConfirm_BackoffGrowsWithCeiling(t *testing.T) {
	// Inconclusive attempts back off by 1.5x up to the cap, then the
	// retry budget runs out
	ctx := context.Background()
	gateway := new(MockNetworkGateway)
	svc, slept := newTestService(gateway)

	tx := txWithSig(1)
	sig := sigWithByte(1)
	gateway.On("Submit", ctx, tx).Return(sig, nil)
	gateway.On("SignatureStatus", ctx, sig).Return(domain.LandingPending, nil)

	_, err := svc.SubmitAndConfirm(ctx, tx)

	assert.ErrorIs(t, err, ErrNotLanded)
	gateway.AssertNumberOfCalls(t, "Submit", 5)

	// Filter out the fixed settle delays; what remains are the
	// inter-attempt backoffs
	backoffs := make([]time.Duration, 0)
	for _, d := range *slept {
		if d != time.Millisecond {
			backoffs = append(backoffs, d)
		}
	}
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		150 * time.Millisecond,
		200 * time.Millisecond, // capped
		200 * time.Millisecond,
	}, backoffs)
}

func TestSubmitAndConfirm_PermanentRejection(t *testing.T) {
	ctx := context.Background()
	gateway := new(MockNetworkGateway)
	svc, _ := newTestService(gateway)

	tx := txWithSig(1)
	sig := sigWithByte(1)
	gateway.On("Submit", ctx, tx).Return(sig, nil)
	gateway.On("SignatureStatus", ctx, sig).Return(domain.LandingRejected, nil)

	_, err := svc.SubmitAndConfirm(ctx, tx)

	assert.ErrorIs(t, err, ErrRejected)
	gateway.AssertNumberOfCalls(t, "Submit", 1)
}

func TestSubmitAndConfirm_AlreadyProcessedResolvesByPolling(t *testing.T) {
	// A duplicate-submission error means the payload landed under its
	// own signature; the submitter polls that id instead of failing
	ctx := context.Background()
	gateway := new(MockNetworkGateway)
	svc, _ := newTestService(gateway)

	tx := txWithSig(7)
	sig := sigWithByte(7)
	gateway.On("Submit", ctx, tx).Return(solana.Signature{}, errors.New("Transaction simulation failed: This transaction has already been processed"))
	gateway.On("SignatureStatus", ctx, sig).Return(domain.LandingConfirmed, nil)

	got, err := svc.SubmitAndConfirm(ctx, tx)

	require.NoError(t, err)
	assert.Equal(t, sig, got)
}

func TestSubmitAndConfirm_BlockhashExpiredIsPermanent(t *testing.T) {
	ctx := context.Background()
	gateway := new(MockNetworkGateway)
	svc, _ := newTestService(gateway)

	tx := txWithSig(1)
	gateway.On("Submit", ctx, tx).Return(solana.Signature{}, errors.New("Blockhash not found"))

	_, err := svc.SubmitAndConfirm(ctx, tx)

	assert.ErrorIs(t, err, ErrBlockhashExpired)
	gateway.AssertNumberOfCalls(t, "Submit", 1)
	gateway.AssertNotCalled(t, "SignatureStatus", ctx, mock.Anything)
}

func TestSubmitSequence_StrictlySequentialAbort(t *testing.T) {
	// A 3-payload sequence whose 2nd payload permanently fails must
	// confirm exactly one payload, report failed index 1 and never
	// broadcast the 3rd
	ctx := context.Background()
	gateway := new(MockNetworkGateway)
	svc, _ := newTestService(gateway)

	tx0, tx1, tx2 := txWithSig(1), txWithSig(2), txWithSig(3)
	sig0, sig1 := sigWithByte(1), sigWithByte(2)

	gateway.On("Submit", ctx, tx0).Return(sig0, nil)
	gateway.On("SignatureStatus", ctx, sig0).Return(domain.LandingConfirmed, nil)
	gateway.On("Submit", ctx, tx1).Return(sig1, nil)
	gateway.On("SignatureStatus", ctx, sig1).Return(domain.LandingRejected, nil)

	result, err := svc.SubmitSequence(ctx, []*solana.Transaction{tx0, tx1, tx2})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1, result.FailedIndex)
	assert.Equal(t, []solana.Signature{sig0}, result.Confirmed)
	gateway.AssertNotCalled(t, "Submit", ctx, tx2)
}

func TestSubmitSequence_AllConfirm(t *testing.T) {
	ctx := context.Background()
	gateway := new(MockNetworkGateway)
	svc, _ := newTestService(gateway)

	txs := []*solana.Transaction{txWithSig(1), txWithSig(2)}
	for i, tx := range txs {
		sig := sigWithByte(byte(i + 1))
		gateway.On("Submit", ctx, tx).Return(sig, nil)
		gateway.On("SignatureStatus", ctx, sig).Return(domain.LandingConfirmed, nil)
	}

	result, err := svc.SubmitSequence(ctx, txs)

	require.NoError(t, err)
	assert.Equal(t, -1, result.FailedIndex)
	assert.Len(t, result.Confirmed, 2)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 150*time.Millisecond, nextBackoff(100*time.Millisecond, time.Second))
	assert.Equal(t, time.Second, nextBackoff(900*time.Millisecond, time.Second))
}
