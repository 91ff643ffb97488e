package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStepOrder_TotalOrder(t *testing.T) {
	// Every step in the fixed order must have a unique, increasing index
	for i, step := range StepOrder {
		assert.Equal(t, i, step.Index())
	}

	assert.True(t, StepCheckPool.Before(StepSwapPrimary))
	assert.True(t, StepSwapPrimary.Before(StepDone))
	assert.False(t, StepLock.Before(StepLock))
	assert.False(t, StepDone.Before(StepCheckPool))
}

func TestStepOrder_Next(t *testing.T) {
	assert.Equal(t, StepSwapPrimary, StepCheckPool.Next())
	assert.Equal(t, StepSwapSecondary, StepSwapPrimary.Next())
	assert.Equal(t, StepCreateOrJoinPool, StepSwapSecondary.Next())
	assert.Equal(t, StepLock, StepCreateOrJoinPool.Next())
	assert.Equal(t, StepSettle, StepLock.Next())
	assert.Equal(t, StepDone, StepSettle.Next())

	// Terminal step has no successor
	assert.Equal(t, StepDone, StepDone.Next())
}

func TestStep_UnknownToken(t *testing.T) {
	unknown := Step("SWAP_TERTIARY")
	assert.Equal(t, -1, unknown.Index())
	assert.False(t, unknown.Before(StepDone))
	assert.False(t, StepCheckPool.Before(unknown))
}

func TestTransferRecord_Validate(t *testing.T) {
	valid := &TransferRecord{
		ID:                uuid.New(),
		IncomingSignature: "sig-1",
		SenderAddress:     "sender",
		AmountLamports:    1_000_000,
		Status:            StatusProcessing,
		CurrentStep:       StepCheckPool,
		CreatedAt:         time.Now(),
	}
	assert.NoError(t, valid.Validate())

	missingSig := *valid
	missingSig.IncomingSignature = ""
	assert.Error(t, missingSig.Validate())

	zeroAmount := *valid
	zeroAmount.AmountLamports = 0
	assert.Error(t, zeroAmount.Validate())

	badStep := *valid
	badStep.CurrentStep = Step("NOPE")
	assert.ErrorIs(t, badStep.Validate(), ErrUnknownStep)

	badStatus := *valid
	badStatus.Status = Status("ARCHIVED")
	assert.Error(t, badStatus.Validate())
}

func TestTransferRecord_Validate_CompletedConsistency(t *testing.T) {
	now := time.Now()
	completed := &TransferRecord{
		ID:                uuid.New(),
		IncomingSignature: "sig-2",
		AmountLamports:    1,
		Status:            StatusCompleted,
		CurrentStep:       StepDone,
		CreatedAt:         now,
		CompletedAt:       &now,
	}
	assert.NoError(t, completed.Validate())

	// Completed without a completion timestamp is inconsistent
	noTimestamp := *completed
	noTimestamp.CompletedAt = nil
	assert.Error(t, noTimestamp.Validate())

	// Completed but not at the terminal step is inconsistent
	wrongStep := *completed
	wrongStep.CurrentStep = StepSettle
	assert.Error(t, wrongStep.Validate())
}
