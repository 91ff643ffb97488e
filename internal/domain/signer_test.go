package domain

import (
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFundingAccount_PublicKey(t *testing.T) {
	wallet := solana.NewWallet()
	account := NewFundingAccount(wallet.PrivateKey.String())

	pub, err := account.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, wallet.PublicKey(), pub)
}

func TestFundingAccount_InvalidKeyMaterial(t *testing.T) {
	account := NewFundingAccount("not-base58!!!")

	_, err := account.PublicKey()
	assert.Error(t, err)

	// The decode error is sticky across calls
	_, err = account.PrivateKey()
	assert.Error(t, err)
}

func TestFundingAccount_ConcurrentLoadsCoalesce(t *testing.T) {
	wallet := solana.NewWallet()
	account := NewFundingAccount(wallet.PrivateKey.String())

	var wg sync.WaitGroup
	results := make([]solana.PublicKey, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pub, err := account.PublicKey()
			assert.NoError(t, err)
			results[i] = pub
		}(i)
	}
	wg.Wait()

	for _, pub := range results {
		assert.Equal(t, wallet.PublicKey(), pub)
	}
}
