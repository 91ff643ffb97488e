package domain

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// FundingAccount is the wallet that receives inbound transfers and pays for
// every workflow transaction. It is constructed once at start-up and
// injected into the components that need to sign; concurrent loads of the
// same account coalesce into a single decode.
type FundingAccount struct {
	once    sync.Once
	raw     string
	key     solana.PrivateKey
	loadErr error
}

// NewFundingAccount prepares a funding account from base58-encoded private
// key material. The key is not decoded until first use.
func NewFundingAccount(base58Key string) *FundingAccount {
	return &FundingAccount{raw: base58Key}
}

func (f *FundingAccount) load() {
	key, err := solana.PrivateKeyFromBase58(f.raw)
	if err != nil {
		f.loadErr = fmt.Errorf("failed to decode funding key: %w", err)
		return
	}
	f.key = key
	f.raw = ""
}

// PrivateKey returns the decoded signing key.
func (f *FundingAccount) PrivateKey() (solana.PrivateKey, error) {
	f.once.Do(f.load)
	return f.key, f.loadErr
}

// PublicKey returns the wallet address of the funding account.
func (f *FundingAccount) PublicKey() (solana.PublicKey, error) {
	f.once.Do(f.load)
	if f.loadErr != nil {
		return solana.PublicKey{}, f.loadErr
	}
	return f.key.PublicKey(), nil
}

// Sign signs a transaction with the funding key. Transactions that require
// additional signers (e.g. a fresh position keypair) pass them in extra.
func (f *FundingAccount) Sign(tx *solana.Transaction, extra ...solana.PrivateKey) error {
	key, err := f.PrivateKey()
	if err != nil {
		return err
	}
	signers := make(map[solana.PublicKey]solana.PrivateKey, len(extra)+1)
	signers[key.PublicKey()] = key
	for _, k := range extra {
		signers[k.PublicKey()] = k
	}
	_, err = tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if k, ok := signers[pub]; ok {
			return &k
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}
