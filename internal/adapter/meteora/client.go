package meteora

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
)

// Client is a thin wrapper around the pool program's transaction-building
// service. It implements domain.PoolBuilder; all transactions come back
// unsigned and are signed by the funding account.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a pool builder client for the given API base URL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FindPool checks whether a pool for the asset pair already exists.
// The existence check is read-only and safe to repeat.
func (c *Client) FindPool(ctx context.Context, mintA, mintB string) (*domain.PoolInfo, error) {
	params := url.Values{}
	params.Set("mintA", mintA)
	params.Set("mintB", mintB)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools/find?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build pool lookup request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("pool lookup failed: %w", err)
	}

	var parsed struct {
		Exists  bool   `json:"exists"`
		Address string `json:"address"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode pool lookup response: %w", err)
	}

	return &domain.PoolInfo{Exists: parsed.Exists, Address: parsed.Address}, nil
}

// BuildCreatePool builds the single atomic transaction that creates the
// pool, deposits initial liquidity and locks the fresh position.
func (c *Client) BuildCreatePool(ctx context.Context, params domain.CreatePoolParams) (*domain.CreatePoolBuild, error) {
	payload := map[string]string{
		"payer":        params.Payer.String(),
		"positionMint": params.PositionMint.String(),
		"mintA":        params.MintA,
		"mintB":        params.MintB,
		"amountA":      strconv.FormatUint(params.AmountA, 10),
		"amountB":      strconv.FormatUint(params.AmountB, 10),
		"lock":         "permanent",
	}

	body, err := c.post(ctx, "/pools/create", payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Transaction string `json:"transaction"`
		PoolAddress string `json:"poolAddress"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode create-pool response: %w", err)
	}

	tx, err := decodeTransaction(parsed.Transaction)
	if err != nil {
		return nil, err
	}

	return &domain.CreatePoolBuild{Transaction: tx, PoolAddress: parsed.PoolAddress}, nil
}

// BuildJoinPool builds the dependent transaction sequence for an existing
// pool: create-or-reuse position, then deposit.
func (c *Client) BuildJoinPool(ctx context.Context, params domain.JoinPoolParams) ([]*solana.Transaction, error) {
	payload := map[string]string{
		"payer":        params.Payer.String(),
		"positionMint": params.PositionMint.String(),
		"pool":         params.PoolAddress,
		"amountA":      strconv.FormatUint(params.AmountA, 10),
		"amountB":      strconv.FormatUint(params.AmountB, 10),
	}

	body, err := c.post(ctx, "/pools/join", payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Transactions []string `json:"transactions"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode join-pool response: %w", err)
	}

	txs := make([]*solana.Transaction, 0, len(parsed.Transactions))
	for i, encoded := range parsed.Transactions {
		tx, err := decodeTransaction(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode join-pool transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

// BuildLock builds the transaction permanently locking a position.
func (c *Client) BuildLock(ctx context.Context, owner solana.PublicKey, positionMint solana.PublicKey) (*solana.Transaction, error) {
	payload := map[string]string{
		"owner":        owner.String(),
		"positionMint": positionMint.String(),
		"lock":         "permanent",
	}

	body, err := c.post(ctx, "/positions/lock", payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Transaction string `json:"transaction"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode lock response: %w", err)
	}

	return decodeTransaction(parsed.Transaction)
}

func (c *Client) post(ctx context.Context, path string, payload map[string]string) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("pool builder request failed: %w", err)
	}
	return body, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// decodeTransaction deserializes a base64-encoded wire transaction
func decodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}
	return tx, nil
}

var _ domain.PoolBuilder = (*Client)(nil)
