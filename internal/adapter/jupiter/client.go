package jupiter

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

// Client is a thin wrapper around the aggregator's quote and swap-build
// HTTP API. It implements domain.QuoteOracle.
type Client struct {
	baseURL     string
	slippageBps int
	http        *http.Client
}

// NewClient creates a quote oracle client for the given API base URL
func NewClient(baseURL string, slippageBps int) *Client {
	return &Client{
		baseURL:     baseURL,
		slippageBps: slippageBps,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

type quoteResponse struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

// Quote prices a swap through the aggregator. The raw response body is kept
// as the opaque route payload for the subsequent build call.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (*domain.SwapQuote, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(c.slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}

	outAmount, err := strconv.ParseUint(parsed.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote out amount: %w", err)
	}

	return &domain.SwapQuote{
		InputMint:  parsed.InputMint,
		OutputMint: parsed.OutputMint,
		InAmount:   amount,
		OutAmount:  outAmount,
		Route:      body,
	}, nil
}

type swapRequest struct {
	QuoteResponse json.RawMessage `json:"quoteResponse"`
	UserPublicKey string          `json:"userPublicKey"`
	WrapUnwrapSOL bool            `json:"wrapAndUnwrapSol"`
}

// BuildSwap asks the aggregator for a signable transaction executing quote.
func (c *Client) BuildSwap(ctx context.Context, quote *domain.SwapQuote, payer solana.PublicKey) (*solana.Transaction, error) {
	payload, err := json.Marshal(swapRequest{
		QuoteResponse: quote.Route,
		UserPublicKey: payer.String(),
		WrapUnwrapSOL: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("swap build request failed: %w", err)
	}

	var parsed struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode swap response: %w", err)
	}

	return decodeTransaction(parsed.SwapTransaction)
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

var _ domain.QuoteOracle = (*Client)(nil)
