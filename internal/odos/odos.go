// Package odos is a thin HTTP client for the Odos DEX aggregator's public
// Smart Order Routing API (api.odos.xyz), standing in for the Rust
// original's odos-sdk crate. Adapted from
// original_source/src/tools/odos.rs's SwapBuilder usage (chain + from_token
// + to_token + slippage -> quote()/build_transaction()), translated into
// Odos's two-call HTTP contract: POST /sor/quote/v2 then POST
// /sor/assemble. Rate limiting follows the same golang.org/x/time/rate
// idiom as internal/graphql.
package odos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/jojoalpha/agent-harness/internal/harnesserr"
)

const defaultBaseURL = "https://api.odos.xyz"

// Client issues quote/assemble requests against Odos's SOR API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New constructs a Client against the public Odos API. limiter may be nil.
func New(httpClient *http.Client, limiter *rate.Limiter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: defaultBaseURL, httpClient: httpClient, limiter: limiter}
}

// WithBaseURL overrides the API base URL, used in tests against an
// httptest server.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// QuoteRequest is a single-input, single-output swap quote request.
type QuoteRequest struct {
	ChainID              uint64
	InputToken           string
	InputAmount          string
	OutputToken          string
	UserAddr             string
	SlippagePercent      float64
}

// QuoteResponse is Odos's /sor/quote/v2 result, trimmed to the fields the
// tool surface needs.
type QuoteResponse struct {
	PathID             string  `json:"pathId"`
	OutAmounts         []string `json:"outAmounts"`
	PriceImpact        float64 `json:"priceImpact"`
	GasEstimate        float64 `json:"gasEstimate"`
}

type quoteWireTokenAmount struct {
	TokenAddress string `json:"tokenAddress"`
	Amount       string `json:"amount"`
}

type quoteWireRequest struct {
	ChainID              uint64                 `json:"chainId"`
	InputTokens          []quoteWireTokenAmount `json:"inputTokens"`
	OutputTokens         []quoteWireOutputToken `json:"outputTokens"`
	UserAddr             string                 `json:"userAddr"`
	SlippageLimitPercent float64                `json:"slippageLimitPercent"`
}

type quoteWireOutputToken struct {
	TokenAddress string `json:"tokenAddress"`
	Proportion   int    `json:"proportion"`
}

// Quote calls /sor/quote/v2 for a single input -> single output swap.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (QuoteResponse, error) {
	wire := quoteWireRequest{
		ChainID:              req.ChainID,
		InputTokens:          []quoteWireTokenAmount{{TokenAddress: req.InputToken, Amount: req.InputAmount}},
		OutputTokens:         []quoteWireOutputToken{{TokenAddress: req.OutputToken, Proportion: 1}},
		UserAddr:             req.UserAddr,
		SlippageLimitPercent: req.SlippagePercent,
	}

	var resp QuoteResponse
	if err := c.post(ctx, "/sor/quote/v2", wire, &resp); err != nil {
		return QuoteResponse{}, err
	}
	return resp, nil
}

// AssembleRequest builds a signable transaction from a previously obtained
// quote's path ID.
type AssembleRequest struct {
	PathID   string
	UserAddr string
}

// Transaction is the unsigned transaction envelope Odos returns, never
// signed by this package.
type Transaction struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit uint64 `json:"gas"`
}

// AssembleResponse is Odos's /sor/assemble result.
type AssembleResponse struct {
	Transaction Transaction `json:"transaction"`
}

type assembleWireRequest struct {
	UserAddr string `json:"userAddr"`
	PathID   string `json:"pathId"`
}

// Assemble calls /sor/assemble to turn a quoted path into an unsigned
// transaction. Never signs; signing happens downstream of interceptor
// approval in internal/wallet.
func (c *Client) Assemble(ctx context.Context, req AssembleRequest) (AssembleResponse, error) {
	wire := assembleWireRequest{UserAddr: req.UserAddr, PathID: req.PathID}

	var resp AssembleResponse
	if err := c.post(ctx, "/sor/assemble", wire, &resp); err != nil {
		return AssembleResponse{}, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return harnesserr.NewWithCause(harnesserr.ToolExecution, "rate limiter wait failed", err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return harnesserr.NewWithCause(harnesserr.InvalidArgument, "failed to marshal Odos request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to build Odos request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return harnesserr.NewWithCause(harnesserr.ToolExecution, "Odos request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to read Odos response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return harnesserr.New(harnesserr.ToolExecution, fmt.Sprintf("Odos %s returned status %d: %s", path, resp.StatusCode, string(raw)))
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to decode Odos response", err)
	}
	return nil
}
