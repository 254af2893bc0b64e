// Package graphql implements a thin GraphQL-over-HTTP client used by the
// subgraph query tool (T1). Adapted from original_source/src/graphql/mod.rs
// (placeholder for generated types; raw query strings used instead, per its
// own comment) and the query_direct shape in
// original_source/src/tools/the_graph.rs. Rate limiting follows the
// teacher's features/model/middleware/ratelimit.go idiom.
package graphql

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

// Request is a GraphQL query plus its variables.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphQLError mirrors a single entry of a GraphQL response's errors array.
type graphQLError struct {
	Message string `json:"message"`
}

// response is the standard {data, errors?} envelope.
type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Client issues GraphQL queries over HTTP against a fixed endpoint, rate
// limited to avoid overwhelming a subgraph's indexer.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New constructs a Client for endpoint. limiter may be nil, in which case
// requests are unthrottled.
func New(endpoint string, httpClient *http.Client, limiter *rate.Limiter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient, limiter: limiter}
}

// Query executes req against the Client's own endpoint and decodes the data
// field into result. GraphQL errors in the response's errors[] surface as
// harnesserr.ToolExecution.
func (c *Client) Query(ctx context.Context, req Request, result any) error {
	return c.QueryAt(ctx, c.endpoint, req, result)
}

// QueryAt executes req against endpoint instead of the Client's own
// construction-time endpoint, reusing its http client and rate limiter. This
// is what lets a single Client be shared across a tool that resolves a
// different subgraph endpoint per (network, protocol) pair rather than
// being pinned to one network.
func (c *Client) QueryAt(ctx context.Context, endpoint string, req Request, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return harnesserr.NewWithCause(harnesserr.ToolExecution, "rate limiter wait failed", err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return harnesserr.NewWithCause(harnesserr.InvalidArgument, "failed to marshal GraphQL request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to build GraphQL request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return harnesserr.NewWithCause(harnesserr.ToolExecution, "GraphQL request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to read GraphQL response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return harnesserr.New(harnesserr.ToolExecution, fmt.Sprintf("GraphQL endpoint returned status %d: %s", resp.StatusCode, string(raw)))
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to parse GraphQL response", err)
	}
	if len(parsed.Errors) > 0 {
		messages := make([]string, len(parsed.Errors))
		for i, e := range parsed.Errors {
			messages[i] = e.Message
		}
		return harnesserr.New(harnesserr.ToolExecution, fmt.Sprintf("GraphQL errors: %v", messages))
	}
	if len(parsed.Data) == 0 {
		return harnesserr.New(harnesserr.ToolExecution, "no data in GraphQL response")
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(parsed.Data, result); err != nil {
		return harnesserr.NewWithCause(harnesserr.ToolExecution, "failed to decode GraphQL data", err)
	}
	return nil
}
