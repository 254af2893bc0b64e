package odos_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/odos"
)

func TestQuotePostsAndDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sor/quote/v2", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pathId":"abc123","outAmounts":["500000000000000000"],"priceImpact":0.05,"gasEstimate":150000}`))
	}))
	defer server.Close()

	client := odos.New(server.Client(), nil).WithBaseURL(server.URL)
	resp, err := client.Quote(context.Background(), odos.QuoteRequest{
		ChainID:         1,
		InputToken:      "0xinput",
		InputAmount:     "1000000",
		OutputToken:     "0xoutput",
		UserAddr:        "0xuser",
		SlippagePercent: 0.5,
	})
	require.NoError(t, err)
	require.Equal(t, "abc123", resp.PathID)
	require.Equal(t, []string{"500000000000000000"}, resp.OutAmounts)
}

func TestAssemblePostsPathAndReturnsTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sor/assemble", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transaction":{"to":"0xrouter","data":"0xdead","value":"0","gas":210000}}`))
	}))
	defer server.Close()

	client := odos.New(server.Client(), nil).WithBaseURL(server.URL)
	resp, err := client.Assemble(context.Background(), odos.AssembleRequest{PathID: "abc123", UserAddr: "0xuser"})
	require.NoError(t, err)
	require.Equal(t, "0xrouter", resp.Transaction.To)
	require.EqualValues(t, 210000, resp.Transaction.GasLimit)
}

func TestNonOKStatusSurfacesAsToolExecutionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream error"))
	}))
	defer server.Close()

	client := odos.New(server.Client(), nil).WithBaseURL(server.URL)
	_, err := client.Quote(context.Background(), odos.QuoteRequest{ChainID: 1})
	require.Error(t, err)
}
