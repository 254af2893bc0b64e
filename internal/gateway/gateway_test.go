package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/gateway"
	"github.com/jojoalpha/agent-harness/internal/graphql"
)

func TestQueryCachesSecondCallWithSameKey(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer server.Close()

	client := graphql.New(server.URL, server.Client(), nil)
	g := gateway.New(client)

	req := graphql.Request{Query: "{ pools }", Variables: map[string]any{"a": 1}}

	first, err := g.Query(context.Background(), "subgraph-1", req, false)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := g.Query(context.Background(), "subgraph-1", req, false)
	require.NoError(t, err)
	require.True(t, second.Cached)

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestForceFreshBypassesCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer server.Close()

	client := graphql.New(server.URL, server.Client(), nil)
	g := gateway.New(client)
	req := graphql.Request{Query: "{ pools }"}

	_, err := g.Query(context.Background(), "subgraph-1", req, false)
	require.NoError(t, err)
	_, err = g.Query(context.Background(), "subgraph-1", req, true)
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDifferentSubgraphIDsDoNotShareCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer server.Close()

	client := graphql.New(server.URL, server.Client(), nil)
	g := gateway.New(client)
	req := graphql.Request{Query: "{ pools }"}

	_, err := g.Query(context.Background(), "subgraph-1", req, false)
	require.NoError(t, err)
	_, err = g.Query(context.Background(), "subgraph-2", req, false)
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
