package graphql_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/graphql"
	"github.com/jojoalpha/agent-harness/internal/harnesserr"
)

func TestQueryDecodesData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"pools":[{"id":"0xabc"}]}}`))
	}))
	defer server.Close()

	client := graphql.New(server.URL, server.Client(), nil)
	var out struct {
		Pools []struct {
			ID string `json:"id"`
		} `json:"pools"`
	}
	err := client.Query(context.Background(), graphql.Request{Query: "{ pools { id } }"}, &out)
	require.NoError(t, err)
	require.Len(t, out.Pools, 1)
	require.Equal(t, "0xabc", out.Pools[0].ID)
}

func TestQuerySurfacesGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"field not found"}]}`))
	}))
	defer server.Close()

	client := graphql.New(server.URL, server.Client(), nil)
	err := client.Query(context.Background(), graphql.Request{Query: "{ bogus }"}, &json.RawMessage{})
	require.Error(t, err)
	require.Equal(t, harnesserr.ToolExecution, harnesserr.KindOf(err))
	require.Contains(t, err.Error(), "field not found")
}

func TestQueryRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := graphql.New(server.URL, server.Client(), nil)
	err := client.Query(context.Background(), graphql.Request{Query: "{ pools }"}, nil)
	require.Error(t, err)
}
