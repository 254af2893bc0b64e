// Package gateway implements the Graph Gateway (C6.G): a caching wrapper in
// front of internal/graphql's subgraph client. Adapted from
// original_source/src/tools/graph_gateway.rs's BasicGraphGateway
// (in-memory TTL cache over a GraphGateway trait), with an optional
// github.com/redis/go-redis/v9-backed tier for a durable/shared cache
// standing in for multi-process deployments.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jojoalpha/agent-harness/internal/graphql"
	"github.com/jojoalpha/agent-harness/internal/harnesserr"
)

const defaultCacheTTL = 60 * time.Second

// Result wraps a query's data with gateway-observable metadata.
type Result struct {
	Data      json.RawMessage
	Cached    bool
	LatencyMs int64
}

// cacheEntry is one in-process cache slot.
type cacheEntry struct {
	data      json.RawMessage
	expiresAt time.Time
}

// Gateway routes subgraph queries through an in-process TTL cache, with an
// optional Redis tier for cross-process sharing. Cache keys combine the
// subgraph ID with a hash of the query+variables.
type Gateway struct {
	client *graphql.Client
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	redis *redis.Client
}

// New constructs a Gateway with the default 60s TTL and no Redis tier.
func New(client *graphql.Client) *Gateway {
	return &Gateway{client: client, ttl: defaultCacheTTL, cache: map[string]cacheEntry{}}
}

// WithTTL overrides the cache TTL.
func (g *Gateway) WithTTL(ttl time.Duration) *Gateway {
	g.ttl = ttl
	return g
}

// WithRedis attaches a Redis tier consulted after (and populated alongside)
// the in-process cache.
func (g *Gateway) WithRedis(r *redis.Client) *Gateway {
	g.redis = r
	return g
}

func cacheKey(subgraphID, query string, variables map[string]any) (string, error) {
	varsJSON, err := json.Marshal(variables)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", subgraphID, query, string(varsJSON))))
	return hex.EncodeToString(sum[:]), nil
}

// Query executes req against subgraphID, serving from cache when a fresh
// entry exists. forceFresh bypasses both cache tiers.
func (g *Gateway) Query(ctx context.Context, subgraphID string, req graphql.Request, forceFresh bool) (Result, error) {
	start := time.Now()

	key, err := cacheKey(subgraphID, req.Query, req.Variables)
	if err != nil {
		return Result{}, harnesserr.NewWithCause(harnesserr.InvalidArgument, "failed to build gateway cache key", err)
	}

	if !forceFresh {
		if data, ok := g.lookupLocal(key); ok {
			return Result{Data: data, Cached: true, LatencyMs: time.Since(start).Milliseconds()}, nil
		}
		if g.redis != nil {
			if data, ok := g.lookupRedis(ctx, key); ok {
				g.storeLocal(key, data)
				return Result{Data: data, Cached: true, LatencyMs: time.Since(start).Milliseconds()}, nil
			}
		}
	}

	var data json.RawMessage
	if err := g.client.Query(ctx, req, &data); err != nil {
		return Result{}, err
	}

	g.storeLocal(key, data)
	if g.redis != nil {
		g.storeRedis(ctx, key, data)
	}

	return Result{Data: data, Cached: false, LatencyMs: time.Since(start).Milliseconds()}, nil
}

func (g *Gateway) lookupLocal(key string) (json.RawMessage, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			delete(g.cache, key)
		}
		return nil, false
	}
	return entry.data, true
}

func (g *Gateway) storeLocal(key string, data json.RawMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	for k, entry := range g.cache {
		if now.After(entry.expiresAt) {
			delete(g.cache, k)
		}
	}
	g.cache[key] = cacheEntry{data: data, expiresAt: now.Add(g.ttl)}
}

func (g *Gateway) lookupRedis(ctx context.Context, key string) (json.RawMessage, bool) {
	val, err := g.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return json.RawMessage(val), true
}

func (g *Gateway) storeRedis(ctx context.Context, key string, data json.RawMessage) {
	_ = g.redis.Set(ctx, key, []byte(data), g.ttl).Err()
}
