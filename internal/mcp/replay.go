// ABOUTME: TTL cache of tools/call results keyed by MCP session and JSON-RPC id.
// ABOUTME: A redelivered request within the TTL gets the stored result instead of re-running.

package mcp

import (
	"encoding/json"
	"time"

	"github.com/patrickmn/go-cache"
)

// replayCache is disabled when built with a zero TTL.
type replayCache struct {
	c *cache.Cache
}

func newReplayCache(ttl time.Duration) *replayCache {
	if ttl <= 0 {
		return &replayCache{}
	}
	return &replayCache{c: cache.New(ttl, 2*ttl)}
}

func replayKey(connID string, id json.RawMessage) string {
	return connID + "|" + string(id)
}

func (r *replayCache) get(connID string, id json.RawMessage) (*MCPCallToolResult, bool) {
	if r.c == nil {
		return nil, false
	}
	v, ok := r.c.Get(replayKey(connID, id))
	if !ok {
		return nil, false
	}
	res, ok := v.(*MCPCallToolResult)
	return res, ok
}

func (r *replayCache) put(connID string, id json.RawMessage, res *MCPCallToolResult) {
	if r.c == nil {
		return
	}
	r.c.Set(replayKey(connID, id), res, cache.DefaultExpiration)
}

func (r *replayCache) len() int {
	if r.c == nil {
		return 0
	}
	return r.c.ItemCount()
}
