// ABOUTME: Tests for the MCP server over HTTP and stdio.
// ABOUTME: Validates sessions, auth, tool result shapes, isError conversion and replay.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389/menu-gateway/internal/ordering"
	"github.com/2389/menu-gateway/internal/session"
	"github.com/2389/menu-gateway/internal/tools"
	"github.com/2389/menu-gateway/internal/widgets"
)

// mockTokenVerifier implements auth.TokenVerifier for testing.
type mockTokenVerifier struct {
	principalID string
	err         error
}

func (m *mockTokenVerifier) Verify(token string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.principalID, nil
}

// stubExecutor records calls and returns a canned result or error.
type stubExecutor struct {
	mu     sync.Mutex
	calls  int
	stores []*session.Store
	result *ordering.Result
	err    error
}

func (e *stubExecutor) Execute(_ context.Context, store *session.Store, _ string, _ json.RawMessage) (*ordering.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.stores = append(e.stores, store)
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func (e *stubExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	server   *Server
	mux      *http.ServeMux
	executor *stubExecutor
	sessions *session.Manager
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()

	registry := tools.NewRegistry(discardLogger())
	if err := registry.Register(ordering.Catalog()...); err != nil {
		t.Fatalf("failed to register catalog: %v", err)
	}
	resolver, err := widgets.Load("", discardLogger())
	if err != nil {
		t.Fatalf("failed to load widgets: %v", err)
	}
	exec := &stubExecutor{result: &ordering.Result{
		Text:           "Found 1 menu item",
		Structured:     map[string]any{"count": 1},
		OutputTemplate: widgets.SearchResults.URI(),
	}}
	sessions := session.NewManager(session.ModeShared, nil, discardLogger())

	cfg := Config{
		Registry:  registry,
		Executor:  exec,
		Sessions:  sessions,
		Widgets:   resolver,
		Logger:    discardLogger(),
		ReplayTTL: time.Minute,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	return &testServer{server: server, mux: mux, executor: exec, sessions: cfg.Sessions}
}

func (ts *testServer) post(t *testing.T, sessionID, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) initialize(t *testing.T, headers ...string) string {
	t.Helper()
	rr := ts.post(t, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`, headers...)
	if rr.Code != http.StatusOK {
		t.Fatalf("initialize: expected 200, got %d", rr.Code)
	}
	id := rr.Header().Get("Mcp-Session-Id")
	if id == "" {
		t.Fatal("initialize: missing Mcp-Session-Id header")
	}
	return id
}

type rpcResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *JSONRPCError   `json:"error"`
}

func decodeRPC(t *testing.T, body []byte) rpcResponse {
	t.Helper()
	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", body, err)
	}
	return resp
}

func decodeCall(t *testing.T, rr *httptest.ResponseRecorder) MCPCallToolResult {
	t.Helper()
	resp := decodeRPC(t, rr.Body.Bytes())
	if resp.Error != nil {
		t.Fatalf("unexpected JSON-RPC error: %+v", resp.Error)
	}
	var result MCPCallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to decode call result: %v", err)
	}
	return result
}

func TestNewServer(t *testing.T) {
	t.Run("requires collaborators", func(t *testing.T) {
		if _, err := NewServer(Config{}); err == nil {
			t.Error("expected error for empty config")
		}
	})

	t.Run("requires verifier when auth required", func(t *testing.T) {
		ts := newTestServer(t, nil)
		_, err := NewServer(Config{
			Registry:    ts.server.registry,
			Executor:    ts.executor,
			Sessions:    ts.sessions,
			Widgets:     ts.server.widgets,
			RequireAuth: true,
		})
		if err == nil {
			t.Error("expected error when auth required without verifier")
		}
	})
}

func TestInitialize(t *testing.T) {
	t.Run("creates session and echoes supported version", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rr := ts.post(t, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`)

		if rr.Header().Get("Mcp-Session-Id") == "" {
			t.Fatal("expected Mcp-Session-Id header")
		}
		var result struct {
			ProtocolVersion string                     `json:"protocolVersion"`
			Capabilities    map[string]json.RawMessage `json:"capabilities"`
			ServerInfo      struct{ Name string }      `json:"serverInfo"`
		}
		if err := json.Unmarshal(decodeRPC(t, rr.Body.Bytes()).Result, &result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if result.ProtocolVersion != "2025-06-18" {
			t.Errorf("expected echoed version, got %q", result.ProtocolVersion)
		}
		if _, ok := result.Capabilities["tools"]; !ok {
			t.Error("expected tools capability")
		}
		if _, ok := result.Capabilities["resources"]; !ok {
			t.Error("expected resources capability")
		}
		if result.ServerInfo.Name != "menu-gateway" {
			t.Errorf("unexpected server name %q", result.ServerInfo.Name)
		}
		if ts.server.ActiveSessions() != 1 {
			t.Errorf("expected 1 active session, got %d", ts.server.ActiveSessions())
		}
	})

	t.Run("falls back to latest version", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rr := ts.post(t, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"1999-01-01"}}`)
		if !strings.Contains(rr.Body.String(), latestProtocolVersion) {
			t.Errorf("expected latest version in %s", rr.Body.String())
		}
	})

	t.Run("rejects missing token when auth required", func(t *testing.T) {
		ts := newTestServer(t, func(c *Config) {
			c.RequireAuth = true
			c.TokenVerifier = &mockTokenVerifier{principalID: "assistant"}
		})
		rr := ts.post(t, "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
		resp := decodeRPC(t, rr.Body.Bytes())
		if resp.Error == nil || resp.Error.Code != JSONRPCInvalidRequest {
			t.Fatalf("expected invalid request error, got %+v", resp.Error)
		}
		if rr.Header().Get("Mcp-Session-Id") != "" {
			t.Error("no session should be created")
		}
	})

	t.Run("rejects invalid token even when optional", func(t *testing.T) {
		ts := newTestServer(t, func(c *Config) {
			c.TokenVerifier = &mockTokenVerifier{err: errors.New("bad signature")}
		})
		rr := ts.post(t, "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, "Authorization", "Bearer nope")
		resp := decodeRPC(t, rr.Body.Bytes())
		if resp.Error == nil {
			t.Fatal("expected error for invalid token")
		}
	})

	t.Run("accepts valid token", func(t *testing.T) {
		ts := newTestServer(t, func(c *Config) {
			c.RequireAuth = true
			c.TokenVerifier = &mockTokenVerifier{principalID: "assistant"}
		})
		ts.initialize(t, "Authorization", "Bearer good")
	})
}

func TestPostValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name      string
		sessionID string
		body      string
		headers   []string
		wantCode  int
		wantRPC   int
	}{
		{"missing session", "", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, nil, http.StatusBadRequest, 0},
		{"unknown session", "nope", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, nil, http.StatusNotFound, 0},
		{"invalid JSON", "", `{not json`, nil, http.StatusOK, JSONRPCParseError},
		{"wrong version", "", `{"jsonrpc":"1.0","id":2,"method":"ping"}`, nil, http.StatusOK, JSONRPCInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.post(t, tt.sessionID, tt.body, tt.headers...)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rr.Code)
			}
			if tt.wantRPC != 0 {
				resp := decodeRPC(t, rr.Body.Bytes())
				if resp.Error == nil || resp.Error.Code != tt.wantRPC {
					t.Errorf("expected RPC error %d, got %+v", tt.wantRPC, resp.Error)
				}
			}
		})
	}

	t.Run("unsupported protocol header", func(t *testing.T) {
		sid := ts.initialize(t)
		rr := ts.post(t, sid, `{"jsonrpc":"2.0","id":2,"method":"ping"}`, "Mcp-Protocol-Version", "1.0")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("notification accepted", func(t *testing.T) {
		sid := ts.initialize(t)
		rr := ts.post(t, sid, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
		if rr.Code != http.StatusAccepted {
			t.Errorf("expected 202, got %d", rr.Code)
		}
		if rr.Body.Len() != 0 {
			t.Errorf("expected empty body, got %q", rr.Body.String())
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		sid := ts.initialize(t)
		resp := decodeRPC(t, ts.post(t, sid, `{"jsonrpc":"2.0","id":3,"method":"prompts/list"}`).Body.Bytes())
		if resp.Error == nil || resp.Error.Code != JSONRPCMethodNotFound {
			t.Errorf("expected method not found, got %+v", resp.Error)
		}
	})

	t.Run("GET not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		rr := httptest.NewRecorder()
		ts.mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rr.Code)
		}
	})
}

func TestToolsList(t *testing.T) {
	ts := newTestServer(t, nil)
	sid := ts.initialize(t)

	rr := ts.post(t, sid, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	var result MCPListToolsResult
	if err := json.Unmarshal(decodeRPC(t, rr.Body.Bytes()).Result, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(result.Tools) != len(ordering.Catalog()) {
		t.Fatalf("expected %d tools, got %d", len(ordering.Catalog()), len(result.Tools))
	}
	first := result.Tools[0]
	if first.Name != ordering.ToolSearchMenu {
		t.Errorf("expected search_menu first, got %s", first.Name)
	}
	if !json.Valid(first.InputSchema) {
		t.Error("input schema is not valid JSON")
	}
	if first.Meta["openai/outputTemplate"] != widgets.SearchResults.URI() {
		t.Errorf("unexpected output template %v", first.Meta["openai/outputTemplate"])
	}
	if first.Meta["openai/widgetAccessible"] != true {
		t.Error("expected widgetAccessible")
	}
	if _, ok := first.Meta["openai/toolInvocation/invoking"]; !ok {
		t.Error("expected invoking status text")
	}
}

func TestToolsCall(t *testing.T) {
	t.Run("returns content, structured payload and template", func(t *testing.T) {
		ts := newTestServer(t, nil)
		sid := ts.initialize(t)

		rr := ts.post(t, sid, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"search_menu","arguments":{"query":"pizza"}}}`)
		result := decodeCall(t, rr)

		if result.IsError {
			t.Fatalf("unexpected isError: %+v", result)
		}
		if len(result.Content) != 1 || result.Content[0].Type != "text" || result.Content[0].Text != "Found 1 menu item" {
			t.Errorf("unexpected content %+v", result.Content)
		}
		if result.Meta["openai/outputTemplate"] != widgets.SearchResults.URI() {
			t.Errorf("unexpected template %v", result.Meta)
		}
		if sc, ok := result.StructuredContent.(map[string]any); !ok || sc["count"] != float64(1) {
			t.Errorf("unexpected structured content %v", result.StructuredContent)
		}
	})

	t.Run("executor error becomes isError", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.executor.err = &ordering.ValidationError{Tool: "add_to_basket", Message: "menu item 4 is not in the latest search results; valid ids are: 1, 2, 3"}
		sid := ts.initialize(t)

		result := decodeCall(t, ts.post(t, sid, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"add_to_basket","arguments":{"menuItemId":4}}}`))
		if !result.IsError {
			t.Fatal("expected isError")
		}
		if !strings.Contains(result.Content[0].Text, "1, 2, 3") {
			t.Errorf("expected valid ids in message, got %q", result.Content[0].Text)
		}

		// Connection survives
		rr := ts.post(t, sid, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)
		if decodeRPC(t, rr.Body.Bytes()).Error != nil {
			t.Error("ping failed after tool error")
		}
	})

	t.Run("unknown tool becomes isError without executing", func(t *testing.T) {
		ts := newTestServer(t, nil)
		sid := ts.initialize(t)

		result := decodeCall(t, ts.post(t, sid, `{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"order_pizza"}}`))
		if !result.IsError {
			t.Error("expected isError for unknown tool")
		}
		if ts.executor.count() != 0 {
			t.Error("executor should not run for unknown tool")
		}
	})

	t.Run("schema violation becomes isError", func(t *testing.T) {
		ts := newTestServer(t, nil)
		sid := ts.initialize(t)

		result := decodeCall(t, ts.post(t, sid, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"add_to_basket","arguments":{"menuItemId":"four"}}}`))
		if !result.IsError {
			t.Error("expected isError for wrong argument type")
		}
		if ts.executor.count() != 0 {
			t.Error("executor should not run for invalid arguments")
		}
	})

	t.Run("missing tool name is a protocol error", func(t *testing.T) {
		ts := newTestServer(t, nil)
		sid := ts.initialize(t)

		resp := decodeRPC(t, ts.post(t, sid, `{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{}}`).Body.Bytes())
		if resp.Error == nil || resp.Error.Code != JSONRPCInvalidParams {
			t.Errorf("expected invalid params, got %+v", resp.Error)
		}
	})

	t.Run("duplicate request replays cached result", func(t *testing.T) {
		ts := newTestServer(t, nil)
		sid := ts.initialize(t)
		body := `{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"view_basket"}}`

		first := ts.post(t, sid, body).Body.String()
		second := ts.post(t, sid, body).Body.String()

		if ts.executor.count() != 1 {
			t.Errorf("expected 1 execution, got %d", ts.executor.count())
		}
		if first != second {
			t.Errorf("replayed response differs:\n%s\n%s", first, second)
		}
		if ts.server.replay.len() != 1 {
			t.Errorf("expected 1 cached result, got %d", ts.server.replay.len())
		}
	})

	t.Run("replay disabled with zero TTL", func(t *testing.T) {
		ts := newTestServer(t, func(c *Config) { c.ReplayTTL = 0 })
		sid := ts.initialize(t)
		body := `{"jsonrpc":"2.0","id":12,"method":"tools/call","params":{"name":"view_basket"}}`

		ts.post(t, sid, body)
		ts.post(t, sid, body)
		if ts.executor.count() != 2 {
			t.Errorf("expected 2 executions, got %d", ts.executor.count())
		}
	})
}

func TestPerConnectionSessions(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.Sessions = session.NewManager(session.ModePerConnection, nil, discardLogger())
	})
	a := ts.initialize(t)
	b := ts.initialize(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"view_basket"}}`

	ts.post(t, a, body)
	ts.post(t, b, body)

	if len(ts.executor.stores) != 2 || ts.executor.stores[0] == ts.executor.stores[1] {
		t.Fatal("expected distinct stores per MCP session")
	}
	if ts.sessions.Len() != 2 {
		t.Errorf("expected 2 open stores, got %d", ts.sessions.Len())
	}

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set("Mcp-Session-Id", a)
	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if ts.sessions.Len() != 1 {
		t.Errorf("expected store released, %d open", ts.sessions.Len())
	}
}

func TestIdleSessionsExpire(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.Sessions = session.NewManager(session.ModePerConnection, nil, discardLogger())
		c.SessionIdleTTL = 20 * time.Millisecond
	})
	idle := ts.initialize(t)
	ts.post(t, idle, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"view_basket"}}`)
	if ts.sessions.Len() != 1 {
		t.Fatalf("expected 1 open store, got %d", ts.sessions.Len())
	}

	time.Sleep(50 * time.Millisecond)
	ts.server.mcpSessions.sweep()

	if n := ts.server.ActiveSessions(); n != 0 {
		t.Errorf("expected idle session to expire, %d active", n)
	}
	if n := ts.sessions.Len(); n != 0 {
		t.Errorf("expected ordering store released, %d open", n)
	}
	rr := ts.post(t, idle, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expired session: expected 404, got %d", rr.Code)
	}
}

func TestActiveSessionsStayAlive(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.SessionIdleTTL = time.Hour
	})
	sid := ts.initialize(t)
	ts.server.mcpSessions.sweep()

	rr := ts.post(t, sid, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if ts.server.ActiveSessions() != 1 {
		t.Errorf("expected 1 active session, got %d", ts.server.ActiveSessions())
	}
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.TokenVerifier = &mockTokenVerifier{principalID: "assistant"}
	})
	sid := ts.initialize(t, "Authorization", "Bearer owner")

	del := func(sessionID, token string) int {
		req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
		if sessionID != "" {
			req.Header.Set("Mcp-Session-Id", sessionID)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		ts.mux.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := del("", ""); code != http.StatusBadRequest {
		t.Errorf("missing id: expected 400, got %d", code)
	}
	if code := del(sid, "intruder"); code != http.StatusForbidden {
		t.Errorf("wrong owner: expected 403, got %d", code)
	}
	if code := del(sid, "owner"); code != http.StatusNoContent {
		t.Errorf("owner: expected 204, got %d", code)
	}
	if code := del(sid, "owner"); code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", code)
	}
}

func TestResources(t *testing.T) {
	ts := newTestServer(t, nil)
	sid := ts.initialize(t)

	t.Run("list", func(t *testing.T) {
		var result MCPListResourcesResult
		rr := ts.post(t, sid, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)
		if err := json.Unmarshal(decodeRPC(t, rr.Body.Bytes()).Result, &result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(result.Resources) != 3 {
			t.Fatalf("expected 3 resources, got %d", len(result.Resources))
		}
		for _, r := range result.Resources {
			if r.MimeType != widgets.MimeType {
				t.Errorf("%s: unexpected mime type %s", r.URI, r.MimeType)
			}
		}
	})

	t.Run("read", func(t *testing.T) {
		var result MCPReadResourceResult
		rr := ts.post(t, sid, `{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"ui://widget/basket.html"}}`)
		if err := json.Unmarshal(decodeRPC(t, rr.Body.Bytes()).Result, &result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(result.Contents) != 1 || result.Contents[0].Text == "" {
			t.Fatalf("unexpected contents %+v", result.Contents)
		}
		if result.Contents[0].Meta["openai/widgetAccessible"] != true {
			t.Error("expected widgetAccessible meta")
		}
	})

	t.Run("read unknown", func(t *testing.T) {
		resp := decodeRPC(t, ts.post(t, sid, `{"jsonrpc":"2.0","id":3,"method":"resources/read","params":{"uri":"ui://widget/menu.html"}}`).Body.Bytes())
		if resp.Error == nil || resp.Error.Code != JSONRPCInvalidParams {
			t.Errorf("expected invalid params, got %+v", resp.Error)
		}
	})

	t.Run("templates empty", func(t *testing.T) {
		rr := ts.post(t, sid, `{"jsonrpc":"2.0","id":4,"method":"resources/templates/list"}`)
		if !strings.Contains(rr.Body.String(), `"resourceTemplates":[]`) {
			t.Errorf("expected empty templates, got %s", rr.Body.String())
		}
	})
}

func TestServeStdio(t *testing.T) {
	ts := newTestServer(t, nil)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"view_basket"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	}, "\n")
	var out bytes.Buffer

	if err := ts.server.ServeStdio(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatalf("ServeStdio: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 responses, got %d: %q", len(lines), out.String())
	}
	if resp := decodeRPC(t, []byte(lines[1])); resp.Error == nil || resp.Error.Code != JSONRPCParseError {
		t.Errorf("expected parse error, got %s", lines[1])
	}
	if !strings.Contains(lines[2], `"isError":false`) {
		t.Errorf("expected tool result, got %s", lines[2])
	}
	if ts.executor.count() != 1 {
		t.Errorf("expected 1 execution, got %d", ts.executor.count())
	}
}
