// ABOUTME: MCP server exposing the ordering tools and widget resources to a chat assistant.
// ABOUTME: Implements the Streamable HTTP transport with session management and bearer auth.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/2389/menu-gateway/internal/auth"
	"github.com/2389/menu-gateway/internal/ordering"
	"github.com/2389/menu-gateway/internal/session"
	"github.com/2389/menu-gateway/internal/tools"
	"github.com/2389/menu-gateway/internal/widgets"
)

// releaseTimeout bounds snapshot deletion when a session ends.
const releaseTimeout = 5 * time.Second

// ToolExecutor runs a registered tool against a session store.
// *ordering.Executor satisfies it.
type ToolExecutor interface {
	Execute(ctx context.Context, store *session.Store, name string, args json.RawMessage) (*ordering.Result, error)
}

// mcpSession tracks an active MCP client session.
type mcpSession struct {
	id              string
	protocolVersion string
	ownerToken      string // bearer token used to verify session ownership on DELETE
	createdAt       time.Time
}

// sessionStore manages active MCP sessions (in-memory). Sessions idle for
// longer than the TTL expire; the onEnd hook runs on expiry and on delete.
type sessionStore struct {
	c *cache.Cache
}

func newSessionStore(idleTTL time.Duration, onEnd func(id string)) *sessionStore {
	var c *cache.Cache
	if idleTTL > 0 {
		c = cache.New(idleTTL, idleTTL)
	} else {
		c = cache.New(cache.NoExpiration, 0)
	}
	if onEnd != nil {
		c.OnEvicted(func(id string, _ any) { onEnd(id) })
	}
	return &sessionStore{c: c}
}

func (s *sessionStore) create(protocolVersion, ownerToken string) *mcpSession {
	sess := &mcpSession{
		id:              uuid.New().String(),
		protocolVersion: protocolVersion,
		ownerToken:      ownerToken,
		createdAt:       time.Now(),
	}
	s.c.Set(sess.id, sess, cache.DefaultExpiration)
	return sess
}

// get returns a live session and restarts its idle timer.
func (s *sessionStore) get(id string) (*mcpSession, bool) {
	v, ok := s.c.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*mcpSession)
	s.c.Set(id, sess, cache.DefaultExpiration)
	return sess, true
}

func (s *sessionStore) delete(id string) {
	s.c.Delete(id)
}

// sweep ends every expired session now instead of waiting for the janitor.
func (s *sessionStore) sweep() {
	s.c.DeleteExpired()
}

func (s *sessionStore) count() int {
	return s.c.ItemCount()
}

// Config holds configuration for the MCP server.
type Config struct {
	Registry *tools.Registry
	Executor ToolExecutor
	Sessions *session.Manager
	Widgets  *widgets.Resolver
	Logger   *slog.Logger

	TokenVerifier auth.TokenVerifier
	RequireAuth   bool // If true, reject initialize without a valid bearer token

	// ReplayTTL is how long tools/call results are kept for duplicate
	// deliveries. Zero disables replay.
	ReplayTTL time.Duration

	// SessionIdleTTL ends MCP sessions that see no requests for this long
	// and releases their ordering state. Zero keeps sessions until DELETE.
	SessionIdleTTL time.Duration

	Name    string
	Version string
}

// Server implements the MCP endpoints.
type Server struct {
	registry    *tools.Registry
	executor    ToolExecutor
	sessions    *session.Manager
	widgets     *widgets.Resolver
	logger      *slog.Logger
	verifier    auth.TokenVerifier
	requireAuth bool
	mcpSessions *sessionStore
	replay      *replayCache
	name        string
	version     string
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if cfg.Widgets == nil {
		return nil, errors.New("widget resolver is required")
	}
	if cfg.RequireAuth && cfg.TokenVerifier == nil {
		return nil, errors.New("token verifier required when auth is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "menu-gateway"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		registry:    cfg.Registry,
		executor:    cfg.Executor,
		sessions:    cfg.Sessions,
		widgets:     cfg.Widgets,
		logger:      logger,
		verifier:    cfg.TokenVerifier,
		requireAuth: cfg.RequireAuth,
		replay:      newReplayCache(cfg.ReplayTTL),
		name:        name,
		version:     version,
	}
	s.mcpSessions = newSessionStore(cfg.SessionIdleTTL, s.endSession)
	return s, nil
}

// endSession releases the ordering state of an MCP session that was
// deleted or expired.
func (s *Server) endSession(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	s.sessions.Release(ctx, id)
	s.logger.Info("MCP session ended", "session_id", id)
}

// RegisterRoutes registers the MCP endpoint on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
}

// ActiveSessions returns the number of live MCP sessions.
func (s *Server) ActiveSessions() int {
	return s.mcpSessions.count()
}

// handleMCP is the single MCP endpoint supporting POST, GET, and DELETE.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		// We don't support server-initiated SSE streams
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session and releases its ordering state.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	sess, ok := s.mcpSessions.get(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	// The DELETE request must carry the same auth as initialize
	if sess.ownerToken != "" && bearerToken(r) != sess.ownerToken {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.mcpSessions.delete(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	protoVersion := r.Header.Get("Mcp-Protocol-Version")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.writeResponse(w, errorResponse(nil, JSONRPCParseError, "failed to read request body"))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.writeResponse(w, errorResponse(nil, JSONRPCInvalidRequest, "request body too large"))
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeResponse(w, errorResponse(nil, JSONRPCParseError, "invalid JSON"))
		return
	}
	if req.JSONRPC != "2.0" {
		s.writeResponse(w, errorResponse(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version"))
		return
	}

	isInitialize := req.Method == "initialize"

	// Validate protocol version header (not required on initialize)
	if !isInitialize && protoVersion != "" && !supportedProtocolVersions[protoVersion] {
		http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}

	if isInitialize {
		if err := s.authenticate(r); err != nil {
			s.logger.Warn("MCP initialize rejected", "error", err)
			s.writeResponse(w, errorResponse(req.ID, JSONRPCInvalidRequest, err.Error()))
			return
		}
	} else {
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		if _, ok := s.mcpSessions.get(sessionID); !ok {
			// Session expired or invalid - client must re-initialize
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
	}

	s.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", req.isNotification(),
		"session_id", sessionID,
	)

	if req.isNotification() {
		s.dispatch(r.Context(), sessionID, &req)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if isInitialize {
		resp := s.dispatch(r.Context(), "", &req)
		version := latestProtocolVersion
		if m, ok := resp.Result.(map[string]any); ok {
			if v, ok := m["protocolVersion"].(string); ok {
				version = v
			}
		}
		sess := s.mcpSessions.create(version, bearerToken(r))
		s.logger.Info("MCP session created",
			"session_id", sess.id,
			"protocol_version", sess.protocolVersion,
		)
		w.Header().Set("Mcp-Session-Id", sess.id)
		s.writeResponse(w, resp)
		return
	}

	s.writeResponse(w, s.dispatch(r.Context(), sessionID, &req))
}

// errInvalidToken is returned when a token is provided but invalid/expired.
// A bad token is rejected even when auth is optional.
var errInvalidToken = errors.New("invalid or expired token")

var errAuthRequired = errors.New("authentication required")

// authenticate checks the bearer token on initialize.
func (s *Server) authenticate(r *http.Request) error {
	token := bearerToken(r)
	if token == "" {
		if s.requireAuth {
			return errAuthRequired
		}
		return nil
	}
	if s.verifier == nil {
		return nil
	}
	principal, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Debug("bearer token rejected", "error", err)
		return errInvalidToken
	}
	s.logger.Debug("bearer token accepted", "principal", principal)
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}
