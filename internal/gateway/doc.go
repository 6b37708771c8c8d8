// Package gateway wires menu-gateway together and runs it.
//
// # Components
//
// Build turns a config.Config into the running pieces:
//
//   - backend.Client for the ordering backend
//   - a session.Persister (file, sqlite or redis) behind a session.Manager
//   - the tools.Registry holding the ordering catalog
//   - ordering.Executor
//   - widgets.Resolver
//   - mcp.Server, with JWT verification when auth.jwt_secret is set
//
// The stdio transport and the session CLI commands use Build directly.
//
// # HTTP
//
//   - POST/DELETE /mcp - MCP Streamable HTTP endpoint
//   - GET /health - Liveness check, always "OK"
//   - GET /health/ready - Asks the backend for restaurant status; 503 when unreachable
//
// # Listeners
//
// Without Tailscale the server binds server.http_addr. With tailscale.enabled
// it joins the tailnet through tsnet and listens on :80, or on :443 with a
// tailnet certificate (https) or publicly through Funnel (funnel).
//
// # Shutdown
//
// Run blocks until its context is canceled, then shuts the HTTP server down
// with a five second grace period and closes the tsnet node and session store.
package gateway
