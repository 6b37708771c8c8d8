// Package mcp implements the Model Context Protocol server the chat assistant
// talks to.
//
// # Transports
//
// Two transports share one dispatcher:
//
//   - Streamable HTTP: POST /mcp carries JSON-RPC, DELETE /mcp ends a session.
//     The Mcp-Session-Id header returned by initialize identifies the session.
//   - stdio: one JSON-RPC message per line on stdin, responses on stdout.
//
// # Methods
//
//   - initialize, ping
//   - tools/list, tools/call
//   - resources/list, resources/read, resources/templates/list
//
// # Tool Results
//
// tools/call answers with text content, the tool's structured payload and the
// widget template to render it with:
//
//	{
//	  "content": [{"type": "text", "text": "Found 2 menu items ..."}],
//	  "structuredContent": {"query": "pizza", "items": [...], "count": 2},
//	  "_meta": {"openai/outputTemplate": "ui://widget/search-results.html"},
//	  "isError": false
//	}
//
// Any failure, including unknown tools and bad arguments, comes back as a
// result with isError set so the assistant can read the message.
//
// A tools/call repeated with the same session and JSON-RPC id inside the
// replay window is answered from cache.
//
// # Authentication
//
// When a JWT secret is configured, initialize must carry
//
//	Authorization: Bearer <token>
//
// and DELETE must present the same token.
package mcp
