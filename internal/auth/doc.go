// Package auth verifies the bearer tokens presented by MCP clients.
//
// Tokens are HS256 JWTs signed with the configured jwt_secret and issued by
// "menu-gateway". The sub claim names the client; it is logged but grants no
// extra access. Tokens are minted with the `menu-gateway token` command.
package auth
