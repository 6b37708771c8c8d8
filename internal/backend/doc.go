// Package backend is the typed client for the remote ordering API.
//
// Every operation is one POST carrying a JSON envelope:
//
//	{"action": "SearchMenu", "args": ["<session id>", "pizza"]}
//
// Most actions go to the generic action endpoint; authenticated basket item
// updates go to a dedicated endpoint with the same envelope. The response
// body is the action's JSON result.
//
// A bearer token is sent when one is available. A token passed at the call
// site wins over the session token attached to the context with
// WithSessionToken.
//
// The client keeps no state between calls and never retries. Non-2xx
// responses surface as *RemoteError carrying the status and raw body.
// IsSessionExpired is the one place that recognises the backend's stale
// session signal.
package backend
