// Package ordering runs tool calls against the ordering backend.
//
// The Executor is a state machine whose state lives in a session.Store:
//
//   - no session id: a guest backend session is created before dispatch
//   - session id, no auth token: search and basket tools work; submit_order
//     answers with an authentication_required result pointing at the auth
//     widget and never calls the backend
//   - auth token held: submit_order places the order
//
// Basket mutations always use the guest session, since the backend scopes
// baskets to it. Authentication is tracked separately and only consulted
// at checkout.
//
// If the backend reports that the session id is unknown, the session id is
// cleared and the whole call runs once more from session creation. A
// second failure is returned as is.
package ordering
