// ABOUTME: Error types for the ordering backend client.
// ABOUTME: RemoteError carries HTTP status and body; IsSessionExpired isolates the stale-session match.

package backend

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNetwork wraps transport failures (connection refused, DNS, reset).
var ErrNetwork = errors.New("backend unreachable")

// ErrBadResponse indicates a 2xx response whose body could not be decoded.
var ErrBadResponse = errors.New("malformed backend response")

// SessionExpiredMarker is the text the backend puts in its error body when a
// session id is no longer known.
const SessionExpiredMarker = "Call context not found"

// RemoteError is returned for any non-2xx backend response.
type RemoteError struct {
	Action string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("backend %s failed: status %d", e.Action, e.Status)
	}
	return fmt.Sprintf("backend %s failed: status %d: %s", e.Action, e.Status, body)
}

// IsSessionExpired reports whether err signals that the backend no longer
// recognises the session id. The backend exposes no error code for this, so
// the check is a substring match on the error text.
func IsSessionExpired(err error) bool {
	if err == nil {
		return false
	}
	var remote *RemoteError
	if errors.As(err, &remote) && strings.Contains(remote.Body, SessionExpiredMarker) {
		return true
	}
	return strings.Contains(err.Error(), SessionExpiredMarker)
}
