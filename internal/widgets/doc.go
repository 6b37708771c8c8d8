// Package widgets resolves UI surface URIs to their markup.
//
// Three surfaces exist: search results, authentication and basket. Each
// is loaded once at startup. Load looks in the configured directory for
// <name>.html, then <name>.md (rendered to HTML with goldmark), and falls
// back to the markup embedded in the binary. Unknown URIs are an error;
// there is no default rendering.
package widgets
