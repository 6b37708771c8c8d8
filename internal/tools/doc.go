// Package tools is the catalog of named operations exposed over MCP.
//
// A Definition carries the tool name, description, JSON Schema for its
// arguments, and the widget metadata the assistant runtime uses to pick a
// UI surface. Definitions are registered once at startup and never change.
//
// Registry.Validate performs schema-level checks before a call reaches the
// executor: the tool must exist, the arguments must be a JSON object, every
// required property must be present, and declared primitive types must
// match. Finer rules (positive ids, trimmed strings) belong to the executor.
package tools
