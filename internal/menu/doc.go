// Package menu holds the ordering data model shared by the backend client,
// the session store and the tool executor.
//
// # Option chains
//
// A menu item may carry an option set, and each option set may point at a
// further set through its Next field. The backend builds these as a singly
// linked list. Chain flattens that list into a slice, capped at
// MaxOptionChain groups so a malformed (cyclic) chain cannot loop forever.
//
// # Selection rules
//
// Option sets describe how many items may be chosen with a free-text rule
// such as "Select exactly 1" or "Choose up to one". ParseRule turns the rule
// into a Cardinality. Rules that do not match the known phrasing are treated
// as unbounded and optional.
package menu
