// ABOUTME: Flattens linked option-set chains into bounded slices.
// ABOUTME: Guards against cyclic chains with an iteration cap and repeat detection.

package menu

// MaxOptionChain bounds how many option groups Chain will follow.
const MaxOptionChain = 16

// OptionGroup is a flattened option set annotated with its parsed selection rule.
type OptionGroup struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Rules       string          `json:"rules,omitempty"`
	Cardinality Cardinality     `json:"cardinality"`
	Items       []OptionSetItem `json:"items"`
}

// Chain follows first.Next until the end of the chain, a repeated group, or
// MaxOptionChain groups. truncated is true when the walk stopped for any
// reason other than reaching the end.
func Chain(first *OptionSet) (groups []OptionGroup, truncated bool) {
	seenPtr := make(map[*OptionSet]struct{})
	seenID := make(map[int]struct{})

	for set := first; set != nil; set = set.Next {
		if len(groups) == MaxOptionChain {
			return groups, true
		}
		if _, ok := seenPtr[set]; ok {
			return groups, true
		}
		if set.ID != 0 {
			if _, ok := seenID[set.ID]; ok {
				return groups, true
			}
			seenID[set.ID] = struct{}{}
		}
		seenPtr[set] = struct{}{}

		groups = append(groups, OptionGroup{
			ID:          set.ID,
			Name:        set.Name,
			Rules:       set.Rules,
			Cardinality: ParseRule(set.Rules),
			Items:       set.Items,
		})
	}
	return groups, false
}
