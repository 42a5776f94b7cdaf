package catalog

import "strings"

// Filter narrows the item list the way the stock view does: a case-insensitive
// name query plus a set of sources the operator has hidden.
type Filter struct {
	Query         string
	HiddenSources []string
}

// Search returns matching items in insertion order. Items with no source are never hidden.
func (c *Catalog) Search(f Filter) []Item {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	hidden := make(map[string]struct{}, len(f.HiddenSources))
	for _, src := range f.HiddenSources {
		if src != Unspecified {
			hidden[src] = struct{}{}
		}
	}
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if query != "" && !strings.Contains(strings.ToLower(it.Name), query) {
			continue
		}
		if _, skip := hidden[it.Source]; skip {
			continue
		}
		out = append(out, *it)
	}
	return out
}
