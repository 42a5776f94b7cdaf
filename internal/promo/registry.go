package promo

import (
	"errors"
	"fmt"
	"sort"
)

// Uncategorized is the category name that never carries a deal.
const Uncategorized = "-"

var (
	// ErrUnknownCategory is returned when a deal targets a category that was never registered.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrUncategorized is returned when a deal targets the uncategorized sentinel.
	ErrUncategorized = errors.New("uncategorized items cannot carry a deal")
)

// Registry maps categories to their current deal. Changes apply to the next pricing call.
type Registry struct {
	deals map[string]Deal
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{deals: map[string]Deal{Uncategorized: None()}}
}

// Register makes category known with no deal. Already known categories keep their deal.
func (r *Registry) Register(category string) {
	if _, ok := r.deals[category]; ok {
		return
	}
	r.deals[category] = None()
}

// Known reports whether category was registered.
func (r *Registry) Known(category string) bool {
	_, ok := r.deals[category]
	return ok
}

// Set overwrites the deal of a registered category.
func (r *Registry) Set(category string, deal Deal) error {
	if category == Uncategorized {
		if deal.IsNone() {
			return nil
		}
		return ErrUncategorized
	}
	if _, ok := r.deals[category]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	r.deals[category] = deal
	return nil
}

// Deal returns the deal for category, or None when unset.
func (r *Registry) Deal(category string) Deal {
	if r == nil || category == Uncategorized {
		return None()
	}
	return r.deals[category]
}

// Active lists categories carrying a deal other than None, sorted.
func (r *Registry) Active() []string {
	out := make([]string, 0, len(r.deals))
	for category, deal := range r.deals {
		if !deal.IsNone() {
			out = append(out, category)
		}
	}
	sort.Strings(out)
	return out
}
