package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/peanuts-pos/internal/promo"
)

// Line is one unit in a basket.
type Line struct {
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// DealSource resolves the deal currently bound to a category.
type DealSource interface {
	Deal(category string) promo.Deal
}

// BulkPolicy decides how many BULK lots a partition of n units yields.
type BulkPolicy uint8

const (
	// BulkLotsByBuy counts lots as n / buy.
	BulkLotsByBuy BulkPolicy = iota
	// BulkLotsByBuyPlusPrice counts lots as n / (buy + whole price), as older save files were priced.
	BulkLotsByBuyPlusPrice
)

// ParseBulkPolicy maps a config value to a policy; unknown values fall back to BulkLotsByBuy.
func ParseBulkPolicy(value string) BulkPolicy {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "buy_plus_price", "buy+price", "legacy":
		return BulkLotsByBuyPlusPrice
	default:
		return BulkLotsByBuy
	}
}

// String returns the config spelling of the policy.
func (p BulkPolicy) String() string {
	if p == BulkLotsByBuyPlusPrice {
		return "buy_plus_price"
	}
	return "buy"
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
	// Savings is Subtotal - Total. It is negative when a bulk price exceeds the units it replaces.
	Savings decimal.Decimal `json:"savings"`
	Units   int             `json:"units"`
}

// Engine prices baskets against the deals of a DealSource. It holds no state of its own,
// so the preview and the charge of the same basket always agree.
type Engine struct {
	Deals DealSource
	Bulk  BulkPolicy
}

// Price returns the discounted total of lines.
func (e Engine) Price(lines []Line) decimal.Decimal {
	return e.Compute(lines).Total
}

// Compute calculates basket totals given the provided lines.
func (e Engine) Compute(lines []Line) Summary {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice)
	}

	total := decimal.Zero
	for _, p := range partition(lines) {
		for _, price := range e.apply(p.category, p.prices) {
			total = total.Add(price)
		}
	}
	return Summary{
		Subtotal: subtotal,
		Total:    total,
		Savings:  subtotal.Sub(total),
		Units:    len(lines),
	}
}

type group struct {
	category string
	prices   []decimal.Decimal
}

// partition groups unit prices by category in first-seen order, each sorted ascending.
func partition(lines []Line) []group {
	index := make(map[string]int)
	var groups []group
	for _, l := range lines {
		i, ok := index[l.Category]
		if !ok {
			i = len(groups)
			index[l.Category] = i
			groups = append(groups, group{category: l.Category})
		}
		groups[i].prices = append(groups[i].prices, l.UnitPrice)
	}
	for _, g := range groups {
		sort.SliceStable(g.prices, func(a, b int) bool { return g.prices[a].LessThan(g.prices[b]) })
	}
	return groups
}

func (e Engine) apply(category string, sorted []decimal.Decimal) []decimal.Decimal {
	var deal promo.Deal
	if e.Deals != nil {
		deal = e.Deals.Deal(category)
	}
	n := len(sorted)

	switch deal.Kind() {
	case promo.KindNone:
		return sorted
	case promo.KindBOGO:
		times := n / (deal.Buy() + deal.Get())
		return sorted[times*deal.Get():]
	case promo.KindBulk:
		times := n / e.bulkDivisor(deal)
		out := append([]decimal.Decimal(nil), sorted...)
		for i := 0; i < times; i++ {
			out = out[deal.Buy():]
			out = append(out, deal.Price())
		}
		return out
	default:
		panic(fmt.Sprintf("pricing: unhandled deal kind %s", deal.Kind()))
	}
}

func (e Engine) bulkDivisor(deal promo.Deal) int {
	switch e.Bulk {
	case BulkLotsByBuy:
		return deal.Buy()
	case BulkLotsByBuyPlusPrice:
		return deal.Buy() + int(deal.Price().IntPart())
	default:
		panic(fmt.Sprintf("pricing: unhandled bulk policy %d", e.Bulk))
	}
}
