package sale

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/peanuts-pos/internal/catalog"
	"github.com/noah-isme/peanuts-pos/internal/pricing"
)

// Pricer prices a basket. pricing.Engine satisfies it.
type Pricer interface {
	Compute(lines []pricing.Line) pricing.Summary
}

// Record is one unit sold, as written to the statistics files.
type Record struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Result describes a committed sale.
type Result struct {
	Charged decimal.Decimal `json:"charged"`
	Summary pricing.Summary `json:"summary"`
	Lines   []pricing.Line  `json:"lines"`
	Records []Record        `json:"records"`
}

// Units is the number of units sold.
func (r Result) Units() int { return len(r.Records) }

// Basket builds the basket of pending sell requests without touching stock.
func Basket(c *catalog.Catalog) []pricing.Line {
	var lines []pricing.Line
	for _, it := range c.Items() {
		for i := 0; i < it.SellQty; i++ {
			lines = append(lines, pricing.Line{Category: it.Category, UnitPrice: it.Price})
		}
	}
	return lines
}

// Preview prices the pending requests without committing them.
func Preview(c *catalog.Catalog, p Pricer) pricing.Summary {
	return p.Compute(Basket(c))
}

// Execute commits every pending request and prices the combined basket once.
// Stock decrements are not rolled back if a later step fails.
func Execute(c *catalog.Catalog, p Pricer) Result {
	var res Result
	for _, taken := range c.TakeRequested() {
		for i := 0; i < taken.Qty; i++ {
			res.Lines = append(res.Lines, pricing.Line{Category: taken.Item.Category, UnitPrice: taken.Item.Price})
			res.Records = append(res.Records, Record{Name: taken.Item.Name, Category: taken.Item.Category})
		}
	}
	res.Summary = p.Compute(res.Lines)
	res.Charged = res.Summary.Total
	return res
}
