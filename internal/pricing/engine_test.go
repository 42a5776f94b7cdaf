package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/peanuts-pos/internal/promo"
)

type dealMap map[string]promo.Deal

func (m dealMap) Deal(category string) promo.Deal { return m[category] }

func lines(category string, prices ...string) []Line {
	out := make([]Line, 0, len(prices))
	for _, p := range prices {
		out = append(out, Line{Category: category, UnitPrice: decimal.RequireFromString(p)})
	}
	return out
}

func mustBOGO(t *testing.T, buy, get int) promo.Deal {
	t.Helper()
	d, err := promo.NewBOGO(buy, get)
	if err != nil {
		t.Fatalf("build BOGO: %v", err)
	}
	return d
}

func mustBulk(t *testing.T, buy int, price string) promo.Deal {
	t.Helper()
	d, err := promo.NewBulk(buy, decimal.RequireFromString(price))
	if err != nil {
		t.Fatalf("build BULK: %v", err)
	}
	return d
}

func expectTotal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("expected total %s, got %s", want, got)
	}
}

func TestPriceWithoutDealsIsPlainSum(t *testing.T) {
	engine := Engine{Deals: dealMap{}}
	basket := append(lines("Snacks", "1.10", "2.20"), lines("Drinks", "0.35", "4")...)
	expectTotal(t, engine.Price(basket), "7.65")

	expectTotal(t, Engine{}.Price(basket), "7.65")
	expectTotal(t, engine.Price(nil), "0")
}

func TestPriceBOGOFreesCheapestUnits(t *testing.T) {
	engine := Engine{Deals: dealMap{"Snacks": mustBOGO(t, 2, 1)}}
	expectTotal(t, engine.Price(lines("Snacks", "3.00", "1.00", "2.00")), "5.00")
}

func TestPriceBOGOIncompleteLotPaysFull(t *testing.T) {
	engine := Engine{Deals: dealMap{"Snacks": mustBOGO(t, 2, 1)}}
	expectTotal(t, engine.Price(lines("Snacks", "1", "2")), "3")
	// 7 units: two full lots of 3, two cheapest free.
	expectTotal(t, engine.Price(lines("Snacks", "1", "2", "3", "4", "5", "6", "7")), "25")
}

func TestPriceBulkReplacesLots(t *testing.T) {
	engine := Engine{Deals: dealMap{"Bulk Goods": mustBulk(t, 3, "5.00")}}
	expectTotal(t, engine.Price(lines("Bulk Goods", "1", "1", "1", "1", "1", "1")), "10.00")
	// 4 units: one lot of the 3 cheapest plus the dearest unit at full price.
	expectTotal(t, engine.Price(lines("Bulk Goods", "4", "1", "2", "3")), "9")
}

func TestPriceBulkLotsNeverConsumeBulkLines(t *testing.T) {
	engine := Engine{Deals: dealMap{"Bulk Goods": mustBulk(t, 2, "0.5")}}
	// Each lot takes the cheapest remaining original units; the 0.5 lot lines are
	// appended after them and are never folded into a later lot.
	expectTotal(t, engine.Price(lines("Bulk Goods", "1", "1", "1", "1")), "1.0")
	expectTotal(t, engine.Price(lines("Bulk Goods", "1", "1", "1")), "1.5")
}

func TestPriceBulkLegacyDivisor(t *testing.T) {
	engine := Engine{Deals: dealMap{"Bulk Goods": mustBulk(t, 3, "5")}, Bulk: BulkLotsByBuyPlusPrice}
	// divisor 3+5 = 8 exceeds 6 units, so no lot applies.
	expectTotal(t, engine.Price(lines("Bulk Goods", "1", "1", "1", "1", "1", "1")), "6")
	// 8 units yield one lot.
	expectTotal(t, engine.Price(lines("Bulk Goods", "1", "1", "1", "1", "1", "1", "1", "1")), "10")
}

func TestPriceDealsApplyPerCategory(t *testing.T) {
	engine := Engine{Deals: dealMap{
		"Snacks": mustBOGO(t, 1, 1),
		"Drinks": mustBulk(t, 2, "3"),
	}}
	basket := []Line{}
	basket = append(basket, lines("Snacks", "2", "4")...)
	basket = append(basket, lines("Drinks", "2", "2", "9")...)
	basket = append(basket, lines("-", "1")...)
	// Snacks: 4. Drinks: lot(2,2)->3 plus 9 = 12. Uncategorised: 1.
	expectTotal(t, engine.Price(basket), "17")
}

func TestPriceIsIdempotent(t *testing.T) {
	engine := Engine{Deals: dealMap{"Snacks": mustBOGO(t, 2, 1)}}
	basket := lines("Snacks", "3", "1", "2")
	first := engine.Price(basket)
	second := engine.Price(basket)
	if !first.Equal(second) {
		t.Fatalf("expected identical totals, got %s and %s", first, second)
	}
	if !basket[0].UnitPrice.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("basket must not be reordered in place")
	}
}

func TestComputeSummary(t *testing.T) {
	engine := Engine{Deals: dealMap{"Bulk Goods": mustBulk(t, 3, "5")}}
	summary := engine.Compute(lines("Bulk Goods", "1", "1", "1"))
	expectTotal(t, summary.Subtotal, "3")
	expectTotal(t, summary.Total, "5")
	expectTotal(t, summary.Savings, "-2")
	if summary.Units != 3 {
		t.Fatalf("expected 3 units, got %d", summary.Units)
	}
}

func TestParseBulkPolicy(t *testing.T) {
	if ParseBulkPolicy("buy_plus_price") != BulkLotsByBuyPlusPrice {
		t.Fatalf("expected legacy policy")
	}
	if ParseBulkPolicy("") != BulkLotsByBuy || ParseBulkPolicy("weird") != BulkLotsByBuy {
		t.Fatalf("expected default policy")
	}
	if BulkLotsByBuyPlusPrice.String() != "buy_plus_price" || BulkLotsByBuy.String() != "buy" {
		t.Fatalf("unexpected policy names")
	}
}
