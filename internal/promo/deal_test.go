package promo

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDealCurrentForm(t *testing.T) {
	deal, err := ParseDeal("BOGO:2:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deal.Kind() != KindBOGO || deal.Buy() != 2 || deal.Get() != 1 {
		t.Fatalf("unexpected deal %v", deal)
	}

	bulk, err := ParseDeal("BULK:3:5.50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bulk.Kind() != KindBulk || bulk.Buy() != 3 || !bulk.Price().Equal(decimal.RequireFromString("5.5")) {
		t.Fatalf("unexpected deal %v", bulk)
	}
}

func TestParseDealLegacyTuple(t *testing.T) {
	deal, err := ParseDeal("('BOGO', 2, 1)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := NewBOGO(2, 1)
	if !deal.Equal(want) {
		t.Fatalf("expected %v, got %v", want, deal)
	}

	bulk, err := ParseDeal(`("BULK", 3, 5)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bulk.Kind() != KindBulk || !bulk.Price().Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected deal %v", bulk)
	}

	none, err := ParseDeal("None")
	if err != nil || !none.IsNone() {
		t.Fatalf("expected None, got %v (%v)", none, err)
	}
}

func TestParseDealRejectsGarbage(t *testing.T) {
	cases := []string{
		"BOGO:2",
		"BOGO:x:1",
		"BULK:3:abc",
		"SALE:1:1",
		"('BOGO', 2)",
		"__import__('os')",
		"BOGO:0:0",
		"BULK:2:-1",
	}
	for _, tc := range cases {
		if _, err := ParseDeal(tc); !errors.Is(err, ErrInvalidDeal) {
			t.Fatalf("%q: expected ErrInvalidDeal, got %v", tc, err)
		}
	}
}

func TestDealStringRoundTrip(t *testing.T) {
	bogo, _ := NewBOGO(4, 2)
	bulk, _ := NewBulk(3, decimal.RequireFromString("7.25"))
	for _, deal := range []Deal{None(), bogo, bulk} {
		parsed, err := ParseDeal(deal.String())
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", deal, err)
		}
		if !parsed.Equal(deal) {
			t.Fatalf("expected %v, got %v", deal, parsed)
		}
	}
}

func TestRegistrySetAndLookup(t *testing.T) {
	r := NewRegistry()
	bogo, _ := NewBOGO(2, 1)

	if err := r.Set("Snacks", bogo); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	r.Register("Snacks")
	if !r.Deal("Snacks").IsNone() {
		t.Fatalf("expected freshly registered category to carry no deal")
	}
	if err := r.Set("Snacks", bogo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Register("Snacks")
	if !r.Deal("Snacks").Equal(bogo) {
		t.Fatalf("re-registering must not clear the deal")
	}
	if err := r.Set(Uncategorized, bogo); !errors.Is(err, ErrUncategorized) {
		t.Fatalf("expected ErrUncategorized, got %v", err)
	}
	if !r.Deal(Uncategorized).IsNone() || !r.Deal("Unknown").IsNone() {
		t.Fatalf("expected None for sentinel and unknown categories")
	}
	if got := r.Active(); len(got) != 1 || got[0] != "Snacks" {
		t.Fatalf("unexpected active categories %v", got)
	}
	if err := r.Set("Snacks", None()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Active()) != 0 {
		t.Fatalf("expected cleared deal to leave no active categories")
	}
}
