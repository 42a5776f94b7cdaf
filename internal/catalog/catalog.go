package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/peanuts-pos/internal/promo"
)

const (
	// Uncategorized is the category sentinel for items without a category.
	Uncategorized = promo.Uncategorized
	// Unspecified is the source sentinel for items without a known origin.
	Unspecified = "-"
	// MaxStock is the largest stock count an item can hold.
	MaxStock = 999
	// DefaultItemName is used when an item is added without a name.
	DefaultItemName = "New Product"
)

var (
	// ErrValidation is returned for malformed or out-of-range numeric input.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownReference is returned when an item or deal names an unregistered category or source.
	ErrUnknownReference = errors.New("unknown reference")
	// ErrItemNotFound is returned when an item handle does not exist in the catalog.
	ErrItemNotFound = errors.New("item not found")
)

// Item is one inventory row. SellQty is the pending quantity the operator wants to sell.
type Item struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Source   string          `json:"source"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	SellQty  int             `json:"sellQty"`
}

// ItemInput carries the fields accepted by AddItem.
type ItemInput struct {
	Name     string
	Category string
	Source   string
	Price    decimal.Decimal
	Stock    int
}

// Catalog owns categories, sources, items and the promotion registry.
// It is not safe for concurrent use; callers serialise access.
type Catalog struct {
	categories []string
	sources    []string
	items      []*Item
	deals      *promo.Registry
}

// New returns a catalog holding only the sentinel category and source.
func New() *Catalog {
	return &Catalog{
		categories: []string{Uncategorized},
		sources:    []string{Unspecified},
		deals:      promo.NewRegistry(),
	}
}

// AddCategory registers a category. Empty or duplicate names are ignored.
func (c *Catalog) AddCategory(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || contains(c.categories, name) {
		return false
	}
	c.categories = insertSorted(c.categories, name)
	c.deals.Register(name)
	return true
}

// AddSource registers a stock source. Empty or duplicate names are ignored.
func (c *Catalog) AddSource(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || contains(c.sources, name) {
		return false
	}
	c.sources = insertSorted(c.sources, name)
	return true
}

// Categories returns the sorted category names, sentinel included.
func (c *Catalog) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Sources returns the sorted source names, sentinel included.
func (c *Catalog) Sources() []string {
	return append([]string(nil), c.sources...)
}

// HasCategory reports whether name is a registered category.
func (c *Catalog) HasCategory(name string) bool { return contains(c.categories, name) }

// HasSource reports whether name is a registered source.
func (c *Catalog) HasSource(name string) bool { return contains(c.sources, name) }

// AddItem appends an item. Empty category or source fall back to the sentinels;
// names that were never registered are rejected.
func (c *Catalog) AddItem(in ItemInput) (Item, error) {
	category, err := c.resolveCategory(in.Category)
	if err != nil {
		return Item{}, err
	}
	source, err := c.resolveSource(in.Source)
	if err != nil {
		return Item{}, err
	}
	if in.Price.IsNegative() {
		return Item{}, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	name := in.Name
	if strings.TrimSpace(name) == "" {
		name = DefaultItemName
	}
	item := &Item{
		ID:       uuid.New(),
		Name:     name,
		Category: category,
		Source:   source,
		Price:    in.Price,
		Stock:    clamp(in.Stock, 0, MaxStock),
	}
	c.items = append(c.items, item)
	return *item, nil
}

// Items returns a copy of every item in insertion order.
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, *it)
	}
	return out
}

// Item looks up a single item.
func (c *Catalog) Item(id uuid.UUID) (Item, error) {
	it, err := c.find(id)
	if err != nil {
		return Item{}, err
	}
	return *it, nil
}

// SetItemStock sets the stock count, clamped to [0, MaxStock]. The pending sell
// quantity is clamped to the new stock.
func (c *Catalog) SetItemStock(id uuid.UUID, count int) (Item, error) {
	it, err := c.find(id)
	if err != nil {
		return Item{}, err
	}
	it.Stock = clamp(count, 0, MaxStock)
	it.SellQty = clamp(it.SellQty, 0, it.Stock)
	return *it, nil
}

// SetItemRequestedSellQty sets the pending sell quantity, clamped to [0, stock].
func (c *Catalog) SetItemRequestedSellQty(id uuid.UUID, qty int) (Item, error) {
	it, err := c.find(id)
	if err != nil {
		return Item{}, err
	}
	it.SellQty = clamp(qty, 0, it.Stock)
	return *it, nil
}

// SetItemName renames an item.
func (c *Catalog) SetItemName(id uuid.UUID, name string) (Item, error) {
	it, err := c.find(id)
	if err != nil {
		return Item{}, err
	}
	it.Name = name
	return *it, nil
}

// SetItemPrice changes the unit price. Negative prices are rejected and the old value kept.
func (c *Catalog) SetItemPrice(id uuid.UUID, price decimal.Decimal) (Item, error) {
	it, err := c.find(id)
	if err != nil {
		return Item{}, err
	}
	if price.IsNegative() {
		return *it, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	it.Price = price
	return *it, nil
}

// SetItemCategory moves an item to another registered category.
func (c *Catalog) SetItemCategory(id uuid.UUID, category string) (Item, error) {
	it, err := c.find(id)
	if err != nil {
		return Item{}, err
	}
	resolved, err := c.resolveCategory(category)
	if err != nil {
		return *it, err
	}
	it.Category = resolved
	return *it, nil
}

// SetItemSource moves an item to another registered source.
func (c *Catalog) SetItemSource(id uuid.UUID, source string) (Item, error) {
	it, err := c.find(id)
	if err != nil {
		return Item{}, err
	}
	resolved, err := c.resolveSource(source)
	if err != nil {
		return *it, err
	}
	it.Source = resolved
	return *it, nil
}

// SetDeal binds deal to a registered category.
func (c *Catalog) SetDeal(category string, deal promo.Deal) error {
	if category == Uncategorized || !c.HasCategory(category) {
		return fmt.Errorf("%w: category %q cannot carry a deal", ErrUnknownReference, category)
	}
	return c.deals.Set(category, deal)
}

// Deal returns the deal of category, None if unset.
func (c *Catalog) Deal(category string) promo.Deal {
	return c.deals.Deal(category)
}

// Deals exposes the promotion registry for read access.
func (c *Catalog) Deals() *promo.Registry {
	return c.deals
}

// Taken reports the quantity removed from one item by TakeRequested.
type Taken struct {
	Item Item
	Qty  int
}

// TakeRequested commits every pending sell quantity: stock is decremented, the
// request reset, and the affected items returned in catalog order.
func (c *Catalog) TakeRequested() []Taken {
	var out []Taken
	for _, it := range c.items {
		q := it.SellQty
		if q <= 0 {
			continue
		}
		it.Stock -= q
		it.SellQty = 0
		out = append(out, Taken{Item: *it, Qty: q})
	}
	return out
}

// ParsePrice parses operator-entered price text.
func ParsePrice(text string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %q is not a number", ErrValidation, text)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	return price, nil
}

// ParseCount parses operator-entered stock text.
func ParseCount(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: count %q is not an integer", ErrValidation, text)
	}
	return n, nil
}

func (c *Catalog) find(id uuid.UUID) (*Item, error) {
	for _, it := range c.items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

func (c *Catalog) resolveCategory(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return Uncategorized, nil
	}
	if !c.HasCategory(name) {
		return "", fmt.Errorf("%w: category %q", ErrUnknownReference, name)
	}
	return name, nil
}

func (c *Catalog) resolveSource(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return Unspecified, nil
	}
	if !c.HasSource(name) {
		return "", fmt.Errorf("%w: source %q", ErrUnknownReference, name)
	}
	return name, nil
}

func contains(list []string, name string) bool {
	i := sort.SearchStrings(list, name)
	return i < len(list) && list[i] == name
}

func insertSorted(list []string, name string) []string {
	i := sort.SearchStrings(list, name)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = name
	return list
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
