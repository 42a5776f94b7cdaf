package promo

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidDeal is returned when deal parameters or their textual encoding are not usable.
var ErrInvalidDeal = errors.New("invalid deal")

// Kind discriminates the Deal variant.
type Kind uint8

const (
	// KindNone applies no discount.
	KindNone Kind = iota
	// KindBOGO is "buy N, get M free".
	KindBOGO
	// KindBulk is "buy N for a flat price".
	KindBulk
)

// String returns the tag used in the save file.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindBOGO:
		return "BOGO"
	case KindBulk:
		return "BULK"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Deal is the promotion bound to a category. The zero value is None.
// Build values through None, NewBOGO and NewBulk so parameters are always valid.
type Deal struct {
	kind  Kind
	buy   int
	get   int
	price decimal.Decimal
}

// None returns the "no discount" deal.
func None() Deal { return Deal{} }

// NewBOGO builds a "buy buy, get get free" deal.
func NewBOGO(buy, get int) (Deal, error) {
	if buy < 1 || get < 1 {
		return Deal{}, fmt.Errorf("%w: BOGO needs buy >= 1 and get >= 1, got %d/%d", ErrInvalidDeal, buy, get)
	}
	return Deal{kind: KindBOGO, buy: buy, get: get}, nil
}

// NewBulk builds a "buy buy units for price" deal.
func NewBulk(buy int, price decimal.Decimal) (Deal, error) {
	if buy < 1 {
		return Deal{}, fmt.Errorf("%w: BULK needs buy >= 1, got %d", ErrInvalidDeal, buy)
	}
	if price.IsNegative() {
		return Deal{}, fmt.Errorf("%w: BULK price must not be negative", ErrInvalidDeal)
	}
	return Deal{kind: KindBulk, buy: buy, price: price}, nil
}

// Kind reports the variant.
func (d Deal) Kind() Kind { return d.kind }

// Buy is the qualifying unit count for BOGO and BULK.
func (d Deal) Buy() int { return d.buy }

// Get is the number of free units per BOGO lot.
func (d Deal) Get() int { return d.get }

// Price is the flat lot price of a BULK deal.
func (d Deal) Price() decimal.Decimal { return d.price }

// IsNone reports whether the deal applies no discount.
func (d Deal) IsNone() bool { return d.kind == KindNone }

// Equal compares two deals by value.
func (d Deal) Equal(other Deal) bool {
	return d.kind == other.kind && d.buy == other.buy && d.get == other.get && d.price.Equal(other.price)
}

// String renders the deal in its save-file form.
func (d Deal) String() string {
	switch d.kind {
	case KindBOGO:
		return fmt.Sprintf("BOGO:%d:%d", d.buy, d.get)
	case KindBulk:
		return fmt.Sprintf("BULK:%d:%s", d.buy, d.price.String())
	default:
		return "NONE"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Deal) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Deal) UnmarshalText(text []byte) error {
	parsed, err := ParseDeal(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// legacyTuple matches the tuple literal written by the first generation of save files,
// e.g. ('BOGO', 2, 1) or ("BULK", 3, 5.0).
var legacyTuple = regexp.MustCompile(`^\(\s*['"](BOGO|BULK)['"]\s*,\s*(\d+)\s*,\s*(\d+(?:\.\d+)?)\s*\)$`)

// ParseDeal decodes a deal from either the TAG:a:b form or the legacy tuple literal.
func ParseDeal(text string) (Deal, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "" || strings.EqualFold(text, "NONE") || text == "None":
		return None(), nil
	case strings.HasPrefix(text, "("):
		return parseLegacy(text)
	}

	parts := strings.Split(text, ":")
	if len(parts) != 3 {
		return Deal{}, fmt.Errorf("%w: %q", ErrInvalidDeal, text)
	}
	buy, err := strconv.Atoi(parts[1])
	if err != nil {
		return Deal{}, fmt.Errorf("%w: buy count %q", ErrInvalidDeal, parts[1])
	}
	switch strings.ToUpper(parts[0]) {
	case "BOGO":
		get, err := strconv.Atoi(parts[2])
		if err != nil {
			return Deal{}, fmt.Errorf("%w: free count %q", ErrInvalidDeal, parts[2])
		}
		return NewBOGO(buy, get)
	case "BULK":
		price, err := decimal.NewFromString(parts[2])
		if err != nil {
			return Deal{}, fmt.Errorf("%w: bulk price %q", ErrInvalidDeal, parts[2])
		}
		return NewBulk(buy, price)
	default:
		return Deal{}, fmt.Errorf("%w: unknown tag %q", ErrInvalidDeal, parts[0])
	}
}

func parseLegacy(text string) (Deal, error) {
	m := legacyTuple.FindStringSubmatch(text)
	if m == nil {
		return Deal{}, fmt.Errorf("%w: %q", ErrInvalidDeal, text)
	}
	buy, err := strconv.Atoi(m[2])
	if err != nil {
		return Deal{}, fmt.Errorf("%w: %q", ErrInvalidDeal, text)
	}
	if m[1] == "BOGO" {
		get, err := strconv.Atoi(m[3])
		if err != nil {
			return Deal{}, fmt.Errorf("%w: %q", ErrInvalidDeal, text)
		}
		return NewBOGO(buy, get)
	}
	price, err := decimal.NewFromString(m[3])
	if err != nil {
		return Deal{}, fmt.Errorf("%w: %q", ErrInvalidDeal, text)
	}
	return NewBulk(buy, price)
}
