// Package fpn reads and writes the .fpn catalog save file.
//
// A save file holds four sections in fixed order, each introduced by a marker line:
//
//	$ CATEGORIES   one category per line
//	$ SOURCES      one source per line
//	$ DEALS        category:TAG:a:b per line (BOGO:buy:get, BULK:buy:price)
//	$ ITEMS        name,category,source,price,count per line
//
// The "-" sentinels are never written.
package fpn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/peanuts-pos/internal/catalog"
)

// Extension is the file extension of save files.
const Extension = ".fpn"

// Section names, in file order.
const (
	SectionCategories = "CATEGORIES"
	SectionSources    = "SOURCES"
	SectionDeals      = "DEALS"
	SectionItems      = "ITEMS"
)

var sectionOrder = []string{SectionCategories, SectionSources, SectionDeals, SectionItems}

var (
	// ErrFormat matches every *FormatError.
	ErrFormat = errors.New("malformed save file")
	// ErrUnencodable is returned by Encode for names the line format cannot represent.
	ErrUnencodable = errors.New("catalog cannot be encoded")
)

// FormatError reports where decoding failed.
type FormatError struct {
	Line int
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("fpn: line %d: %s", e.Line, e.Msg)
	}
	return "fpn: " + e.Msg
}

// Unwrap exposes the underlying cause.
func (e *FormatError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrFormat) match.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Marker returns the marker line of a section.
func Marker(section string) string { return "$ " + section }

// Encode writes c in save-file form.
func Encode(w io.Writer, c *catalog.Catalog) error {
	if err := checkEncodable(c); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	writeLine := func(s string) {
		_, _ = bw.WriteString(s)
		_ = bw.WriteByte('\n')
	}

	writeLine(Marker(SectionCategories))
	for _, name := range c.Categories() {
		if name != catalog.Uncategorized {
			writeLine(name)
		}
	}
	writeLine(Marker(SectionSources))
	for _, name := range c.Sources() {
		if name != catalog.Unspecified {
			writeLine(name)
		}
	}
	writeLine(Marker(SectionDeals))
	for _, category := range c.Deals().Active() {
		writeLine(category + ":" + c.Deal(category).String())
	}
	writeLine(Marker(SectionItems))
	for _, it := range c.Items() {
		writeLine(strings.Join([]string{
			it.Name,
			it.Category,
			it.Source,
			FormatPrice(it.Price),
			strconv.Itoa(it.Stock),
		}, ","))
	}
	return bw.Flush()
}

// Decode parses a save file into a new catalog. On error no catalog is returned.
func Decode(r io.Reader) (*catalog.Catalog, error) {
	p := newParser(r)
	c := catalog.New()

	for i, section := range sectionOrder {
		if err := p.expectMarker(section); err != nil {
			return nil, err
		}
		last := i == len(sectionOrder)-1
		for {
			line, ok, err := p.body(last)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if err := apply(c, section, line, p.lineNo); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func apply(c *catalog.Catalog, section, line string, lineNo int) error {
	switch section {
	case SectionCategories:
		c.AddCategory(line)
	case SectionSources:
		c.AddSource(line)
	case SectionDeals:
		category, deal, err := decodeDealLine(line)
		if err != nil {
			return &FormatError{Line: lineNo, Msg: err.Error(), Err: err}
		}
		if err := c.SetDeal(category, deal); err != nil {
			return &FormatError{Line: lineNo, Msg: err.Error(), Err: err}
		}
	case SectionItems:
		in, err := decodeItemLine(line)
		if err != nil {
			return &FormatError{Line: lineNo, Msg: err.Error(), Err: err}
		}
		if _, err := c.AddItem(in); err != nil {
			return &FormatError{Line: lineNo, Msg: err.Error(), Err: err}
		}
	}
	return nil
}

func decodeItemLine(line string) (catalog.ItemInput, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return catalog.ItemInput{}, fmt.Errorf("item needs 5 comma-separated fields, got %d", len(fields))
	}
	price, err := catalog.ParsePrice(fields[3])
	if err != nil {
		return catalog.ItemInput{}, err
	}
	count, err := catalog.ParseCount(fields[4])
	if err != nil {
		return catalog.ItemInput{}, err
	}
	return catalog.ItemInput{
		Name:     fields[0],
		Category: fields[1],
		Source:   fields[2],
		Price:    price,
		Stock:    count,
	}, nil
}

// FormatPrice writes a price the way save files always have: at least one decimal place.
func FormatPrice(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func checkEncodable(c *catalog.Catalog) error {
	bad := func(kind, name string, forbidden string) error {
		if strings.ContainsAny(name, forbidden) {
			return fmt.Errorf("%w: %s %q contains a reserved character", ErrUnencodable, kind, name)
		}
		if strings.HasPrefix(name, "$") {
			return fmt.Errorf("%w: %s %q starts with a section marker", ErrUnencodable, kind, name)
		}
		return nil
	}
	for _, name := range c.Categories() {
		if err := bad("category", name, ",\n\r"); err != nil {
			return err
		}
	}
	for _, name := range c.Sources() {
		if err := bad("source", name, ",\n\r"); err != nil {
			return err
		}
	}
	for _, it := range c.Items() {
		if err := bad("item", it.Name, ",\n\r"); err != nil {
			return err
		}
	}
	return nil
}
