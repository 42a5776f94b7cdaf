package fpn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/peanuts-pos/internal/promo"
)

// parser walks a save file line by line. A line starting with '$' is always a marker;
// blank lines are skipped everywhere.
type parser struct {
	scanner *bufio.Scanner
	lineNo  int
	pending *string
	err     error
}

func newParser(r io.Reader) *parser {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &parser{scanner: s}
}

// next returns the next non-blank line.
func (p *parser) next() (string, bool) {
	if p.pending != nil {
		line := *p.pending
		p.pending = nil
		return line, true
	}
	for p.scanner.Scan() {
		p.lineNo++
		line := strings.TrimRight(p.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		return line, true
	}
	p.err = p.scanner.Err()
	return "", false
}

func (p *parser) unread(line string) { p.pending = &line }

func (p *parser) expectMarker(section string) error {
	line, ok := p.next()
	if !ok {
		if p.err != nil {
			return &FormatError{Line: p.lineNo, Msg: "read failed", Err: p.err}
		}
		return &FormatError{Line: p.lineNo, Msg: fmt.Sprintf("missing %q marker", Marker(section))}
	}
	if strings.TrimSpace(line) != Marker(section) {
		return &FormatError{Line: p.lineNo, Msg: fmt.Sprintf("expected %q, found %q", Marker(section), line)}
	}
	return nil
}

// body returns the next content line of the current section. ok is false when the
// section ends, either at the next marker or, for the last section, at end of input.
func (p *parser) body(last bool) (string, bool, error) {
	line, ok := p.next()
	if !ok {
		if p.err != nil {
			return "", false, &FormatError{Line: p.lineNo, Msg: "read failed", Err: p.err}
		}
		// a truncated middle section surfaces as a missing marker on the next expectMarker
		return "", false, nil
	}
	if strings.HasPrefix(line, "$") {
		if last {
			return "", false, &FormatError{Line: p.lineNo, Msg: fmt.Sprintf("unexpected marker %q after %q", line, Marker(SectionItems))}
		}
		p.unread(line)
		return "", false, nil
	}
	return line, true, nil
}

var errDealLine = errors.New("deal line must be category:deal")

// decodeDealLine splits "category:deal". The deal is read from the right, so category
// names may themselves contain colons or "(". The legacy tuple form is only tried when
// the line ends in ")" and is not a current-form deal.
func decodeDealLine(line string) (string, promo.Deal, error) {
	category, deal, err := decodeCurrentDeal(line)
	if err != nil && strings.HasSuffix(strings.TrimSpace(line), ")") {
		if i := strings.LastIndex(line, ":("); i > 0 {
			category = line[:i]
			deal, err = promo.ParseDeal(line[i+1:])
		}
	}
	if err != nil {
		return "", promo.Deal{}, err
	}
	if deal.IsNone() {
		return "", promo.Deal{}, fmt.Errorf("%w: %q carries no deal", errDealLine, line)
	}
	return category, deal, nil
}

func decodeCurrentDeal(line string) (string, promo.Deal, error) {
	parts := strings.Split(line, ":")
	if len(parts) < 4 {
		return "", promo.Deal{}, fmt.Errorf("%w: %q", errDealLine, line)
	}
	category := strings.Join(parts[:len(parts)-3], ":")
	if category == "" {
		return "", promo.Deal{}, fmt.Errorf("%w: %q", errDealLine, line)
	}
	deal, err := promo.ParseDeal(strings.Join(parts[len(parts)-3:], ":"))
	if err != nil {
		return "", promo.Deal{}, err
	}
	return category, deal, nil
}
