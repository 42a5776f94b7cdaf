// Package stats keeps the lifetime sales tally and the per-day transaction logs.
package stats

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/peanuts-pos/internal/sale"
)

const (
	// LifetimeFile is the tally file name inside the recorder directory.
	LifetimeFile = "lifetime.txt"
	// DailyDir holds one log per calendar date.
	DailyDir = "daily"

	saleMarker = "$SALE:"
)

// ErrMalformedTally is returned when the existing tally file cannot be parsed.
var ErrMalformedTally = errors.New("malformed lifetime tally")

// Tally is one lifetime counter.
type Tally struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
}

func (t Tally) key() string { return "[" + t.Category + "] " + t.Name }

// String renders the tally line.
func (t Tally) String() string { return t.key() + " #" + strconv.Itoa(t.Count) }

// Transaction is one sale read back from a daily log.
type Transaction struct {
	Amount decimal.Decimal `json:"amount"`
	Time   string          `json:"time"`
	Count  int             `json:"count"`
	Items  []sale.Record   `json:"items"`
}

// Recorder writes statistics below Dir. Now defaults to time.Now.
type Recorder struct {
	Dir string
	Now func() time.Time
}

// NewRecorder returns a recorder rooted at dir.
func NewRecorder(dir string) *Recorder {
	return &Recorder{Dir: dir, Now: time.Now}
}

func (r *Recorder) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// LifetimePath is the full path of the tally file.
func (r *Recorder) LifetimePath() string { return filepath.Join(r.Dir, LifetimeFile) }

// DailyPath is the log file for the calendar date of day.
func (r *Recorder) DailyPath(day time.Time) string {
	return filepath.Join(r.Dir, DailyDir, day.Format("2006_01_02")+".log")
}

// RecordLifetime adds one to the tally of every record, keeping existing entries in file
// order and appending new ones. The file is rewritten whole.
func (r *Recorder) RecordLifetime(records []sale.Record) error {
	tallies, err := r.ReadLifetime()
	if err != nil {
		return err
	}
	index := make(map[string]int, len(tallies))
	for i, t := range tallies {
		index[t.key()] = i
	}
	for _, rec := range records {
		t := Tally{Category: rec.Category, Name: rec.Name, Count: 1}
		if i, ok := index[t.key()]; ok {
			tallies[i].Count++
			continue
		}
		index[t.key()] = len(tallies)
		tallies = append(tallies, t)
	}

	var b strings.Builder
	for _, t := range tallies {
		b.WriteString(t.String())
		b.WriteByte('\n')
	}
	return writeAtomic(r.LifetimePath(), b.String())
}

// RecordDaily appends a sale block to today's log.
func (r *Recorder) RecordDaily(records []sale.Record, amount decimal.Decimal) error {
	now := r.now()
	path := r.DailyPath(now)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create daily dir: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %d ITEMS\n", saleMarker, amount.StringFixed(2), now.Format("15:04:05"), len(records))
	for _, rec := range records {
		b.WriteString(rec.Name + ";" + rec.Category + "\n")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open daily log: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("append daily log: %w", err)
	}
	return f.Close()
}

// parseTally reads "[category] name #count". The count follows the last " #"; the
// rest is the tally key, so names and categories may hold '#', ']' or "] ".
func parseTally(line string) (Tally, bool) {
	i := strings.LastIndex(line, " #")
	if i < 0 || !strings.HasPrefix(line, "[") {
		return Tally{}, false
	}
	digits := line[i+2:]
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return Tally{}, false
	}
	count, err := strconv.Atoi(digits)
	if err != nil {
		return Tally{}, false
	}
	category, name, ok := strings.Cut(line[1:i], "] ")
	if !ok {
		return Tally{}, false
	}
	return Tally{Category: category, Name: name, Count: count}, true
}

// ReadLifetime parses the tally file. A missing file is an empty tally.
func (r *Recorder) ReadLifetime() ([]Tally, error) {
	f, err := os.Open(r.LifetimePath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open lifetime tally: %w", err)
	}
	defer f.Close()

	var out []Tally
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		t, ok := parseTally(line)
		if !ok {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedTally, lineNo, line)
		}
		out = append(out, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lifetime tally: %w", err)
	}
	return out, nil
}

// ReadDaily parses the log of the given date. A missing log means no sales that day.
func (r *Recorder) ReadDaily(day time.Time) ([]Transaction, error) {
	f, err := os.Open(r.DailyPath(day))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open daily log: %w", err)
	}
	defer f.Close()

	var out []Transaction
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case strings.HasPrefix(line, saleMarker):
			tx, err := parseSaleLine(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTally, lineNo, err)
			}
			out = append(out, tx)
		default:
			if len(out) == 0 {
				return nil, fmt.Errorf("%w: line %d: item before any sale", ErrMalformedTally, lineNo)
			}
			name, category, ok := strings.Cut(line, ";")
			if !ok {
				return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedTally, lineNo, line)
			}
			last := &out[len(out)-1]
			last.Items = append(last.Items, sale.Record{Name: name, Category: category})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read daily log: %w", err)
	}
	return out, nil
}

func parseSaleLine(line string) (Transaction, error) {
	fields := strings.Fields(strings.TrimPrefix(line, saleMarker))
	if len(fields) != 4 || fields[3] != "ITEMS" {
		return Transaction{}, fmt.Errorf("bad sale line %q", line)
	}
	amount, err := decimal.NewFromString(fields[0])
	if err != nil {
		return Transaction{}, fmt.Errorf("bad amount %q", fields[0])
	}
	count, err := strconv.Atoi(fields[2])
	if err != nil {
		return Transaction{}, fmt.Errorf("bad item count %q", fields[2])
	}
	return Transaction{Amount: amount, Time: fields[1], Count: count}, nil
}

func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tally-*")
	if err != nil {
		return fmt.Errorf("create temp tally: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write tally: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tally: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish tally: %w", err)
	}
	return nil
}
