// Package register owns the live till: the catalog being edited, the running profit
// and the statistics files, serialised behind one mutex.
package register

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/peanuts-pos/internal/catalog"
	"github.com/noah-isme/peanuts-pos/internal/fpn"
	"github.com/noah-isme/peanuts-pos/internal/obs"
	"github.com/noah-isme/peanuts-pos/internal/pricing"
	"github.com/noah-isme/peanuts-pos/internal/promo"
	"github.com/noah-isme/peanuts-pos/internal/sale"
	"github.com/noah-isme/peanuts-pos/internal/stats"
)

// ErrFileName is returned for save names that are not a plain file name.
var ErrFileName = errors.New("invalid save file name")

// Options configures a Session.
type Options struct {
	SaveDir  string
	Recorder *stats.Recorder
	Bulk     pricing.BulkPolicy
	Logger   zerolog.Logger
	Metrics  *obs.SalesMetrics
	Now      func() time.Time
}

// Session is the single owner of the till state.
type Session struct {
	mu       sync.Mutex
	catalog  *catalog.Catalog
	profit   decimal.Decimal
	bulk     pricing.BulkPolicy
	saveDir  string
	recorder *stats.Recorder
	logger   zerolog.Logger
	metrics  *obs.SalesMetrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewSession starts a session on an empty catalog.
func NewSession(opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = stats.NewRecorder("stats")
	}
	if opts.Now != nil || recorder.Now == nil {
		recorder.Now = now
	}
	saveDir := opts.SaveDir
	if saveDir == "" {
		saveDir = "saves"
	}
	return &Session{
		catalog:  catalog.New(),
		bulk:     opts.Bulk,
		saveDir:  saveDir,
		recorder: recorder,
		logger:   opts.Logger.With().Str("component", "register").Logger(),
		metrics:  opts.Metrics,
		tracer:   obs.Tracer("register"),
		now:      now,
	}
}

// View is a read-only copy of the catalog.
type View struct {
	Categories []string              `json:"categories"`
	Sources    []string              `json:"sources"`
	Deals      map[string]promo.Deal `json:"deals"`
	Items      []catalog.Item        `json:"items"`
}

// Snapshot copies the current catalog.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	deals := make(map[string]promo.Deal)
	for _, category := range s.catalog.Deals().Active() {
		deals[category] = s.catalog.Deal(category)
	}
	return View{
		Categories: s.catalog.Categories(),
		Sources:    s.catalog.Sources(),
		Deals:      deals,
		Items:      s.catalog.Items(),
	}
}

// AddCategory registers a category; false means it was empty or already known.
func (s *Session) AddCategory(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.AddCategory(name)
}

// AddSource registers a source; false means it was empty or already known.
func (s *Session) AddSource(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.AddSource(name)
}

// AddItem appends an item to the catalog.
func (s *Session) AddItem(in catalog.ItemInput) (catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.AddItem(in)
}

// Search filters items.
func (s *Session) Search(f catalog.Filter) []catalog.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Search(f)
}

// ExportCSV writes every item as CSV.
func (s *Session) ExportCSV(w io.Writer) error {
	s.mu.Lock()
	items := s.catalog.Items()
	s.mu.Unlock()
	return catalog.WriteCSV(w, items)
}

// ItemPatch lists the item fields to change; nil fields are left alone.
type ItemPatch struct {
	Name     *string
	Category *string
	Source   *string
	Price    *decimal.Decimal
	Stock    *int
}

// UpdateItem applies patch. Every field is checked before any is written, so a
// rejected patch leaves the item unchanged.
func (s *Session) UpdateItem(id uuid.UUID, patch ItemPatch) (catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.catalog.Item(id)
	if err != nil {
		return catalog.Item{}, err
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return item, fmt.Errorf("%w: price must not be negative", catalog.ErrValidation)
	}
	if patch.Category != nil && *patch.Category != "" && !s.catalog.HasCategory(*patch.Category) {
		return item, fmt.Errorf("%w: category %q", catalog.ErrUnknownReference, *patch.Category)
	}
	if patch.Source != nil && *patch.Source != "" && !s.catalog.HasSource(*patch.Source) {
		return item, fmt.Errorf("%w: source %q", catalog.ErrUnknownReference, *patch.Source)
	}

	if patch.Name != nil {
		item, err = s.catalog.SetItemName(id, *patch.Name)
	}
	if err == nil && patch.Category != nil {
		item, err = s.catalog.SetItemCategory(id, *patch.Category)
	}
	if err == nil && patch.Source != nil {
		item, err = s.catalog.SetItemSource(id, *patch.Source)
	}
	if err == nil && patch.Price != nil {
		item, err = s.catalog.SetItemPrice(id, *patch.Price)
	}
	if err == nil && patch.Stock != nil {
		item, err = s.catalog.SetItemStock(id, *patch.Stock)
	}
	return item, err
}

// RequestSell sets how many units of an item the next sale takes.
func (s *Session) RequestSell(id uuid.UUID, qty int) (catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.SetItemRequestedSellQty(id, qty)
}

// SetDeal binds deal to category.
func (s *Session) SetDeal(ctx context.Context, category string, deal promo.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.catalog.SetDeal(category, deal); err != nil {
		return err
	}
	s.logger.Info().Ctx(ctx).Str("category", category).Str("deal", deal.String()).Msg("deal_changed")
	return nil
}

// Deal returns the deal of category, None when unset.
func (s *Session) Deal(category string) promo.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Deal(category)
}

func (s *Session) engine() pricing.Engine {
	return pricing.Engine{Deals: s.catalog, Bulk: s.bulk}
}

// Price prices an arbitrary basket against the current deals.
func (s *Session) Price(lines []pricing.Line) pricing.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine().Compute(lines)
}

// Preview prices the pending sell requests without committing them.
func (s *Session) Preview() pricing.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sale.Preview(s.catalog, s.engine())
}

// Receipt describes an executed sale.
type Receipt struct {
	sale.Result
	Profit decimal.Decimal `json:"profit"`
}

// ExecuteSale commits the pending requests, adds the charge to the running profit and
// records the sale in the statistics files. A statistics failure is returned alongside
// a valid receipt: the sale itself has already happened.
func (s *Session) ExecuteSale(ctx context.Context) (Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "register.ExecuteSale")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	res := sale.Execute(s.catalog, s.engine())
	s.profit = s.profit.Add(res.Charged)
	receipt := Receipt{Result: res, Profit: s.profit}
	span.SetAttributes(
		attribute.Int("sale.units", res.Units()),
		attribute.String("sale.charged", res.Charged.StringFixed(2)),
	)
	if res.Units() == 0 {
		return receipt, nil
	}
	s.metrics.ObserveSale(res.Units(), res.Charged)

	var errs []error
	if err := s.recorder.RecordLifetime(res.Records); err != nil {
		errs = append(errs, fmt.Errorf("record lifetime tally: %w", err))
	}
	if err := s.recorder.RecordDaily(res.Records, res.Charged); err != nil {
		errs = append(errs, fmt.Errorf("record daily log: %w", err))
	}
	err := errors.Join(errs...)

	evt := s.logger.Info()
	if err != nil {
		s.metrics.StatsWriteFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, "statistics not recorded")
		evt = s.logger.Error().Err(err)
	}
	evt.Ctx(ctx).
		Int("units", res.Units()).
		Str("charged", res.Charged.StringFixed(2)).
		Str("profit", s.profit.StringFixed(2)).
		Msg("sale_executed")
	return receipt, err
}

// Profit is the total charged since the last reset.
func (s *Session) Profit() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profit
}

// ResetProfit zeroes the running profit and returns the value it had.
func (s *Session) ResetProfit() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.profit
	s.profit = decimal.Zero
	s.logger.Info().Str("profit", prev.StringFixed(2)).Msg("profit_reset")
	return prev
}

// Save writes the catalog into the save directory. An empty name gets a timestamped
// snapshot name. The written path is returned.
func (s *Session) Save(ctx context.Context, name string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "register.Save")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		name = fpn.SnapshotName(s.now())
	}
	path, err := s.resolve(name)
	if err == nil {
		err = fpn.SaveFile(path, s.catalog)
	}
	s.metrics.FileOp("save", err)
	span.SetAttributes(attribute.String("file.name", name))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		s.logger.Error().Ctx(ctx).Err(err).Str("file", name).Msg("catalog_save_failed")
		return "", err
	}
	s.logger.Info().Ctx(ctx).Str("path", path).Msg("catalog_saved")
	return path, nil
}

// Open replaces the catalog with the save file name from the save directory.
func (s *Session) Open(ctx context.Context, name string) error {
	path, err := s.resolve(name)
	if err != nil {
		s.metrics.FileOp("open", err)
		return err
	}
	return s.Load(ctx, path)
}

// Load replaces the catalog with the save file at path. On failure the current
// catalog is kept.
func (s *Session) Load(ctx context.Context, path string) error {
	ctx, span := s.tracer.Start(ctx, "register.Load")
	defer span.End()
	span.SetAttributes(attribute.String("file.path", path))

	loaded, err := fpn.LoadFile(path)
	s.metrics.FileOp("open", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		s.logger.Error().Ctx(ctx).Err(err).Str("path", path).Msg("catalog_open_failed")
		return err
	}

	s.mu.Lock()
	s.catalog = loaded
	s.mu.Unlock()
	s.logger.Info().Ctx(ctx).Str("path", path).Int("items", len(loaded.Items())).Msg("catalog_opened")
	return nil
}

// SaveFiles lists the save files in the save directory, newest name last.
func (s *Session) SaveFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.saveDir, "*"+fpn.Extension))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names, nil
}

// Lifetime reads the lifetime tally.
func (s *Session) Lifetime() ([]stats.Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder.ReadLifetime()
}

// Daily reads the transactions of one date.
func (s *Session) Daily(day time.Time) ([]stats.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder.ReadDaily(day)
}

func (s *Session) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrFileName, name)
	}
	if !strings.HasSuffix(name, fpn.Extension) {
		name += fpn.Extension
	}
	return filepath.Join(s.saveDir, name), nil
}
