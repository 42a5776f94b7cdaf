package register_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peanuts-pos/internal/catalog"
	"github.com/noah-isme/peanuts-pos/internal/config"
	"github.com/noah-isme/peanuts-pos/internal/fpn"
	"github.com/noah-isme/peanuts-pos/internal/obs"
	"github.com/noah-isme/peanuts-pos/internal/promo"
	"github.com/noah-isme/peanuts-pos/internal/register"
	"github.com/noah-isme/peanuts-pos/internal/stats"
)

var fixedNow = time.Date(2024, time.June, 1, 18, 45, 0, 0, time.UTC)

type fixture struct {
	session  *register.Session
	metrics  *obs.SalesMetrics
	saveDir  string
	statsDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		metrics:  obs.NewSalesMetrics("test", prometheus.NewRegistry()),
		saveDir:  filepath.Join(root, "saves"),
		statsDir: filepath.Join(root, "stats"),
	}
	f.session = register.NewSession(register.Options{
		SaveDir:  f.saveDir,
		Recorder: stats.NewRecorder(f.statsDir),
		Logger:   zerolog.Nop(),
		Metrics:  f.metrics,
		Now:      func() time.Time { return fixedNow },
	})
	return f
}

func stockSnacks(t *testing.T, s *register.Session) catalog.Item {
	t.Helper()
	s.AddCategory("Snacks")
	bogo, err := promo.NewBOGO(2, 1)
	require.NoError(t, err)
	require.NoError(t, s.SetDeal(context.Background(), "Snacks", bogo))
	item, err := s.AddItem(catalog.ItemInput{Name: "Peanuts", Category: "Snacks", Price: decimal.NewFromInt(2), Stock: 10})
	require.NoError(t, err)
	return item
}

func TestExecuteSaleRecordsEverything(t *testing.T) {
	f := newFixture(t)
	item := stockSnacks(t, f.session)
	_, err := f.session.RequestSell(item.ID, 3)
	require.NoError(t, err)

	preview := f.session.Preview()
	assert.True(t, preview.Total.Equal(decimal.NewFromInt(4)))

	receipt, err := f.session.ExecuteSale(context.Background())
	require.NoError(t, err)
	assert.True(t, receipt.Charged.Equal(decimal.NewFromInt(4)))
	assert.True(t, receipt.Profit.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 3, receipt.Units())

	view := f.session.Snapshot()
	require.Len(t, view.Items, 1)
	assert.Equal(t, 7, view.Items[0].Stock)
	assert.Equal(t, 0, view.Items[0].SellQty)

	tallies, err := f.session.Lifetime()
	require.NoError(t, err)
	assert.Equal(t, []stats.Tally{{Category: "Snacks", Name: "Peanuts", Count: 3}}, tallies)

	txs, err := f.session.Daily(fixedNow)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "18:45:00", txs[0].Time)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SalesTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.SaleUnitsTotal))
}

func TestExecuteSaleWithNothingPending(t *testing.T) {
	f := newFixture(t)
	stockSnacks(t, f.session)

	receipt, err := f.session.ExecuteSale(context.Background())
	require.NoError(t, err)
	assert.True(t, receipt.Charged.IsZero())
	assert.True(t, f.session.Profit().IsZero())

	_, err = os.Stat(f.statsDir)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "no statistics for an empty sale")
}

func TestExecuteSaleKeepsSaleWhenStatsFail(t *testing.T) {
	f := newFixture(t)
	item := stockSnacks(t, f.session)
	require.NoError(t, os.WriteFile(f.statsDir, []byte("not a directory"), 0o644))
	_, err := f.session.RequestSell(item.ID, 1)
	require.NoError(t, err)

	receipt, err := f.session.ExecuteSale(context.Background())
	require.Error(t, err)
	assert.True(t, receipt.Charged.Equal(decimal.NewFromInt(2)))
	assert.True(t, f.session.Profit().Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 9, f.session.Snapshot().Items[0].Stock)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StatsWriteFailures))
}

func TestProfitAccumulatesAndResets(t *testing.T) {
	f := newFixture(t)
	item := stockSnacks(t, f.session)
	for i := 0; i < 2; i++ {
		_, err := f.session.RequestSell(item.ID, 1)
		require.NoError(t, err)
		_, err = f.session.ExecuteSale(context.Background())
		require.NoError(t, err)
	}
	assert.True(t, f.session.Profit().Equal(decimal.NewFromInt(4)))

	prev := f.session.ResetProfit()
	assert.True(t, prev.Equal(decimal.NewFromInt(4)))
	assert.True(t, f.session.Profit().IsZero())
}

func TestUpdateItemIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	item := stockSnacks(t, f.session)

	name := "Salted Peanuts"
	missing := "Drinks"
	_, err := f.session.UpdateItem(item.ID, register.ItemPatch{Name: &name, Category: &missing})
	require.ErrorIs(t, err, catalog.ErrUnknownReference)
	assert.Equal(t, "Peanuts", f.session.Snapshot().Items[0].Name)

	price := decimal.RequireFromString("2.75")
	stock := 1500
	updated, err := f.session.UpdateItem(item.ID, register.ItemPatch{Name: &name, Price: &price, Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, "Salted Peanuts", updated.Name)
	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, catalog.MaxStock, updated.Stock)

	negative := decimal.NewFromInt(-1)
	_, err = f.session.UpdateItem(item.ID, register.ItemPatch{Price: &negative})
	require.ErrorIs(t, err, catalog.ErrValidation)
}

func TestSaveAndOpen(t *testing.T) {
	f := newFixture(t)
	stockSnacks(t, f.session)

	path, err := f.session.Save(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, fpn.SnapshotName(fixedNow), filepath.Base(path))

	named, err := f.session.Save(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, "shop.fpn", filepath.Base(named))

	files, err := f.session.SaveFiles()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	other := newFixture(t)
	require.NoError(t, other.session.Load(context.Background(), named))
	view := other.session.Snapshot()
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Peanuts", view.Items[0].Name)
	assert.Equal(t, promo.KindBOGO, view.Deals["Snacks"].Kind())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CatalogFilesTotal.WithLabelValues("save", "ok")))
}

func TestOpenFailuresKeepCatalog(t *testing.T) {
	f := newFixture(t)
	stockSnacks(t, f.session)

	err := f.session.Open(context.Background(), "absent")
	require.True(t, errors.Is(err, fs.ErrNotExist))

	require.NoError(t, os.MkdirAll(f.saveDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.saveDir, "broken.fpn"), []byte("$ CATEGORIES\n$ ITEMS\n"), 0o644))
	err = f.session.Open(context.Background(), "broken.fpn")
	require.ErrorIs(t, err, fpn.ErrFormat)

	err = f.session.Open(context.Background(), "../escape.fpn")
	require.ErrorIs(t, err, register.ErrFileName)

	assert.Len(t, f.session.Snapshot().Items, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.CatalogFilesTotal.WithLabelValues("open", "error")))
}

func TestRolloverSchedule(t *testing.T) {
	f := newFixture(t)
	disabled := register.NewRollover(f.session, nil, time.UTC, zerolog.Nop())
	disabled.Start()
	assert.True(t, disabled.Next().IsZero())
	disabled.Stop()

	daily, err := config.ParseSchedule("@daily")
	require.NoError(t, err)
	rollover := register.NewRollover(f.session, daily, time.UTC, zerolog.Nop())
	rollover.Start()
	next := rollover.Next()
	rollover.Stop()
	assert.False(t, next.IsZero())
	assert.Equal(t, 0, next.Hour())
}
