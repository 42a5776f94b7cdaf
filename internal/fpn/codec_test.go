package fpn_test

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peanuts-pos/internal/catalog"
	"github.com/noah-isme/peanuts-pos/internal/fpn"
	"github.com/noah-isme/peanuts-pos/internal/promo"
)

func sampleCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	c.AddCategory("Snacks")
	c.AddCategory("Bulk Goods")
	c.AddSource("Farm")

	bogo, err := promo.NewBOGO(2, 1)
	require.NoError(t, err)
	bulk, err := promo.NewBulk(3, decimal.RequireFromString("5.00"))
	require.NoError(t, err)
	require.NoError(t, c.SetDeal("Snacks", bogo))
	require.NoError(t, c.SetDeal("Bulk Goods", bulk))

	_, err = c.AddItem(catalog.ItemInput{Name: "Peanuts", Category: "Snacks", Source: "Farm", Price: decimal.RequireFromString("2.50"), Stock: 10})
	require.NoError(t, err)
	_, err = c.AddItem(catalog.ItemInput{Name: "Rice", Category: "Bulk Goods", Price: decimal.Zero, Stock: 3})
	require.NoError(t, err)
	return c
}

const sampleText = `$ CATEGORIES
Bulk Goods
Snacks
$ SOURCES
Farm
$ DEALS
Bulk Goods:BULK:3:5
Snacks:BOGO:2:1
$ ITEMS
Peanuts,Snacks,Farm,2.5,10
Rice,Bulk Goods,-,0.0,3
`

func TestEncodeWritesSectionsInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, fpn.Encode(&buf, sampleCatalog(t)))
	assert.Equal(t, sampleText, buf.String())
}

func TestEncodeEmptyCatalog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, fpn.Encode(&buf, catalog.New()))
	assert.Equal(t, "$ CATEGORIES\n$ SOURCES\n$ DEALS\n$ ITEMS\n", buf.String())
}

func TestDecodeRoundTrip(t *testing.T) {
	original := sampleCatalog(t)
	original.AddCategory("Snacks:(old)")
	original.AddCategory("Tins:(new)")
	bogo, err := promo.NewBOGO(2, 1)
	require.NoError(t, err)
	require.NoError(t, original.SetDeal("Snacks:(old)", bogo))
	bulk, err := promo.NewBulk(4, decimal.RequireFromString("3.5"))
	require.NoError(t, err)
	require.NoError(t, original.SetDeal("Tins:(new)", bulk))

	var buf bytes.Buffer
	require.NoError(t, fpn.Encode(&buf, original))

	decoded, err := fpn.Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, original.Categories(), decoded.Categories())
	assert.Equal(t, original.Sources(), decoded.Sources())
	assert.Equal(t, original.Deals().Active(), decoded.Deals().Active())
	for _, category := range original.Deals().Active() {
		assert.True(t, original.Deal(category).Equal(decoded.Deal(category)), category)
	}

	want, got := original.Items(), decoded.Items()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.Equal(t, want[i].Category, got[i].Category)
		assert.Equal(t, want[i].Source, got[i].Source)
		assert.True(t, want[i].Price.Equal(got[i].Price))
		assert.Equal(t, want[i].Stock, got[i].Stock)
	}
}

func TestDecodeAcceptsLegacyDealTuplesAndBlankLines(t *testing.T) {
	text := "$ CATEGORIES\nSnacks\nA:(b)\n\n$ SOURCES\n$ DEALS\nSnacks:('BOGO', 2, 1)\nA:(b):('BULK', 3, 5)\n$ ITEMS\nPeanuts,Snacks,-,1.0,4\n\n"
	c, err := fpn.Decode(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, promo.KindBOGO, c.Deal("Snacks").Kind())
	assert.Equal(t, 2, c.Deal("Snacks").Buy())
	assert.Equal(t, promo.KindBulk, c.Deal("A:(b)").Kind())
	require.Len(t, c.Items(), 1)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := map[string]struct {
		text string
		line int
	}{
		"missing first marker":  {text: "Snacks\n$ SOURCES\n", line: 1},
		"truncated":             {text: "$ CATEGORIES\nSnacks\n$ SOURCES\n", line: 3},
		"out of order":          {text: "$ CATEGORIES\n$ DEALS\n$ SOURCES\n$ ITEMS\n", line: 2},
		"bad deal":              {text: "$ CATEGORIES\nSnacks\n$ SOURCES\n$ DEALS\nSnacks:FREE:1:1\n$ ITEMS\n", line: 5},
		"deal without colon":    {text: "$ CATEGORIES\nSnacks\n$ SOURCES\n$ DEALS\nSnacks\n$ ITEMS\n", line: 5},
		"unknown deal category": {text: "$ CATEGORIES\n$ SOURCES\n$ DEALS\nSnacks:BOGO:1:1\n$ ITEMS\n", line: 4},
		"wrong field count":     {text: "$ CATEGORIES\n$ SOURCES\n$ DEALS\n$ ITEMS\nSalted, Peanuts,-,-,1.0,2\n", line: 5},
		"bad price":             {text: "$ CATEGORIES\n$ SOURCES\n$ DEALS\n$ ITEMS\nPeanuts,-,-,cheap,2\n", line: 5},
		"bad count":             {text: "$ CATEGORIES\n$ SOURCES\n$ DEALS\n$ ITEMS\nPeanuts,-,-,1.0,lots\n", line: 5},
		"unknown item source":   {text: "$ CATEGORIES\n$ SOURCES\n$ DEALS\n$ ITEMS\nPeanuts,-,Farm,1.0,2\n", line: 5},
		"marker after items":    {text: "$ CATEGORIES\n$ SOURCES\n$ DEALS\n$ ITEMS\n$ EXTRA\n", line: 5},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := fpn.Decode(strings.NewReader(tc.text))
			require.Error(t, err)
			require.ErrorIs(t, err, fpn.ErrFormat)
			assert.Nil(t, c)

			var fe *fpn.FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tc.line, fe.Line)
		})
	}
}

func TestDecodeKeepsReferenceErrors(t *testing.T) {
	_, err := fpn.Decode(strings.NewReader("$ CATEGORIES\n$ SOURCES\n$ DEALS\n$ ITEMS\nPeanuts,Nuts,-,1.0,2\n"))
	require.ErrorIs(t, err, fpn.ErrFormat)
	require.ErrorIs(t, err, catalog.ErrUnknownReference)
}

func TestEncodeRejectsCommaInName(t *testing.T) {
	c := catalog.New()
	_, err := c.AddItem(catalog.ItemInput{Name: "Salted, Roasted"})
	require.NoError(t, err)
	require.ErrorIs(t, fpn.Encode(&bytes.Buffer{}, c), fpn.ErrUnencodable)

	c = catalog.New()
	c.AddCategory("$ DEALS")
	require.ErrorIs(t, fpn.Encode(&bytes.Buffer{}, c), fpn.ErrUnencodable)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "2.5", fpn.FormatPrice(decimal.RequireFromString("2.50")))
	assert.Equal(t, "0.0", fpn.FormatPrice(decimal.Zero))
	assert.Equal(t, "12.0", fpn.FormatPrice(decimal.NewFromInt(12)))
	assert.Equal(t, "0.35", fpn.FormatPrice(decimal.RequireFromString("0.35")))
}

func TestSnapshotName(t *testing.T) {
	now := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)
	assert.Equal(t, "4peanuts-2024_03_05-14_07_09-save.fpn", fpn.SnapshotName(now))
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shop.fpn")
	require.NoError(t, fpn.SaveFile(path, sampleCatalog(t)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleText, string(raw))

	c, err := fpn.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, c.Items(), 2)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not linger")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := fpn.LoadFile(filepath.Join(t.TempDir(), "absent.fpn"))
	var pathErr *fs.PathError
	require.True(t, errors.As(err, &pathErr))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
