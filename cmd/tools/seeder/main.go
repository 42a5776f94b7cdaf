package main

import (
	"flag"
	"log"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/peanuts-pos/internal/catalog"
	"github.com/noah-isme/peanuts-pos/internal/config"
	"github.com/noah-isme/peanuts-pos/internal/fpn"
	"github.com/noah-isme/peanuts-pos/internal/promo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	name := flag.String("name", fpn.SnapshotName(time.Now().In(cfg.Location)), "file name inside POS_SAVE_DIR")
	flag.Parse()

	c, err := demoCatalog()
	if err != nil {
		log.Fatalf("Failed to build demo catalog: %v", err)
	}

	path := filepath.Join(cfg.SaveDir, filepath.Base(*name))
	if err := fpn.SaveFile(path, c); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}
	log.Printf("Seeded %d items into %s", len(c.Items()), path)
}

func demoCatalog() (*catalog.Catalog, error) {
	c := catalog.New()
	for _, name := range []string{"Snacks", "Bulk Goods", "Drinks", "Spreads"} {
		c.AddCategory(name)
	}
	for _, name := range []string{"Farm", "Mill", "Orchard"} {
		c.AddSource(name)
	}

	bogo, err := promo.NewBOGO(2, 1)
	if err != nil {
		return nil, err
	}
	bulk, err := promo.NewBulk(3, decimal.RequireFromString("5.00"))
	if err != nil {
		return nil, err
	}
	if err := c.SetDeal("Snacks", bogo); err != nil {
		return nil, err
	}
	if err := c.SetDeal("Bulk Goods", bulk); err != nil {
		return nil, err
	}

	items := []struct {
		Name     string
		Category string
		Source   string
		Price    string
		Stock    int
	}{
		{"Roasted Peanuts", "Snacks", "Farm", "2.50", 40},
		{"Honey Peanuts", "Snacks", "Farm", "3.00", 25},
		{"Peanut Brittle", "Snacks", "Mill", "4.25", 12},
		{"Raw Peanuts 1kg", "Bulk Goods", "Farm", "2.00", 60},
		{"Rice 1kg", "Bulk Goods", "Mill", "1.75", 80},
		{"Peanut Milk", "Drinks", "Mill", "3.50", 18},
		{"Apple Juice", "Drinks", "Orchard", "2.75", 20},
		{"Peanut Butter", "Spreads", "Mill", "5.00", 15},
		{"Loose Change Jar", "", "", "0.0", 1},
	}
	for _, it := range items {
		if _, err := c.AddItem(catalog.ItemInput{
			Name:     it.Name,
			Category: it.Category,
			Source:   it.Source,
			Price:    decimal.RequireFromString(it.Price),
			Stock:    it.Stock,
		}); err != nil {
			return nil, err
		}
	}
	return c, nil
}
