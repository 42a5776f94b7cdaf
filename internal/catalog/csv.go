package catalog

import (
	"io"

	"github.com/gocarina/gocsv"
)

type csvRow struct {
	ID       string `csv:"id"`
	Name     string `csv:"name"`
	Category string `csv:"category"`
	Source   string `csv:"source"`
	Price    string `csv:"price"`
	Stock    int    `csv:"stock"`
}

// WriteCSV exports the item table with a header row.
func WriteCSV(w io.Writer, items []Item) error {
	rows := make([]*csvRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, &csvRow{
			ID:       it.ID.String(),
			Name:     it.Name,
			Category: it.Category,
			Source:   it.Source,
			Price:    it.Price.StringFixed(2),
			Stock:    it.Stock,
		})
	}
	return gocsv.Marshal(rows, w)
}
