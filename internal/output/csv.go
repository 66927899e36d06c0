package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/feedharvest/internal/model"
)

// WriteCSV writes the header and one row per record
func WriteCSV(w io.Writer, records []model.ItemRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(Row(rec)); err != nil {
			return fmt.Errorf("write row %s: %w", rec.URL, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile replaces path with a CSV rendering of records
func WriteCSVFile(path string, records []model.ItemRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}

	if err := WriteCSV(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
