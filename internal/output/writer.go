// Package output persists item records as tabular rows.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/feedharvest/internal/model"
)

// Header is the column order shared by every tabular format
var Header = []string{"video_url", "likes", "shares", "comments"}

// Format is a supported output file type
type Format string

const (
	FormatCSV    Format = "csv"
	FormatXLSX   Format = "xlsx"
	FormatSQLite Format = "sqlite"
)

// FormatFor picks the format from the file extension; unknown extensions
// are written as CSV
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// Write persists records to path in the format its extension names.
// CSV and XLSX files are replaced; SQLite stores are upserted by URL.
func Write(path string, records []model.ItemRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	var err error
	switch FormatFor(path) {
	case FormatXLSX:
		err = WriteXLSX(path, records)
	case FormatSQLite:
		err = WriteSQLite(path, records)
	default:
		err = WriteCSVFile(path, records)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Row renders one record in Header order. Absent metrics are empty cells.
func Row(rec model.ItemRecord) []string {
	return []string{
		rec.URL,
		rec.Likes.String(),
		rec.Shares.String(),
		rec.JoinedComments(),
	}
}
