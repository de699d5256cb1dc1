package salesdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// SampleFileName is the file created when no packaged database exists.
const SampleFileName = "sample-sales.db"

// SampleRow is one seed row of the sample sales_data table.
type SampleRow struct {
	ID          int
	Region      string
	ProductType string
	Revenue     float64
	Year        int
}

// SampleRows seed the sample database.
var SampleRows = []SampleRow{
	{1, "NORTH AMERICA", "Tent", 1500000.0, 2023},
	{2, "EUROPE", "Tent", 1200000.0, 2023},
	{3, "ASIA", "Tent", 900000.0, 2023},
	{4, "NORTH AMERICA", "Sleeping Bag", 800000.0, 2023},
	{5, "EUROPE", "Sleeping Bag", 600000.0, 2023},
}

const sampleSchema = `
CREATE TABLE IF NOT EXISTS sales_data (
	id INTEGER PRIMARY KEY,
	region TEXT,
	product_type TEXT,
	revenue REAL,
	year INTEGER
)`

// CreateSampleDatabase creates or refreshes a minimal sales database at path.
// Running it twice leaves the same five rows.
func CreateSampleDatabase(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sampleSchema); err != nil {
		return fmt.Errorf("failed to create sales_data: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO sales_data (id, region, product_type, revenue, year) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range SampleRows {
		if _, err := stmt.ExecContext(ctx, row.ID, row.Region, row.ProductType, row.Revenue, row.Year); err != nil {
			return fmt.Errorf("failed to insert sample row %d: %w", row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sample data: %w", err)
	}
	return nil
}
