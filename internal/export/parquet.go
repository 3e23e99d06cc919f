// Package export converts the record log into columnar files for analysis
// on the ground.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"orbitcam/internal/records"
)

// Row mirrors one record log line.
type Row struct {
	Timestamp string `parquet:"timestamp"`
	Country   string `parquet:"country"`
	City      string `parquet:"city"`
	Weather   string `parquet:"weather"`
}

func toRows(recs []records.Record) []Row {
	rows := make([]Row, len(recs))
	for i, rec := range recs {
		rows[i] = Row{
			Timestamp: rec.Timestamp,
			Country:   rec.Country,
			City:      rec.City,
			Weather:   rec.Label,
		}
	}
	return rows
}

// WriteParquet writes recs to path, replacing any existing file.
func WriteParquet(path string, recs []records.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[Row](file)
	if _, err := writer.Write(toRows(recs)); err != nil {
		file.Close()
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return file.Close()
}

// ReadParquet loads every row of a file written by WriteParquet.
func ReadParquet(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	out := make([]Row, 0, pf.NumRows())
	batch := make([]Row, 128)
	for {
		n, err := reader.Read(batch)
		out = append(out, batch[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
	}
}
