package export

import (
	"os"
	"path/filepath"
	"testing"

	"orbitcam/internal/records"
)

func TestWriteParquet_RoundTrip(t *testing.T) {
	var recs []records.Record
	for i := 0; i < 300; i++ {
		recs = append(recs, records.Record{
			Timestamp: "2022-04-18_09-05-07",
			Country:   "RO",
			City:      "Bucharest, Sector 1",
			Label:     "cumulus",
		})
	}
	recs[299].Country = "ZZ"
	recs[299].City = "Unknown"

	path := filepath.Join(t.TempDir(), "data.parquet")
	if err := WriteParquet(path, recs); err != nil {
		t.Fatalf("WriteParquet failed: %v", err)
	}

	rows, err := ReadParquet(path)
	if err != nil {
		t.Fatalf("ReadParquet failed: %v", err)
	}
	if len(rows) != len(recs) {
		t.Fatalf("expected %d rows, got %d", len(recs), len(rows))
	}

	first := Row{Timestamp: "2022-04-18_09-05-07", Country: "RO", City: "Bucharest, Sector 1", Weather: "cumulus"}
	if rows[0] != first {
		t.Errorf("rows[0] = %+v, want %+v", rows[0], first)
	}
	if rows[299].Country != "ZZ" || rows[299].City != "Unknown" {
		t.Errorf("rows[299] = %+v", rows[299])
	}
}

func TestWriteParquet_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	if err := WriteParquet(path, nil); err != nil {
		t.Fatalf("WriteParquet failed: %v", err)
	}

	rows, err := ReadParquet(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestWriteParquet_BadPath(t *testing.T) {
	if err := WriteParquet(filepath.Join(t.TempDir(), "missing", "x.parquet"), nil); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestReadParquet_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.parquet")
	if err := WriteParquet(path, []records.Record{{Timestamp: "2022-04-18_09-05-07", Country: "RO", City: "Bucharest", Label: "cumulus"}}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Keep the footer intact but clobber the column chunk data after the magic.
	for i := 4; i < len(data)/2; i++ {
		data[i] = 0xff
	}
	os.WriteFile(path, data, 0644)

	if rows, err := ReadParquet(path); err == nil {
		t.Errorf("expected error for corrupt file, got %d rows", len(rows))
	}
}
