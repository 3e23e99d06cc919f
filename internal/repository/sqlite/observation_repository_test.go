package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"orbitcam/internal/models"
)

func newTestRepo(t *testing.T) *ObservationRepository {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewObservationRepository(db)
}

func observation(runID string, ts time.Time, label, country, outcome string) models.Observation {
	return models.Observation{
		RunID:      runID,
		Timestamp:  ts,
		ImagePath:  "/data/raw/" + models.ImageFilename(ts),
		Latitude:   44.9,
		Longitude:  25.4,
		Label:      label,
		Confidence: 0.87,
		Country:    country,
		City:       "Targoviste",
		Outcome:    outcome,
	}
}

func TestObservationRepository_InsertAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ts := time.Date(2022, 4, 18, 9, 5, 7, 0, time.Local)

	obs := observation("run-1", ts, "cumulus", "RO", models.OutcomeRecorded)
	if _, err := repo.Insert(&obs); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.GetByTimestamp("run-1", models.FormatTimestamp(ts))
	if err != nil {
		t.Fatalf("GetByTimestamp failed: %v", err)
	}
	if got == nil {
		t.Fatal("observation not found")
	}
	if got.Label != "cumulus" || got.Country != "RO" || got.Outcome != models.OutcomeRecorded {
		t.Errorf("unexpected observation %+v", got)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %s, expected %s", got.Timestamp, ts)
	}

	missing, err := repo.GetByTimestamp("run-2", models.FormatTimestamp(ts))
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing observation, got %+v, %v", missing, err)
	}
}

func TestObservationRepository_UpsertSameTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	ts := time.Date(2022, 4, 18, 9, 5, 7, 0, time.Local)

	first := observation("run-1", ts, "cumulus", "RO", models.OutcomeRecorded)
	second := observation("run-1", ts, "stratus", "RO", models.OutcomeRecorded)
	if _, err := repo.Insert(&first); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Insert(&second); err != nil {
		t.Fatalf("second Insert failed: %v", err)
	}

	all, err := repo.GetAll(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Label != "stratus" {
		t.Errorf("expected single updated row, got %+v", all)
	}
}

func TestObservationRepository_FilterAndStats(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2022, 4, 18, 9, 0, 0, 0, time.Local)

	batch := []models.Observation{
		observation("run-1", base, "cumulus", "RO", models.OutcomeRecorded),
		observation("run-1", base.Add(9*time.Second), "cumulus", "BG", models.OutcomeRecorded),
		observation("run-1", base.Add(18*time.Second), "night", "", models.OutcomeDiscarded),
		observation("run-2", base.Add(time.Hour), "clear", "RO", models.OutcomeRecorded),
	}
	if err := repo.BulkInsert(batch); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	tests := []struct {
		name   string
		filter *models.ObservationFilter
		want   int
	}{
		{"all", nil, 4},
		{"by run", &models.ObservationFilter{RunID: "run-1"}, 3},
		{"by label", &models.ObservationFilter{Label: "cumulus"}, 2},
		{"by country", &models.ObservationFilter{Country: "RO"}, 2},
		{"limit", &models.ObservationFilter{Limit: 1}, 1},
		{"offset past end", &models.ObservationFilter{Limit: 10, Offset: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetAll(tt.filter)
			if err != nil {
				t.Fatalf("GetAll failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d observations, expected %d", len(got), tt.want)
			}
		})
	}

	newest, _ := repo.Recent(1)
	if len(newest) != 1 || newest[0].RunID != "run-2" {
		t.Errorf("expected newest first, got %+v", newest)
	}

	stats, err := repo.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Total != 4 || stats.Discarded != 1 || stats.Runs != 2 {
		t.Errorf("unexpected totals %+v", stats)
	}
	if stats.PerLabel["cumulus"] != 2 || stats.PerLabel["night"] != 1 {
		t.Errorf("unexpected label counts %v", stats.PerLabel)
	}
	if stats.PerCountry["RO"] != 2 || stats.PerCountry["BG"] != 1 {
		t.Errorf("unexpected country counts %v", stats.PerCountry)
	}
	if _, ok := stats.PerCountry[""]; ok {
		t.Error("discarded observations should not count towards countries")
	}

	if err := repo.DeleteAll(); err != nil {
		t.Fatal(err)
	}
	stats, _ = repo.GetStats()
	if stats.Total != 0 {
		t.Errorf("expected empty catalog, got %d", stats.Total)
	}
}
