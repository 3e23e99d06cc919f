package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"orbitcam/internal/camera"
	"orbitcam/internal/models"
	"orbitcam/internal/records"
	"orbitcam/internal/repository"
)

// RebuildResult summarizes a catalog rebuild.
type RebuildResult struct {
	Inserted  int
	Untagged  int // images whose GPS tags could not be read
	Unmatched int // images with no record log row
	Skipped   int // rows or files with unparseable timestamps
}

// RebuildCatalog replaces the catalog with observations recovered from the
// record log and the image archive. Rows are matched to images by
// timestamp; coordinates come from the images' EXIF GPS tags.
func RebuildCatalog(repo repository.ObservationRepository, imageDir, dataFile, runID string) (RebuildResult, error) {
	var result RebuildResult

	recs, err := records.ReadAll(dataFile)
	if err != nil {
		return result, fmt.Errorf("failed to read record log: %w", err)
	}

	byTimestamp := make(map[string]*models.Observation, len(recs))
	for _, rec := range recs {
		ts, err := models.ParseTimestamp(rec.Timestamp)
		if err != nil {
			result.Skipped++
			continue
		}
		byTimestamp[rec.Timestamp] = &models.Observation{
			RunID:     runID,
			Timestamp: ts,
			Label:     rec.Label,
			Country:   rec.Country,
			City:      rec.City,
			Outcome:   models.OutcomeRecorded,
		}
	}

	files, err := os.ReadDir(imageDir)
	if err != nil && !os.IsNotExist(err) {
		return result, fmt.Errorf("failed to read image directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != models.ImageExt {
			continue
		}

		ts, err := models.ParseImageFilename(file.Name())
		if err != nil {
			result.Skipped++
			continue
		}

		obs, ok := byTimestamp[models.FormatTimestamp(ts)]
		if !ok {
			result.Unmatched++
			continue
		}

		path := filepath.Join(imageDir, file.Name())
		obs.ImagePath = path

		data, err := os.ReadFile(path)
		if err != nil {
			result.Untagged++
			continue
		}
		point, err := camera.ReadGeoTag(data)
		if err != nil {
			result.Untagged++
			continue
		}
		obs.Latitude = point.Latitude
		obs.Longitude = point.Longitude
	}

	observations := make([]models.Observation, 0, len(byTimestamp))
	for _, obs := range byTimestamp {
		observations = append(observations, *obs)
	}
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].Timestamp.Before(observations[j].Timestamp)
	})

	if err := repo.DeleteAll(); err != nil {
		return result, fmt.Errorf("failed to clear catalog: %w", err)
	}
	if len(observations) > 0 {
		if err := repo.BulkInsert(observations); err != nil {
			return result, fmt.Errorf("failed to insert observations: %w", err)
		}
	}

	result.Inserted = len(observations)
	return result, nil
}

// RebuildRunID names the synthetic run that owns rebuilt rows.
func RebuildRunID(now time.Time) string {
	return "rebuild-" + models.FormatTimestamp(now)
}
