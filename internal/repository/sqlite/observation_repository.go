package sqlite

import (
	"database/sql"
	"fmt"

	"orbitcam/internal/models"
)

// ObservationRepository implements repository.ObservationRepository for SQLite.
type ObservationRepository struct {
	db *DB
}

// NewObservationRepository creates a new SQLite observation repository.
func NewObservationRepository(db *DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

const insertObservation = `
	INSERT INTO observations (run_id, timestamp, image_path, latitude, longitude, label, confidence, country, city, outcome)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (run_id, timestamp) DO UPDATE SET
		image_path = excluded.image_path,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		label = excluded.label,
		confidence = excluded.confidence,
		country = excluded.country,
		city = excluded.city,
		outcome = excluded.outcome
`

const selectObservation = `
	SELECT id, run_id, timestamp, image_path, latitude, longitude, label, confidence, country, city, outcome
	FROM observations
`

// Insert adds an observation, replacing any row with the same run and timestamp.
func (r *ObservationRepository) Insert(obs *models.Observation) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertObservation,
		obs.RunID, obs.Timestamp, obs.ImagePath, obs.Latitude, obs.Longitude,
		obs.Label, obs.Confidence, obs.Country, obs.City, obs.Outcome)
	if err != nil {
		return 0, fmt.Errorf("failed to insert observation: %w", err)
	}

	return result.LastInsertId()
}

// BulkInsert adds multiple observations in a single transaction.
func (r *ObservationRepository) BulkInsert(observations []models.Observation) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertObservation)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		if _, err := stmt.Exec(obs.RunID, obs.Timestamp, obs.ImagePath, obs.Latitude, obs.Longitude,
			obs.Label, obs.Confidence, obs.Country, obs.City, obs.Outcome); err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	return tx.Commit()
}

// GetByTimestamp retrieves the observation of a run at a capture timestamp
// in models.TimestampLayout.
func (r *ObservationRepository) GetByTimestamp(runID string, timestamp string) (*models.Observation, error) {
	ts, err := models.ParseTimestamp(timestamp)
	if err != nil {
		return nil, err
	}

	r.db.RLock()
	defer r.db.RUnlock()

	var obs models.Observation
	err = r.db.Conn().QueryRow(selectObservation+` WHERE run_id = ? AND timestamp = ?`, runID, ts).
		Scan(&obs.ID, &obs.RunID, &obs.Timestamp, &obs.ImagePath, &obs.Latitude, &obs.Longitude,
			&obs.Label, &obs.Confidence, &obs.Country, &obs.City, &obs.Outcome)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}
	return &obs, nil
}

// GetAll retrieves observations newest first, based on filter criteria.
func (r *ObservationRepository) GetAll(filter *models.ObservationFilter) ([]models.Observation, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := selectObservation + ` WHERE 1=1`
	args := []interface{}{}

	if filter != nil {
		if filter.RunID != "" {
			query += " AND run_id = ?"
			args = append(args, filter.RunID)
		}
		if filter.Label != "" {
			query += " AND label = ?"
			args = append(args, filter.Label)
		}
		if filter.Country != "" {
			query += " AND country = ?"
			args = append(args, filter.Country)
		}
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var obs models.Observation
		if err := rows.Scan(&obs.ID, &obs.RunID, &obs.Timestamp, &obs.ImagePath, &obs.Latitude, &obs.Longitude,
			&obs.Label, &obs.Confidence, &obs.Country, &obs.City, &obs.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, obs)
	}

	return observations, rows.Err()
}

// Recent returns the latest limit observations across all runs.
func (r *ObservationRepository) Recent(limit int) ([]models.Observation, error) {
	return r.GetAll(&models.ObservationFilter{Limit: limit})
}

// GetStats returns aggregate counts over the catalog.
func (r *ObservationRepository) GetStats() (*models.ObservationStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.ObservationStats{
		PerLabel:   make(map[string]int),
		PerCountry: make(map[string]int),
	}

	var first, last sql.NullString
	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT run_id),
			MIN(timestamp), MAX(timestamp)
		FROM observations
	`, models.OutcomeDiscarded).Scan(&stats.Total, &stats.Discarded, &stats.Runs, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to count observations: %w", err)
	}

	if first.Valid {
		stats.FirstCapture, _ = parseSQLiteTime(first.String)
	}
	if last.Valid {
		stats.LastCapture, _ = parseSQLiteTime(last.String)
	}

	if err := r.countBy(`SELECT label, COUNT(*) FROM observations GROUP BY label`, stats.PerLabel); err != nil {
		return nil, err
	}
	if err := r.countBy(`SELECT country, COUNT(*) FROM observations WHERE outcome = '`+models.OutcomeRecorded+`' GROUP BY country`, stats.PerCountry); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *ObservationRepository) countBy(query string, into map[string]int) error {
	rows, err := r.db.Conn().Query(query)
	if err != nil {
		return fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan count: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}

// DeleteAll removes all observations.
func (r *ObservationRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM observations`); err != nil {
		return fmt.Errorf("failed to delete observations: %w", err)
	}
	return nil
}
