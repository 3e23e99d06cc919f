package repository

import (
	"orbitcam/internal/models"
)

// ObservationRepository defines the interface for catalog operations.
type ObservationRepository interface {
	// Create operations
	Insert(obs *models.Observation) (int64, error)
	BulkInsert(observations []models.Observation) error

	// Read operations
	GetByTimestamp(runID string, timestamp string) (*models.Observation, error)
	GetAll(filter *models.ObservationFilter) ([]models.Observation, error)
	Recent(limit int) ([]models.Observation, error)
	GetStats() (*models.ObservationStats, error)

	// Delete operations
	DeleteAll() error
}
