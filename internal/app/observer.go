package app

import (
	"context"

	"orbitcam/internal/models"
	"orbitcam/internal/repository"
)

type catalogObserver struct {
	repo repository.ObservationRepository
}

func (o *catalogObserver) Name() string { return "catalog" }

func (o *catalogObserver) Observe(_ context.Context, obs models.Observation) error {
	_, err := o.repo.Insert(&obs)
	return err
}
