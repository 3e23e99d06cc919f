// Package downlink forwards observations to ground-side brokers.
package downlink

import (
	"context"
	"encoding/json"
	"fmt"

	"orbitcam/internal/models"
)

// Publisher sends one observation off the device.
type Publisher interface {
	Publish(ctx context.Context, obs models.Observation) error
	Close() error
}

func encode(obs models.Observation) ([]byte, error) {
	payload, err := json.Marshal(obs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal observation: %w", err)
	}
	return payload, nil
}

// Observer adapts a Publisher to the pipeline observer hook.
type Observer struct {
	name      string
	publisher Publisher
}

func NewObserver(name string, publisher Publisher) *Observer {
	return &Observer{name: name, publisher: publisher}
}

func (o *Observer) Name() string { return o.name }

func (o *Observer) Observe(ctx context.Context, obs models.Observation) error {
	return o.publisher.Publish(ctx, obs)
}
