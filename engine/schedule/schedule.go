// Package schedule decides which vehicles are due for a comment re-crawl.
package schedule

import (
	"context"
	"fmt"

	"github.com/vrtlab/revmine/engine/store"
)

// Scheduler selects crawl targets using a least-recently-serviced policy.
type Scheduler struct {
	vehicles store.VehicleStore
}

// New creates a Scheduler over the vehicle registry.
func New(vehicles store.VehicleStore) *Scheduler {
	return &Scheduler{vehicles: vehicles}
}

// SelectCrawlTargets returns up to maxCount vehicles, never-crawled first
// (stable id order), then previously-crawled oldest first. Deterministic for
// a given registry snapshot, so every vehicle is eventually serviced.
func (s *Scheduler) SelectCrawlTargets(ctx context.Context, maxCount int) ([]store.VehicleChannel, error) {
	if maxCount <= 0 {
		return nil, nil
	}

	targets, err := s.vehicles.ListNeverCrawled(ctx, maxCount)
	if err != nil {
		return nil, fmt.Errorf("select crawl targets: %w", err)
	}
	if len(targets) >= maxCount {
		return targets[:maxCount], nil
	}

	stale, err := s.vehicles.ListOldestCrawled(ctx, maxCount-len(targets))
	if err != nil {
		return nil, fmt.Errorf("select crawl targets: %w", err)
	}
	return append(targets, stale...), nil
}
