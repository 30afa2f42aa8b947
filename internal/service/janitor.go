package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const janitorBatch = 100

// Janitor periodically expires reservations left behind by checkouts that
// never finished.
type Janitor struct {
	inventory *InventoryService
	interval  time.Duration
	logger    *zap.Logger
}

func NewJanitor(inventory *InventoryService, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{inventory: inventory, interval: interval, logger: logger}
}

// Run sweeps every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("Reservation janitor started", zap.Duration("interval", j.interval))
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Reservation janitor stopped")
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep releases expired reservations in batches and returns how many it
// released.
func (j *Janitor) Sweep(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := j.inventory.ExpireReservations(ctx, time.Now(), janitorBatch)
		total += n
		if err != nil {
			j.logger.Error("Failed to expire reservations", zap.Error(err))
			break
		}
		if n < janitorBatch {
			break
		}
	}
	if total > 0 {
		j.logger.Info("Expired reservations released", zap.Int("count", total))
	}
	return total
}
