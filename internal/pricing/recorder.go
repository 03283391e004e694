package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/service"
)

// Recorder applies a confirmed price observation to the backing store: the
// observation is appended and the aggregate for its key re-folded. Pass a
// transaction as the storage when the observation must commit atomically
// with other writes.
type Recorder struct {
	storage    service.Storage
	aggregator *Aggregator
}

// NewRecorder creates a recorder over the given storage.
func NewRecorder(storage service.Storage, aggregator *Aggregator) *Recorder {
	return &Recorder{storage: storage, aggregator: aggregator}
}

// Record validates and persists one observation, returning the updated
// aggregate. A rejected observation leaves the existing aggregate untouched.
func (r *Recorder) Record(ctx context.Context, obs model.PriceObservation) (model.CurrentPrice, error) {
	current, err := r.storage.GetCurrentPrice(ctx, obs.NormalizedName, obs.Size, obs.StoreID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return model.CurrentPrice{}, fmt.Errorf("failed to load aggregate: %w", err)
	}

	updated, err := r.aggregator.Observe(current, obs)
	if err != nil {
		return model.CurrentPrice{}, err
	}

	if err := r.storage.SavePriceObservation(ctx, &obs); err != nil {
		return model.CurrentPrice{}, err
	}
	if err := r.storage.SaveCurrentPrice(ctx, &updated); err != nil {
		return model.CurrentPrice{}, err
	}
	return updated, nil
}
