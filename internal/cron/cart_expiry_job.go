package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"go.uber.org/multierr"
)

const (
	CartExpiryJobName      = "cart_expiry"
	defaultCartExpiryBatch = 500
	maxCartExpiryBatches   = 20
)

type expiredCartDeleter interface {
	DeleteExpired(ctx context.Context, limit int) (int64, error)
}

type CartExpiryJobParams struct {
	Logger    *logger.Logger
	Carts     expiredCartDeleter
	BatchSize int
}

// NewCartExpiryJob builds the job that deletes expired, unsubmitted carts in batches.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCartExpiryBatch
	}
	return &cartExpiryJob{logg: params.Logger, carts: params.Carts, batch: batch}, nil
}

type cartExpiryJob struct {
	logg  *logger.Logger
	carts expiredCartDeleter
	batch int
}

func (j *cartExpiryJob) Name() string { return CartExpiryJobName }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	var (
		total int64
		errs  error
	)
	for i := 0; i < maxCartExpiryBatches; i++ {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		deleted, err := j.carts.DeleteExpired(ctx, j.batch)
		total += deleted
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete expired carts (batch %d): %w", i+1, err))
			break
		}
		if deleted < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "deleted", total), "expired carts swept")
	return errs
}
