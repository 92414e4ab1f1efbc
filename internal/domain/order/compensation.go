// internal/domain/order/compensation.go
package order

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/inventory"
	"gorm.io/gorm"
)

// Stock release job states
const (
	releaseJobPending   = "pending"
	releaseJobDone      = "done"
	releaseJobExhausted = "exhausted"
)

// CompensationWorker retries stock releases that failed during payment
// compensation. It polls the stock_release_jobs table on a fixed
// interval; a job is retried until it succeeds or runs out of attempts,
// at which point it is marked exhausted and kept for manual inspection.
type CompensationWorker struct {
	db               *gorm.DB
	config           *config.Config
	logger           *logrus.Logger
	inventoryService *inventory.Service
}

// NewCompensationWorker creates a new compensation worker
func NewCompensationWorker(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *CompensationWorker {
	return &CompensationWorker{
		db:               db,
		config:           cfg,
		logger:           logger,
		inventoryService: inventory.NewService(db),
	}
}

// Start runs the worker loop until the context is cancelled.
func (w *CompensationWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Payment.ReleaseRetryEvery)
	defer ticker.Stop()

	w.logger.WithField("interval", w.config.Payment.ReleaseRetryEvery).
		Info("Compensation worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Compensation worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce processes every due pending job.
func (w *CompensationWorker) runOnce(ctx context.Context) {
	var jobs []StockReleaseJob
	err := w.db.WithContext(ctx).
		Where("status = ? AND next_run_at <= ?", releaseJobPending, time.Now().UTC()).
		Order("next_run_at ASC").
		Limit(50).
		Find(&jobs).Error
	if err != nil {
		w.logger.WithError(err).Error("Failed to load stock release jobs")
		return
	}

	for _, job := range jobs {
		w.processJob(ctx, job)
	}
}

func (w *CompensationWorker) processJob(ctx context.Context, job StockReleaseJob) {
	var items []OrderItem
	if err := w.db.WithContext(ctx).Where("order_id = ?", job.OrderID).Find(&items).Error; err != nil {
		w.logger.WithError(err).WithField("order_id", job.OrderID).
			Error("Failed to load order items for stock release")
		return
	}

	releaseErr := w.inventoryService.Release(releaseItems(items), job.OrderID, job.Reason)
	if releaseErr == nil {
		if err := w.db.WithContext(ctx).Model(&job).
			UpdateColumn("status", releaseJobDone).Error; err != nil {
			w.logger.WithError(err).WithField("job_id", job.ID).
				Error("Failed to mark stock release job done")
			return
		}
		w.logger.WithFields(logrus.Fields{
			"order_id": job.OrderID,
			"attempts": job.Attempts + 1,
		}).Info("Deferred stock release applied")
		return
	}

	job.Attempts++
	updates := map[string]interface{}{
		"attempts":    job.Attempts,
		"last_error":  releaseErr.Error(),
		"next_run_at": time.Now().UTC().Add(w.config.Payment.ReleaseRetryEvery),
	}
	if job.Attempts >= w.config.Payment.ReleaseMaxAttempts {
		updates["status"] = releaseJobExhausted
		w.logger.WithFields(logrus.Fields{
			"order_id": job.OrderID,
			"attempts": job.Attempts,
		}).Error("Stock release job exhausted, manual intervention required")
	} else {
		w.logger.WithError(releaseErr).WithFields(logrus.Fields{
			"order_id": job.OrderID,
			"attempts": job.Attempts,
		}).Warn("Stock release retry failed")
	}

	if err := w.db.WithContext(ctx).Model(&job).Updates(updates).Error; err != nil {
		w.logger.WithError(err).WithField("job_id", job.ID).
			Error("Failed to update stock release job")
	}
}
