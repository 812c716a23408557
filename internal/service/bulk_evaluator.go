package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/david-crosby/Jamf-Monitor/internal/metrics"
	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"github.com/david-crosby/Jamf-Monitor/internal/util/workerpool"
	"go.uber.org/zap"
)

// DeviceFailure records one device that could not be evaluated during a
// bulk run
type DeviceFailure struct {
	DeviceID int    `json:"device_id"`
	Error    string `json:"error"`
}

// BulkResult holds the outcome of evaluating the full inventory. Records
// contains only successfully evaluated devices; Failures carries the rest
// for diagnostics.
type BulkResult struct {
	Records  []*model.DeviceHealthRecord
	Failures []DeviceFailure
}

// CountByStatus tallies the successfully evaluated records
func (r *BulkResult) CountByStatus() map[model.HealthStatus]int {
	counts := make(map[model.HealthStatus]int, 3)
	for _, rec := range r.Records {
		counts[rec.Status]++
	}
	return counts
}

// BulkEvaluator fans the single-device evaluator out over the whole
// inventory through a bounded worker pool. Per-device failures are isolated:
// they are collected, never propagated as a batch failure.
type BulkEvaluator struct {
	api       DeviceAPI
	evaluator *Evaluator
	pool      *workerpool.WorkerPool
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewBulkEvaluator creates a new bulk evaluator
func NewBulkEvaluator(
	api DeviceAPI,
	evaluator *Evaluator,
	pool *workerpool.WorkerPool,
	m *metrics.Metrics,
	logger *zap.Logger,
) *BulkEvaluator {
	return &BulkEvaluator{
		api:       api,
		evaluator: evaluator,
		pool:      pool,
		metrics:   m,
		logger:    logger,
	}
}

// EvaluateAll evaluates every device in the inventory. Only the inventory
// listing itself can fail the batch; a device-level error removes that
// device from the result and adds a diagnostic entry instead.
func (b *BulkEvaluator) EvaluateAll(ctx context.Context, useCache bool) (*BulkResult, error) {
	refs, err := b.api.ListInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list device inventory: %w", err)
	}

	result := &BulkResult{
		Records:  make([]*model.DeviceHealthRecord, 0, len(refs)),
		Failures: make([]DeviceFailure, 0),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, ref := range refs {
		deviceID := ref.ID

		task := workerpool.Task{
			ID:      fmt.Sprintf("evaluate-%d", deviceID),
			Context: ctx,
			Fn: func(taskCtx context.Context) error {
				defer wg.Done()

				record, evalErr := b.evaluator.Evaluate(taskCtx, deviceID, useCache)

				mu.Lock()
				defer mu.Unlock()
				if evalErr != nil {
					result.Failures = append(result.Failures, DeviceFailure{
						DeviceID: deviceID,
						Error:    evalErr.Error(),
					})
					return evalErr
				}
				result.Records = append(result.Records, record)
				return nil
			},
		}

		wg.Add(1)
		if err := b.pool.SubmitWithContext(ctx, task); err != nil {
			wg.Done()
			// Submission fails only on cancellation or pool shutdown;
			// record the device and stop feeding the pool
			mu.Lock()
			result.Failures = append(result.Failures, DeviceFailure{
				DeviceID: deviceID,
				Error:    err.Error(),
			})
			mu.Unlock()
			if ctx.Err() != nil {
				break
			}
		}
	}

	wg.Wait()

	b.metrics.RecordBulkRun(len(result.Records), len(result.Failures))
	b.logger.Info("Bulk evaluation finished",
		zap.Int("inventory", len(refs)),
		zap.Int("evaluated", len(result.Records)),
		zap.Int("failed", len(result.Failures)))

	return result, nil
}
