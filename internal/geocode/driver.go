package geocode

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// MaxEmptyBatches is the circuit-breaker threshold: after this many
// consecutive batches where every examined row failed to resolve, the driver
// stops hammering the external service. The remaining companies are treated
// as systematically unresolvable until the user intervenes.
const MaxEmptyBatches = 3

// Driver states.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateComplete = "complete"
)

// ErrAlreadyRunning is returned when Run is invoked while a run is active.
var ErrAlreadyRunning = errors.New("geocoding run already in progress")

// BatchFunc invokes one batch resolver call. It may hit the resolver
// directly or an HTTP batch endpoint.
type BatchFunc func(ctx context.Context) (BatchResult, error)

// Progress is emitted after every batch.
type Progress struct {
	BatchProcessed int `json:"batch_processed"`
	BatchUpdated   int `json:"batch_updated"`
	Success        int `json:"success"`
	Attempted      int `json:"attempted"`
}

// Summary is the final accounting of a run.
type Summary struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Driver repeatedly invokes the batch resolver until exhaustion or a stall.
// It holds no pipeline state of its own beyond run accounting: the resolver
// recomputes pending work fresh on every call, so an abandoned run resumes
// safely by calling Run again later.
type Driver struct {
	batch  BatchFunc
	logger *slog.Logger

	mu    sync.Mutex
	state string
}

// NewDriver creates a progress driver around a batch function.
func NewDriver(batch BatchFunc, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{batch: batch, logger: logger, state: StateIdle}
}

// State returns the current driver state.
func (d *Driver) State() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Run drives batches to completion. It stops when a batch reports done (no
// pending work remained), after MaxEmptyBatches consecutive batches with
// zero updates, on a batch error, or when ctx is cancelled. onProgress, if
// non-nil, is called after every batch.
//
// Only one run may be active at a time; a completed driver can Run again to
// resume whatever work remains.
func (d *Driver) Run(ctx context.Context, onProgress func(Progress)) (Summary, error) {
	d.mu.Lock()
	if d.state == StateRunning {
		d.mu.Unlock()
		return Summary{}, ErrAlreadyRunning
	}
	d.state = StateRunning
	d.mu.Unlock()

	var success, attempted, consecutiveEmpty int

	defer func() {
		d.mu.Lock()
		d.state = StateComplete
		d.mu.Unlock()
	}()

	for consecutiveEmpty < MaxEmptyBatches {
		if err := ctx.Err(); err != nil {
			return Summary{Success: success, Failed: attempted - success}, err
		}

		result, err := d.batch(ctx)
		if err != nil {
			d.logger.Error("geocode batch failed", slog.String("error", err.Error()))
			return Summary{Success: success, Failed: attempted - success}, err
		}

		if result.Done || result.Processed == 0 {
			break
		}

		success += result.Updated
		attempted += result.Processed

		// A batch that examined rows but resolved none counts toward the
		// stall breaker; any success resets it.
		if result.Updated == 0 {
			consecutiveEmpty++
		} else {
			consecutiveEmpty = 0
		}

		if onProgress != nil {
			onProgress(Progress{
				BatchProcessed: result.Processed,
				BatchUpdated:   result.Updated,
				Success:        success,
				Attempted:      attempted,
			})
		}
	}

	summary := Summary{Success: success, Failed: attempted - success}
	d.logger.Info("geocoding run finished",
		slog.Int("success", summary.Success),
		slog.Int("failed", summary.Failed))
	return summary, nil
}
