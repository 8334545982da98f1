package geocode

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gekyxme/relnodes/internal/connection"
	"github.com/gekyxme/relnodes/internal/geo"
	"github.com/gekyxme/relnodes/internal/geocache"
	"github.com/gekyxme/relnodes/internal/jobs"
	"github.com/gekyxme/relnodes/internal/tracing"
)

// DefaultBatchSize bounds one resolver call to keep total external-call time
// under typical request timeouts.
const DefaultBatchSize = 50

// BatchResult summarizes one resolver call. Done is the structured terminal
// signal: true when no pending connections remained to examine.
type BatchResult struct {
	Processed int    `json:"processed"`
	Updated   int    `json:"updated"`
	Done      bool   `json:"done"`
	Message   string `json:"message,omitempty"`
}

// BatchResolver resolves pending connections in bounded batches. Each call
// is self-contained: it selects up to batchSize connections with a company
// and no coordinates, resolves each through the cache or the external
// lookup, and writes jittered coordinates back. Per-row lookup failures are
// logged and skipped so one bad company name never blocks the rest of the
// batch.
type BatchResolver struct {
	conns     connection.Repository
	cache     geocache.Repository
	lookup    Lookup
	batchSize int
	logger    *slog.Logger
	metrics   *jobs.Metrics
}

// ResolverOption configures a BatchResolver.
type ResolverOption func(*BatchResolver)

// WithBatchSize overrides the per-call row bound.
func WithBatchSize(n int) ResolverOption {
	return func(r *BatchResolver) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *jobs.Metrics) ResolverOption {
	return func(r *BatchResolver) { r.metrics = m }
}

// NewBatchResolver creates a batch resolver.
func NewBatchResolver(conns connection.Repository, cache geocache.Repository, lookup Lookup, logger *slog.Logger, opts ...ResolverOption) *BatchResolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &BatchResolver{
		conns:     conns,
		cache:     cache,
		lookup:    lookup,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs one batch. Rows are handled strictly in selection order: the
// external service's rate ceiling is respected by serializing lookups, never
// by parallelizing them.
func (r *BatchResolver) Resolve(ctx context.Context) (BatchResult, error) {
	start := time.Now()

	ctx, endSpan := tracing.StartSpan(ctx, "geocode_batch")
	var spanErr error
	defer func() { endSpan(spanErr) }()
	tracing.SetAttributes(ctx, attribute.Int("geocode.batch_size", r.batchSize))

	pending, err := r.conns.ListPendingGeocode(ctx, r.batchSize)
	if err != nil {
		spanErr = err
		r.recordJob(jobs.StatusFailure, start)
		return BatchResult{}, err
	}

	if len(pending) == 0 {
		r.recordJob(jobs.StatusSuccess, start)
		return BatchResult{
			Done:    true,
			Message: "No pending connections to geocode.",
		}, nil
	}

	var updated int
	for _, conn := range pending {
		if conn.Company == nil {
			continue
		}
		if r.resolveRow(ctx, conn) {
			updated++
		}
	}

	tracing.SetAttributes(ctx,
		attribute.Int("geocode.processed", len(pending)),
		attribute.Int("geocode.updated", updated),
	)
	r.recordJob(jobs.StatusSuccess, start)
	return BatchResult{
		Processed: len(pending),
		Updated:   updated,
	}, nil
}

// resolveRow resolves a single connection. Returns true when coordinates
// were written.
func (r *BatchResolver) resolveRow(ctx context.Context, conn *connection.Connection) bool {
	company := *conn.Company

	cached, err := r.cache.Lookup(ctx, company)
	if err != nil {
		r.logger.Error("location cache lookup failed",
			slog.String("error", err.Error()),
			slog.String("company", company))
		return false
	}

	if cached != nil {
		tracing.AddEvent(ctx, "location_cache_hit", attribute.String("geocode.company", company))
		r.countRow(jobs.RowOutcomeCacheHit)
		return r.applyLocation(ctx, conn, cached.Latitude, cached.Longitude, cached.City, cached.Country)
	}

	result, err := r.lookup.Lookup(ctx, company)
	if err != nil {
		// Caught and logged; the row stays unresolved and the batch moves on.
		r.countRow(jobs.RowOutcomeLookupFail)
		if r.metrics != nil {
			r.metrics.IncJobErrors(jobs.JobTypeGeocodeBatch, "lookup_failed")
		}
		r.logger.Warn("external lookup failed",
			slog.String("error", err.Error()),
			slog.String("company", company))
		return false
	}
	if result == nil {
		// Zero results: no cache write, coordinates stay null.
		r.countRow(jobs.RowOutcomeNoResult)
		return false
	}

	// The cache stores the unjittered base point, first writer wins. A crash
	// between this write and the connection update is safe: the next batch
	// rereads the populated cache and finishes the row.
	if err := r.cache.PopulateIfAbsent(ctx, &geocache.Entry{
		CompanyName: company,
		Latitude:    result.Latitude,
		Longitude:   result.Longitude,
		City:        result.City(),
		Country:     result.Country(),
	}); err != nil {
		r.logger.Error("location cache populate failed",
			slog.String("error", err.Error()),
			slog.String("company", company))
	}

	r.countRow(jobs.RowOutcomeResolved)
	return r.applyLocation(ctx, conn, result.Latitude, result.Longitude, result.City(), result.Country())
}

// applyLocation writes freshly jittered coordinates onto the connection so
// co-located markers scatter independently.
func (r *BatchResolver) applyLocation(ctx context.Context, conn *connection.Connection, baseLat, baseLng float64, city, country *string) bool {
	lat, lng := geo.Jitter(baseLat, baseLng)
	if err := r.conns.SetResolvedLocation(ctx, conn.ID, lat, lng, city, country); err != nil {
		r.logger.Error("failed to write resolved location",
			slog.String("error", err.Error()),
			slog.String("connection_id", conn.ID))
		return false
	}
	return true
}

func (r *BatchResolver) recordJob(status string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.IncJobsTotal(jobs.JobTypeGeocodeBatch, status)
	r.metrics.ObserveJobDuration(jobs.JobTypeGeocodeBatch, time.Since(start).Seconds())
}

func (r *BatchResolver) countRow(outcome string) {
	if r.metrics != nil {
		r.metrics.IncGeocodeRows(outcome)
	}
}
