package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/markdave123-py/contexta/internal/models"
)

// DefaultWorkers is the ingestion concurrency when none is configured.
const DefaultWorkers = 4

// Runner executes ingestions on a bounded ants worker pool, so a burst of
// uploads queues up instead of exhausting the process.
type Runner struct {
	pool     *ants.Pool
	ingestor Ingestor
	logger   *slog.Logger
}

var (
	_ Enqueuer = (*Runner)(nil)
	_ Ingestor = (*Runner)(nil)
)

func NewRunner(ingestor Ingestor, workers int, logger *slog.Logger) (*Runner, error) {
	if ingestor == nil {
		return nil, ErrIngestorRequired
	}
	if workers < 1 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create ingestion pool: %w", err)
	}
	return &Runner{pool: pool, ingestor: ingestor, logger: logger.With("component", "ingest-runner")}, nil
}

type runResult struct {
	report *models.IngestionReport
	err    error
}

// Run ingests on a worker and waits for the outcome. The ingestion itself is
// detached from ctx: if the caller gives up, Run returns ctx.Err() while the
// worker carries on to its next commit or failure.
func (r *Runner) Run(ctx context.Context, req IngestRequest) (*models.IngestionReport, error) {
	done := make(chan runResult, 1)
	detached := context.WithoutCancel(ctx)

	err := r.pool.Submit(func() {
		rep, err := r.ingestor.Ingest(detached, req)
		if err != nil && ctx.Err() != nil {
			r.logger.Warn("ingestion failed after caller left", "file", req.FilePath, "err", err)
		}
		done <- runResult{report: rep, err: err}
	})
	if err != nil {
		r.discard(req)
		return nil, fmt.Errorf("submit ingestion: %w", err)
	}

	select {
	case res := <-done:
		return res.report, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ingest makes a Runner usable wherever an Ingestor is expected.
func (r *Runner) Ingest(ctx context.Context, req IngestRequest) (*models.IngestionReport, error) {
	return r.Run(ctx, req)
}

// Enqueue schedules an ingestion and returns immediately; the outcome is logged.
func (r *Runner) Enqueue(req IngestRequest) error {
	err := r.pool.Submit(func() {
		rep, err := r.ingestor.Ingest(context.Background(), req)
		if err != nil {
			r.logger.Error("background ingestion failed", "file", req.FilePath, "err", err)
			return
		}
		r.logger.Info("background ingestion done", "file", req.FilePath, "document_id", rep.DocumentID, "chunks", rep.ChunkCount)
	})
	if err != nil {
		r.discard(req)
		return fmt.Errorf("submit ingestion: %w", err)
	}
	return nil
}

// Running reports how many ingestions are in progress.
func (r *Runner) Running() int {
	return r.pool.Running()
}

// Close waits up to timeout for in-flight ingestions, then stops the pool.
func (r *Runner) Close(timeout time.Duration) error {
	if err := r.pool.ReleaseTimeout(timeout); err != nil && !errors.Is(err, ants.ErrPoolClosed) {
		return err
	}
	return nil
}

// discard removes the scratch file of a request that never reached a worker.
func (r *Runner) discard(req IngestRequest) {
	if req.Temporary {
		_ = os.Remove(req.FilePath)
	}
}
