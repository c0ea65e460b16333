package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/snapdiff/internal/logging"
)

// SnapshotLoader loads one snapshot. Implementations return *LoadError on failure
// and must normalize blank and null cells to the zero Value.
type SnapshotLoader interface {
	Load(ctx context.Context, source string, ordinal int) (Snapshot, error)
}

// ReportSink writes an assembled report and returns where it went.
// Implementations return *SinkError on failure.
type ReportSink interface {
	Write(ctx context.Context, report Report) (string, error)
}

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	// LoadConcurrency is the number of snapshots loaded at once (default: 1).
	LoadConcurrency int

	// MaxConcurrentRuns bounds simultaneous runs. Zero disables the limiter.
	MaxConcurrentRuns int

	// MaxRunWait is how long a run waits for a slot when the limiter is enabled.
	MaxRunWait time.Duration
}

// RunRequest names the snapshots of one comparison run.
type RunRequest struct {
	Sources   []string // Ordered source identifiers, at least two
	KeyColumn string   // Grouping column shared by every snapshot
}

// RunResult is the outcome of Service.Run.
type RunResult struct {
	Report   Report
	Location string // Where the sink wrote the report, empty without a sink
}

// Service drives comparison runs: it loads snapshots, compares consecutive
// pairs, assembles the report and hands it to the sink.
type Service struct {
	loader  SnapshotLoader
	sink    ReportSink
	cfg     ServiceConfig
	limiter *RunLimiter

	now   func() time.Time
	newID func() string
}

// NewService creates a Service. sink may be nil when the caller renders the
// report itself.
func NewService(loader SnapshotLoader, sink ReportSink, cfg ServiceConfig) *Service {
	if cfg.LoadConcurrency <= 0 {
		cfg.LoadConcurrency = 1
	}
	s := &Service{
		loader: loader,
		sink:   sink,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	if cfg.MaxConcurrentRuns > 0 {
		s.limiter = NewRunLimiter(cfg.MaxConcurrentRuns, cfg.MaxRunWait)
	}
	return s
}

// Limiter returns the run limiter, or nil when runs are unbounded.
func (s *Service) Limiter() *RunLimiter {
	return s.limiter
}

// Run compares the requested snapshots and writes the report to the sink.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	report, err := s.Compare(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Report: report}
	if s.sink == nil {
		return result, nil
	}

	loc, err := s.sink.Write(ctx, report)
	if err != nil {
		return nil, err
	}
	result.Location = loc

	logging.FromContext(ctx).Info("report written", "run_id", report.ID, "location", loc)
	return result, nil
}

// Compare loads the requested snapshots and returns the assembled report.
func (s *Service) Compare(ctx context.Context, req RunRequest) (Report, error) {
	if len(req.Sources) < 2 {
		return Report{}, ErrInsufficientSnapshots
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return Report{}, err
	}
	defer release()

	id := s.newID()
	ctx = logging.WithRunID(ctx, id)

	snapshots, err := s.loadAll(ctx, req.Sources)
	if err != nil {
		return Report{}, err
	}

	return s.compare(ctx, id, snapshots, req.KeyColumn)
}

// CompareSnapshots compares snapshots the caller has already loaded.
func (s *Service) CompareSnapshots(ctx context.Context, snapshots []Snapshot, keyColumn string) (Report, error) {
	if len(snapshots) < 2 {
		return Report{}, ErrInsufficientSnapshots
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return Report{}, err
	}
	defer release()

	id := s.newID()
	return s.compare(logging.WithRunID(ctx, id), id, snapshots, keyColumn)
}

// WriteReport hands an already assembled report to the sink.
func (s *Service) WriteReport(ctx context.Context, report Report) (string, error) {
	if s.sink == nil {
		return "", nil
	}
	return s.sink.Write(ctx, report)
}

func (s *Service) compare(ctx context.Context, id string, snapshots []Snapshot, keyColumn string) (Report, error) {
	logger := logging.FromContext(ctx)
	start := s.now()

	sources := make([]string, len(snapshots))
	for i, snap := range snapshots {
		sources[i] = snap.Source
	}
	logger.Info("comparison started", "snapshots", len(snapshots), "key_column", keyColumn)

	results := make([]ComparisonResult, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		if err := ctx.Err(); err != nil {
			return Report{}, fmt.Errorf("comparison cancelled: %w", err)
		}

		res := ComparePair(snapshots[i-1], snapshots[i], keyColumn)
		res.Index = i
		if res.Failed() {
			logger.Warn("pair skipped",
				"pair", i,
				"previous", res.Previous,
				"current", res.Current,
				"error", res.Err,
			)
		} else {
			logger.Debug("pair compared",
				"pair", i,
				"previous", res.Previous,
				"current", res.Current,
				"deltas", len(res.Deltas),
				"unchanged", res.Unchanged,
			)
		}
		results = append(results, res)
	}

	report := Assemble(results, RunMetadata{
		ID:          id,
		GeneratedAt: s.now(),
		KeyColumn:   keyColumn,
		Sources:     sources,
	})

	logger.Info("comparison finished",
		"pairs", len(results),
		"failed_pairs", report.Failures(),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return report, nil
}

// loadAll loads every source, at most LoadConcurrency at a time, preserving order.
// The first load failure cancels the rest and is returned unmodified.
func (s *Service) loadAll(ctx context.Context, sources []string) ([]Snapshot, error) {
	snapshots := make([]Snapshot, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.LoadConcurrency)

	for i, src := range sources {
		g.Go(func() error {
			snap, err := s.loader.Load(gctx, src, i)
			if err != nil {
				return err
			}
			snap.Ordinal = i
			if snap.Source == "" {
				snap.Source = src
			}
			snapshots[i] = snap
			logging.FromContext(gctx).Debug("snapshot loaded",
				"source", src,
				"ordinal", i,
				"records", len(snap.Records),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	if s.limiter == nil {
		return func() {}, nil
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	return s.limiter.Release, nil
}
