package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/notable-obs-filter/internal/dataset"
	"github.com/couchcryptid/notable-obs-filter/internal/domain"
	"github.com/couchcryptid/notable-obs-filter/internal/observability"
)

// ContextCheckInterval is how many records are processed between
// cancellation checks.
const ContextCheckInterval = 100

const defaultBatchSize = 50

// Extractor streams dataset records in file order. Next returns io.EOF after
// the last record and a *dataset.RowError for rows that cannot be parsed.
type Extractor interface {
	Next() (domain.Record, error)
	Header() []string
	Profile() dataset.Profile
}

// Transformer converts a matched record into an output row.
type Transformer interface {
	Transform(ctx context.Context, rec domain.Record) ([]string, error)
}

// Loader collects output rows and writes them once the scan completes.
type Loader interface {
	Accepts(obs domain.Observation) bool
	Add(row []string) error
	Finalize() (int, error)
	Abort()
}

// BatchPublisher sends notable records to a downstream consumer.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, records []domain.NotableRecord) error
}

// Stats summarizes a completed run.
type Stats struct {
	Read      int
	Matched   int
	Written   int
	Skipped   int
	Published int
	Species   []string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets how many records are buffered per publish call.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// Pipeline evaluates every record of one dataset against a rule index and
// routes the notable ones to the loader and, optionally, a publisher.
type Pipeline struct {
	extractor   Extractor
	index       *domain.RuleIndex
	transformer Transformer
	loader      Loader
	publisher   BatchPublisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	batchSize   int

	ready   atomic.Bool
	species atomic.Pointer[string]
}

// New creates a Pipeline. publisher may be nil to disable publishing.
func New(e Extractor, index *domain.RuleIndex, t Transformer, l Loader, pub BatchPublisher, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		index:       index,
		transformer: t,
		loader:      l,
		publisher:   pub,
		logger:      logger,
		metrics:     metrics,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once the rule index is loaded and the run has
// started.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.index == nil {
		return errors.New("rule index not loaded")
	}
	if !p.ready.Load() {
		return errors.New("filter run has not started")
	}
	return nil
}

// CurrentSpecies returns the species of the record being processed.
func (p *Pipeline) CurrentSpecies() string {
	if s := p.species.Load(); s != nil {
		return *s
	}
	return ""
}

// Run scans the whole dataset. The loader is finalized on success and
// aborted on any fatal error, including cancellation.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	profile := p.extractor.Profile()

	p.metrics.RulesLoaded.Set(float64(p.index.Len()))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.ready.Store(true)

	p.logger.Info("filter run started",
		"dataset", profile.Name,
		"rules", p.index.Len(),
		"species", p.index.SpeciesCount(),
		"publishing", p.publisher != nil,
	)

	r := &run{
		Pipeline: p,
		dataset:  profile.Name,
		header:   p.extractor.Header(),
		matched:  make(map[string]struct{}),
	}

	if err := r.scan(ctx); err != nil {
		p.loader.Abort()
		return r.stats, err
	}
	r.flush(ctx)

	written, err := p.loader.Finalize()
	if err != nil {
		return r.stats, fmt.Errorf("finalize output: %w", err)
	}
	r.stats.Written = written
	p.metrics.RecordsWritten.Add(float64(written))

	r.stats.Species = make([]string, 0, len(r.matched))
	for s := range r.matched {
		r.stats.Species = append(r.stats.Species, s)
	}
	slices.Sort(r.stats.Species)

	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("extracted species", "species", r.stats.Species)
	p.logger.Info("filter run complete",
		"read", r.stats.Read,
		"matched", r.stats.Matched,
		"written", r.stats.Written,
		"skipped", r.stats.Skipped,
		"published", r.stats.Published,
		"duration", time.Since(start),
	)
	return r.stats, nil
}

// run carries the mutable state of a single Run call.
type run struct {
	*Pipeline
	dataset string
	header  []string
	stats   Stats
	matched map[string]struct{}
	last    string
	pending []domain.NotableRecord
}

func (r *run) scan(ctx context.Context) error {
	for n := 0; ; n++ {
		if n%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				r.logger.Info("filter run stopping", "reason", err, "read", r.stats.Read)
				return err
			}
		}

		rec, err := r.extractor.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var rowErr *dataset.RowError
			if errors.As(err, &rowErr) {
				r.stats.Skipped++
				r.metrics.RecordErrors.WithLabelValues(rowErr.Reason()).Inc()
				r.logger.Warn("skipping record", "line", rowErr.Line, "error", rowErr)
				continue
			}
			return fmt.Errorf("extract record: %w", err)
		}

		r.stats.Read++
		r.metrics.RecordsRead.Inc()
		if err := r.process(ctx, rec); err != nil {
			return err
		}
	}
}

func (r *run) process(ctx context.Context, rec domain.Record) error {
	obs := rec.Observation
	if name := strings.TrimSpace(obs.Species); name != r.last {
		r.last = name
		r.species.Store(&name)
		r.logger.Debug("parsing records for", "species", name)
	}

	if !domain.IsNotable(obs, r.index) {
		return nil
	}
	r.stats.Matched++
	r.metrics.RecordsMatched.Inc()

	if rec.Excluded || !r.loader.Accepts(obs) {
		return nil
	}

	row, err := r.transformer.Transform(ctx, rec)
	if err != nil {
		return fmt.Errorf("transform line %d: %w", rec.Line, err)
	}
	if err := r.loader.Add(row); err != nil {
		return err
	}
	r.matched[r.last] = struct{}{}

	if r.publisher != nil {
		r.pending = append(r.pending, domain.NewNotableRecord(r.dataset, r.header, rec))
		if len(r.pending) >= r.batchSize {
			r.flush(ctx)
		}
	}
	return nil
}

// flush publishes buffered records. A failed batch is logged and dropped so
// that the file output is still produced.
func (r *run) flush(ctx context.Context) {
	if r.publisher == nil || len(r.pending) == 0 {
		return
	}
	batch := r.pending
	r.pending = r.pending[:0:0]

	if err := r.publisher.PublishBatch(ctx, batch); err != nil {
		r.logger.Error("publish batch failed", "error", err, "batch_size", len(batch))
		return
	}
	r.stats.Published += len(batch)
	r.metrics.RecordsPublished.Add(float64(len(batch)))
}
