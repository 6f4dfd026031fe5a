// Package loader resolves the signed crystal snapshot URLs of data collections.
//
// A Loader belongs to one inbound request. Concurrent Load calls made while a
// batch window is open are answered by a single bulk store query, after which
// every recorded path is signed. A failure of either step fails the whole
// batch: each caller receives the same *snapshots.BatchError.
package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xtal-snapshots/crystal-snapshots/internal/batch"
	"github.com/xtal-snapshots/crystal-snapshots/internal/metrics"
	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// SpanName is the name of the span recorded for every batch.
const SpanName = "load_crystal_snapshot"

// InstrumentationName names the tracer used for batch spans.
const InstrumentationName = "github.com/xtal-snapshots/crystal-snapshots/internal/loader"

// Deps are the collaborators a Loader needs.
type Deps struct {
	Store  snapshots.Store
	Signer snapshots.Signer
	Bucket string

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger

	// Metrics defaults to metrics.Noop.
	Metrics metrics.Recorder

	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
}

// Loader implements snapshots.SnapshotLoader for a single request.
type Loader struct {
	batch *batch.Loader[uint32, []string]

	store           snapshots.Store
	signer          snapshots.Signer
	bucket          string
	signConcurrency int

	parent  trace.SpanContext
	tracer  trace.Tracer
	logger  zerolog.Logger
	metrics metrics.Recorder
}

var _ snapshots.SnapshotLoader = (*Loader)(nil)

// New creates a Loader scoped to ctx. The span active in ctx becomes the
// parent of every batch span, and cancelling ctx releases all waiting callers
// with snapshots.ErrCancelled.
func New(ctx context.Context, deps Deps, opts snapshots.LoaderOptions) *Loader {
	if deps.Store == nil {
		panic("store cannot be nil")
	}
	if deps.Signer == nil {
		panic("signer cannot be nil")
	}

	l := &Loader{
		store:           deps.Store,
		signer:          deps.Signer,
		bucket:          deps.Bucket,
		signConcurrency: opts.SignConcurrency,
		parent:          trace.SpanContextFromContext(ctx),
		tracer:          deps.Tracer,
		logger:          zerolog.Nop(),
		metrics:         deps.Metrics,
	}
	if deps.Logger != nil {
		l.logger = *deps.Logger
	}
	if l.metrics == nil {
		l.metrics = metrics.Noop{}
	}
	if l.tracer == nil {
		l.tracer = otel.Tracer(InstrumentationName)
	}
	if l.signConcurrency < 1 {
		l.signConcurrency = snapshots.DefaultSignConcurrency
	}

	l.batch = batch.New(ctx, l.fetch, batch.Options{
		Wait:     opts.BatchWait,
		MaxBatch: opts.MaxBatch,
	})
	return l
}

// Load returns the signed snapshot URLs of data collection id in slot order.
// ok is false when the data collection has no recorded snapshots.
func (l *Loader) Load(ctx context.Context, id uint32) ([]string, bool, error) {
	urls, ok, err := l.batch.Load(ctx, id)
	if err != nil {
		return nil, false, batchError(id, err)
	}
	if !ok {
		return nil, false, nil
	}
	// Callers sharing an id each get their own slice.
	return slices.Clone(urls), true, nil
}

// batchError gives failures that never reached fetch, such as a caller
// giving up while its window is still open, the same shape as batch failures.
func batchError(id uint32, err error) error {
	var be *snapshots.BatchError
	if errors.As(err, &be) {
		return err
	}
	kind := snapshots.ErrBackingStore
	if errors.Is(err, snapshots.ErrCancelled) {
		kind = snapshots.ErrCancelled
	}
	return &snapshots.BatchError{Kind: kind, Keys: []uint32{id}, Err: err}
}

// fetch runs one batch: a bulk store query followed by signing every path.
func (l *Loader) fetch(ctx context.Context, ids []uint32) (map[uint32][]string, error) {
	if l.parent.IsValid() {
		ctx = trace.ContextWithSpanContext(ctx, l.parent)
	}
	ctx, span := l.tracer.Start(ctx, SpanName, trace.WithAttributes(
		attribute.Int("batch.keys", len(ids)),
	))
	defer span.End()

	start := time.Now()

	records, err := l.store.FetchSnapshots(ctx, ids)
	if err != nil {
		return nil, l.fail(ctx, span, snapshots.ErrBackingStore, ids, err, start)
	}

	signed, err := l.signAll(ctx, records)
	if err != nil {
		return nil, l.fail(ctx, span, snapshots.ErrSigning, ids, err, start)
	}

	results := make(map[uint32][]string, len(records))
	urls := 0
	for i, rec := range records {
		if len(signed[i]) == 0 {
			continue
		}
		results[rec.DataCollectionID] = append(results[rec.DataCollectionID], signed[i]...)
		urls += len(signed[i])
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int("batch.records", len(records)),
		attribute.Int("batch.signed_urls", urls),
	)
	l.metrics.ObserveBatch(len(ids), metrics.OutcomeOK, elapsed)
	l.metrics.AddSignedURLs(urls)
	l.logger.Debug().
		Int("keys", len(ids)).
		Int("records", len(records)).
		Int("signed_urls", urls).
		Dur("elapsed", elapsed).
		Msg("snapshot batch loaded")

	return results, nil
}

// signAll signs the non-empty slots of every record. The result is indexed
// like records and keeps slot order.
func (l *Loader) signAll(ctx context.Context, records []snapshots.SnapshotRecord) ([][]string, error) {
	signed := make([][]string, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.signConcurrency)

	for i, rec := range records {
		paths := rec.RawPaths()
		signed[i] = make([]string, len(paths))
		for j, path := range paths {
			g.Go(func() error {
				url, err := l.signer.Sign(gctx, l.bucket, path, snapshots.SignedURLExpiry)
				if err != nil {
					return fmt.Errorf("sign %q for data collection %d: %w", path, rec.DataCollectionID, err)
				}
				signed[i][j] = url
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return signed, nil
}

// fail builds the error shared by every caller of the batch. A failure seen
// after the owning request went away is reported as a cancellation.
func (l *Loader) fail(ctx context.Context, span trace.Span, kind error, ids []uint32, cause error, start time.Time) error {
	outcome := metrics.OutcomeStoreError
	if kind == snapshots.ErrSigning {
		outcome = metrics.OutcomeSigningError
	}
	if ctx.Err() != nil {
		kind = snapshots.ErrCancelled
		outcome = metrics.OutcomeCancelled
	}

	err := &snapshots.BatchError{
		Kind: kind,
		Keys: slices.Clone(ids),
		Err:  cause,
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, kind.Error())
	l.metrics.ObserveBatch(len(ids), outcome, time.Since(start))

	ev := l.logger.Error()
	if kind == snapshots.ErrCancelled {
		ev = l.logger.Debug()
	}
	ev.Err(cause).Int("keys", len(ids)).Str("kind", kind.Error()).Msg("snapshot batch failed")

	return err
}
