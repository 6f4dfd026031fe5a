package graph

import (
	"context"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

type loaderKey struct{}

// WithLoader attaches the request's snapshot loader to ctx.
func WithLoader(ctx context.Context, l snapshots.SnapshotLoader) context.Context {
	return context.WithValue(ctx, loaderKey{}, l)
}

// LoaderFrom returns the loader attached by WithLoader.
func LoaderFrom(ctx context.Context) (snapshots.SnapshotLoader, bool) {
	l, ok := ctx.Value(loaderKey{}).(snapshots.SnapshotLoader)
	return l, ok && l != nil
}
