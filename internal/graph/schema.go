// Package graph exposes data collection snapshots as a federated GraphQL
// subgraph.
package graph

import (
	"context"
	_ "embed"
	"fmt"
	"runtime"

	graphql "github.com/graph-gophers/graphql-go"
	gqlotel "github.com/graph-gophers/graphql-go/trace/otel"
	"github.com/rs/zerolog"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// SDL is the subgraph schema. The router fetches it through _service.sdl.
//
//go:embed schema.graphql
var SDL string

// Config tunes query execution.
type Config struct {
	// MaxParallelism bounds the resolvers run concurrently per request.
	MaxParallelism int

	// Logger receives resolver panics. Defaults to a disabled logger.
	Logger *zerolog.Logger
}

// NewSchema parses SDL and binds it to the resolvers.
func NewSchema(cfg Config) (*graphql.Schema, error) {
	if cfg.MaxParallelism < 1 {
		cfg.MaxParallelism = snapshots.DefaultMaxParallelism
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	schema, err := graphql.ParseSchema(SDL, &Resolver{},
		graphql.UseStringDescriptions(),
		graphql.MaxParallelism(cfg.MaxParallelism),
		graphql.Tracer(gqlotel.DefaultTracer()),
		graphql.Logger(panicLogger{logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return schema, nil
}

// panicLogger reports resolver panics through zerolog.
type panicLogger struct {
	logger zerolog.Logger
}

func (l panicLogger) LogPanic(_ context.Context, value interface{}) {
	buf := make([]byte, 16<<10)
	buf = buf[:runtime.Stack(buf, false)]
	l.logger.Error().Interface("panic", value).Bytes("stack", buf).Msg("graphql resolver panicked")
}
