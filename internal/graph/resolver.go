package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// errNoLoader means the server did not attach a loader to the request.
var errNoLoader = errors.New("no snapshot loader in request context")

// Resolver is the root query resolver.
type Resolver struct{}

// RouterDataCollection returns the data collection entity for id. Nothing is
// looked up until one of its fields is selected.
func (r *Resolver) RouterDataCollection(args struct{ ID int32 }) (*DataCollectionResolver, error) {
	if args.ID < 0 {
		return nil, fmt.Errorf("data collection id %d is negative", args.ID)
	}
	return &DataCollectionResolver{id: uint32(args.ID)}, nil
}

// Entities resolves router representations. Representations of other types
// resolve to null.
func (r *Resolver) Entities(args struct{ Representations []Any }) ([]*EntityResolver, error) {
	out := make([]*EntityResolver, len(args.Representations))
	for i, rep := range args.Representations {
		if rep.Typename() != "DataCollection" {
			continue
		}
		id, err := rep.dataCollectionID()
		if err != nil {
			return nil, fmt.Errorf("representation %d: %w", i, err)
		}
		out[i] = &EntityResolver{dc: &DataCollectionResolver{id: id}}
	}
	return out, nil
}

// DataCollectionResolver is the placeholder entity carrying only its id.
type DataCollectionResolver struct {
	id uint32
}

func (d *DataCollectionResolver) DataCollectionID() int32 {
	return int32(d.id)
}

// CrystalSnapshots loads the signed snapshot URLs through the request's
// loader. A data collection without snapshots yields null.
func (d *DataCollectionResolver) CrystalSnapshots(ctx context.Context) (*[]string, error) {
	l, ok := LoaderFrom(ctx)
	if !ok {
		return nil, errNoLoader
	}

	urls, found, err := l.Load(ctx, d.id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &urls, nil
}

// EntityResolver is a member of the _Entity union.
type EntityResolver struct {
	dc *DataCollectionResolver
}

func (e *EntityResolver) ToDataCollection() (*DataCollectionResolver, bool) {
	return e.dc, e.dc != nil
}

// Any is the _Any scalar: an entity representation as sent by the router.
type Any map[string]interface{}

func (Any) ImplementsGraphQLType(name string) bool {
	return name == "_Any"
}

func (a *Any) UnmarshalGraphQL(input interface{}) error {
	m, ok := input.(map[string]interface{})
	if !ok {
		return fmt.Errorf("_Any must be an object, got %T", input)
	}
	*a = m
	return nil
}

// Typename returns the __typename of the representation.
func (a Any) Typename() string {
	s, _ := a["__typename"].(string)
	return s
}

// dataCollectionID reads the key field, accepting the numeric forms that
// literals and JSON variables decode to. Ids are limited to the GraphQL Int
// range because DataCollection.dataCollectionId echoes them back as one.
func (a Any) dataCollectionID() (uint32, error) {
	raw, ok := a["dataCollectionId"]
	if !ok {
		raw, ok = a["id"]
	}
	if !ok {
		return 0, errors.New("missing dataCollectionId")
	}

	var n float64
	switch v := raw.(type) {
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case int:
		n = float64(v)
	case float64:
		n = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("dataCollectionId %q: %w", v, err)
		}
		n = f
	case string:
		u, err := strconv.ParseUint(v, 10, 31)
		if err != nil {
			return 0, fmt.Errorf("dataCollectionId %q: %w", v, err)
		}
		return uint32(u), nil
	default:
		return 0, fmt.Errorf("dataCollectionId has unsupported type %T", raw)
	}

	if n < 0 || n > math.MaxInt32 || n != math.Trunc(n) {
		return 0, fmt.Errorf("dataCollectionId %v is not a valid id", n)
	}
	return uint32(n), nil
}
