// Package snapshots holds the public types, interfaces and error taxonomy of the
// crystal snapshot subgraph.
//
// The subgraph resolves the crystalSnapshots field of a DataCollection entity.
// Lookups issued while a single request is being resolved are coalesced into one
// bulk query against the Store, every raw path of the returned records is turned
// into a time-limited URL by the Signer, and each caller receives the URLs for
// its own key.
//
// Errors returned by a load are classified with the sentinel values in this
// package:
//
//	urls, ok, err := loader.Load(ctx, 1234)
//	switch {
//	case errors.Is(err, snapshots.ErrBackingStore):
//	    // the bulk query failed
//	case errors.Is(err, snapshots.ErrSigning):
//	    // a raw path could not be signed
//	case errors.Is(err, snapshots.ErrCancelled):
//	    // the request went away before the batch completed
//	case !ok:
//	    // no snapshots recorded for this data collection
//	}
package snapshots
