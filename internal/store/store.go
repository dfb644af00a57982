// Package store defines the client-side contract for the backing
// bi-temporal document store (spec.md §6): put, get, get-as-of,
// history, and query. The store itself is a black box with HTTP
// semantics; this package only describes what ctxcore needs from it.
package store

import (
	"context"
	"time"

	"github.com/jg-phare/ctxcore/internal/object"
)

// Doc is the wire shape of one object version as persisted in the
// store: envelope fields flattened alongside the payload, the way a
// document store would key on ID and keep every put as a new version.
type Doc = object.Object

// Store is the interface every Store client implementation (HTTP,
// local JSONL fallback) satisfies.
type Store interface {
	// Put commits a new version of doc. validTime, if non-zero, records
	// the bi-temporal valid-time for the version; zero means "now".
	Put(ctx context.Context, doc Doc, validTime time.Time) error

	// PutAndWait commits doc and blocks until it is visible to
	// subsequent Get calls from this client (spec.md §6: "a short
	// settle delay (<=1s) is acceptable").
	PutAndWait(ctx context.Context, doc Doc, validTime time.Time) error

	// Get returns the latest version of id, or (Doc{}, false, nil) if
	// no version exists.
	Get(ctx context.Context, id string) (Doc, bool, error)

	// GetAsOf returns the version of id valid at or before validTime.
	GetAsOf(ctx context.Context, id string, validTime time.Time) (Doc, bool, error)

	// History returns every version of id, oldest first, as committed.
	History(ctx context.Context, id string) ([]Doc, error)

	// Query batch-fetches the latest version of each id in ids; ids with
	// no version are left out of the result. No general query language
	// is exposed through this interface.
	Query(ctx context.Context, ids []string) ([]Doc, error)
}
