// Package httpstore is the production Store client: a thin resty
// wrapper over the bi-temporal document store's HTTP API (spec.md
// §6). Adopted from the rest of the retrieved pack — resty is already
// a dependency pulled in transitively by the picoclaw repos' chat-SDK
// stack; here it is exercised directly as the store's REST client.
package httpstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jg-phare/ctxcore/internal/object"
	"github.com/jg-phare/ctxcore/internal/store"
)

const (
	defaultBaseURL = "http://127.0.0.1:3000"
	defaultTimeout = 10 * time.Second
	settleDelay    = 150 * time.Millisecond
)

// Store is a resty-backed implementation of store.Store.
type Store struct {
	client *resty.Client
}

// Option configures a Store.
type Option func(*Store)

// WithBaseURL overrides the store's base URL (default
// http://127.0.0.1:3000, matching spec.md §6's default).
func WithBaseURL(url string) Option {
	return func(s *Store) { s.client.SetBaseURL(url) }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.client.SetTimeout(d) }
}

// WithRetries configures automatic retry count for transient
// transport failures.
func WithRetries(n int) Option {
	return func(s *Store) { s.client.SetRetryCount(n) }
}

// New builds an httpstore.Store against defaultBaseURL unless
// overridden by an Option.
func New(opts ...Option) *Store {
	c := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(defaultTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond)

	s := &Store{client: c}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type putRequest struct {
	Doc       object.Object `json:"doc"`
	ValidTime int64         `json:"validTime,omitempty"`
}

func (s *Store) Put(ctx context.Context, doc store.Doc, validTime time.Time) error {
	req := putRequest{Doc: doc}
	if !validTime.IsZero() {
		req.ValidTime = validTime.UnixMilli()
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/put")
	if err != nil {
		return fmt.Errorf("store put: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("store put: %s", resp.Status())
	}
	return nil
}

func (s *Store) PutAndWait(ctx context.Context, doc store.Doc, validTime time.Time) error {
	if err := s.Put(ctx, doc, validTime); err != nil {
		return err
	}
	// The store contract only guarantees visibility after a short
	// settle delay (spec.md §6); a real bi-temporal store would offer
	// a stronger "wait" primitive, but HTTP semantics here are
	// fire-and-confirm plus a bounded settle.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settleDelay):
	}
	return nil
}

type getResponse struct {
	Found bool          `json:"found"`
	Doc   object.Object `json:"doc"`
}

func (s *Store) Get(ctx context.Context, id string) (store.Doc, bool, error) {
	var out getResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		Get("/objects/{id}")
	if err != nil {
		return store.Doc{}, false, fmt.Errorf("store get: %w", err)
	}
	if resp.StatusCode() == 404 {
		return store.Doc{}, false, nil
	}
	if resp.IsError() {
		return store.Doc{}, false, fmt.Errorf("store get: %s", resp.Status())
	}
	return out.Doc, out.Found, nil
}

func (s *Store) GetAsOf(ctx context.Context, id string, validTime time.Time) (store.Doc, bool, error) {
	var out getResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetQueryParam("validTime", fmt.Sprintf("%d", validTime.UnixMilli())).
		SetResult(&out).
		Get("/objects/{id}/as-of")
	if err != nil {
		return store.Doc{}, false, fmt.Errorf("store getAsOf: %w", err)
	}
	if resp.StatusCode() == 404 {
		return store.Doc{}, false, nil
	}
	if resp.IsError() {
		return store.Doc{}, false, fmt.Errorf("store getAsOf: %s", resp.Status())
	}
	return out.Doc, out.Found, nil
}

type historyResponse struct {
	Versions []object.Object `json:"versions"`
}

func (s *Store) History(ctx context.Context, id string) ([]store.Doc, error) {
	var out historyResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		Get("/objects/{id}/history")
	if err != nil {
		return nil, fmt.Errorf("store history: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("store history: %s", resp.Status())
	}
	return out.Versions, nil
}

type queryRequest struct {
	IDs []string `json:"ids"`
}

type queryResponse struct {
	Docs []object.Object `json:"docs"`
}

func (s *Store) Query(ctx context.Context, ids []string) ([]store.Doc, error) {
	var out queryResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(queryRequest{IDs: ids}).
		SetResult(&out).
		Post("/query")
	if err != nil {
		return nil, fmt.Errorf("store query: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("store query: %s", resp.Status())
	}
	return out.Docs, nil
}

var _ store.Store = (*Store)(nil)
