package pathstore

import (
	"context"
	"sort"
	"time"

	"github.com/dgallion1/docanchor/internal/annotation"
)

// Store implements annotation.Store on top of Client.
// Transient failures are retried with exponential backoff.
type Store struct {
	client *Client
	source string
	// BackoffBase is the first retry delay.
	BackoffBase time.Duration
}

var _ annotation.Store = (*Store)(nil)

// NewStore wraps client. Every write is tagged with source.
func NewStore(client *Client, source string) *Store {
	return &Store{client: client, source: source, BackoffBase: time.Second}
}

func (s *Store) Put(ctx context.Context, a annotation.Annotation) error {
	return retry(ctx, s.BackoffBase, func() error {
		return s.client.PutAnnotation(ctx, a, s.source)
	})
}

func (s *Store) Get(ctx context.Context, docID, id string) (annotation.Annotation, error) {
	var a annotation.Annotation
	err := retry(ctx, s.BackoffBase, func() error {
		var err error
		a, err = s.client.GetAnnotation(ctx, docID, id)
		return err
	})
	return a, err
}

// List returns the document's annotations. Ids are time-ordered, so sorting
// by id yields creation order.
func (s *Store) List(ctx context.Context, docID string) ([]annotation.Annotation, error) {
	var out []annotation.Annotation
	err := retry(ctx, s.BackoffBase, func() error {
		var err error
		out, err = s.client.ListAnnotations(ctx, docID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete checks the key first, since the service deletes missing keys
// without complaint.
func (s *Store) Delete(ctx context.Context, docID, id string) error {
	if _, err := s.Get(ctx, docID, id); err != nil {
		return err
	}
	return retry(ctx, s.BackoffBase, func() error {
		return s.client.DeleteAnnotation(ctx, docID, id)
	})
}

func (s *Store) Close() error {
	s.client.Close()
	return nil
}
