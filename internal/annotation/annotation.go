// Package annotation stores notes attached to anchored spans of a document.
// Annotations persist only the serialized Target; they are resolved against
// the live tree whenever they are read.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/docanchor/internal/anchor"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when an annotation does not exist.
var ErrNotFound = errors.New("annotation not found")

// Annotation is a note attached to a span of a document.
type Annotation struct {
	ID        string        `json:"id" validate:"required"`
	DocID     string        `json:"doc_id" validate:"required,max=256"`
	Target    anchor.Target `json:"target"`
	Body      string        `json:"body" validate:"max=65536"`
	CreatedAt time.Time     `json:"created_at"`
}

var validate = validator.New()

// New builds a validated annotation with a fresh time-ordered id.
func New(docID string, target anchor.Target, body string) (Annotation, error) {
	a := Annotation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		DocID:     docID,
		Target:    target,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return Annotation{}, err
	}
	return a, nil
}

// Validate checks the annotation fields and its target.
func (a Annotation) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid annotation: %w", err)
	}
	return a.Target.Validate()
}

// Store persists annotations per document. List returns annotations in
// creation order.
type Store interface {
	Put(ctx context.Context, a Annotation) error
	Get(ctx context.Context, docID, id string) (Annotation, error)
	List(ctx context.Context, docID string) ([]Annotation, error)
	Delete(ctx context.Context, docID, id string) error
	Close() error
}

// Key returns the storage key of an annotation. Keys of one document share
// the prefix returned by Prefix.
func Key(docID, id string) string { return Prefix(docID) + id }

// Prefix returns the key prefix for all annotations of docID.
func Prefix(docID string) string { return "ann/" + docID + "/" }
