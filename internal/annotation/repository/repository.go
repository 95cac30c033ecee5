package repository

import (
	"context"

	"github.com/vareng/annotator/internal/annotation/model"
)

// Store defines the contract the batch processor and submission façade use
// for the relational annotation cache. A Postgres implementation is
// provided; any backend satisfying this interface can be swapped in for
// tests.
type Store interface {
	// GetAnnotation returns the stored annotation for variantKey, or nil if
	// the variant has never been successfully annotated.
	GetAnnotation(ctx context.Context, variantKey string) (*model.Annotation, error)

	// WriteBatch persists a set of annotations transactionally. See
	// PostgresStore.WriteBatch for the delete-then-insert transcript
	// semantics.
	WriteBatch(ctx context.Context, annotations []model.Annotation) error

	// Statistics returns aggregate counts over the stored annotations.
	Statistics(ctx context.Context) (Statistics, error)
}
