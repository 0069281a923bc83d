package storage

import (
	"context"
	"errors"

	"hotspotter/internal/scene"
)

var ErrNotFound = errors.New("document not found")

// Store persists whole documents: nodes, their annotations and the selection.
type Store interface {
	// SaveDocument replaces the stored snapshot of the named document.
	SaveDocument(ctx context.Context, name string, doc *scene.Document) error

	// LoadDocument rebuilds the named document, or returns ErrNotFound.
	LoadDocument(ctx context.Context, name string) (*scene.Document, error)

	// ListDocuments returns the stored document names in alphabetical order.
	ListDocuments(ctx context.Context) ([]string, error)

	// DeleteDocument removes a document and everything attached to it.
	DeleteDocument(ctx context.Context, name string) error

	Close() error
}
