package templates

import (
	"context"
	"errors"
)

var ErrTemplateExists = errors.New("template already exists")

// Store owns the template collection. Implementations keep insertion order
// and make Create and Delete atomic with respect to each other.
type Store interface {
	List(ctx context.Context) ([]Template, error)
	Get(ctx context.Context, id string) (Template, bool, error)
	// Create appends t, or returns ErrTemplateExists without mutating.
	Create(ctx context.Context, t Template) error
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}
