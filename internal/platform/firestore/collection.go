package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection provides typed helpers wrapping Firestore collection access.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds a typed helper to a collection name.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{
		provider: provider,
		name:     strings.TrimSpace(name),
	}
}

// Set upserts the given value under the provided document ID.
func (c *Collection[T]) Set(ctx context.Context, id string, value T, opts ...firestore.SetOption) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Set(ctx, value, opts...); err != nil {
		return WrapError(c.op("set"), err)
	}
	return nil
}

// Create inserts the value, failing when the document already exists.
func (c *Collection[T]) Create(ctx context.Context, id string, value T) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Create(ctx, value); err != nil {
		return WrapError(c.op("create"), err)
	}
	return nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Delete(ctx); err != nil {
		return WrapError(c.op("delete"), err)
	}
	return nil
}

// Get fetches the document by ID and decodes it into the typed entity.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var value T
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return value, err
	}
	snapshot, err := doc.Get(ctx)
	if err != nil {
		return value, WrapError(c.op("get"), err)
	}
	if err := snapshot.DataTo(&value); err != nil {
		return value, fmt.Errorf("firestore: decode document %s: %w", id, err)
	}
	return value, nil
}

// Query executes a collection query and returns the decoded documents.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]T, error) {
	coll, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}

	query := coll.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var values []T
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		var value T
		if err := snapshot.DataTo(&value); err != nil {
			return nil, fmt.Errorf("firestore: decode document %s: %w", snapshot.Ref.ID, err)
		}
		values = append(values, value)
	}
	return values, nil
}

// Ref exposes the collection reference for advanced scenarios.
func (c *Collection[T]) Ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, WrapError(c.op("collection"), errors.New("firestore: provider is nil"))
	}
	if c.name == "" {
		return nil, WrapError(c.op("collection"), errors.New("firestore: collection name is required"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

// Doc exposes the document reference for advanced scenarios such as transactions.
func (c *Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (c *Collection[T]) op(action string) string {
	name := "firestore"
	if c != nil && c.name != "" {
		name = c.name
	}
	return fmt.Sprintf("%s.%s", name, action)
}
