package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Document is a decoded snapshot with its server timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// BaseRepository is typed access to one collection using Firestore struct tags. Errors are
// wrapped by WrapError.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
}

func NewBaseRepository[T any](provider *Provider, collection string) *BaseRepository[T] {
	return &BaseRepository[T]{provider: provider, collection: strings.TrimSpace(collection)}
}

func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	ref, err := r.Ref(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return r.decode(snap)
}

// GetTx reads id inside tx. A missing document returns found=false and no error.
func (r *BaseRepository[T]) GetTx(tx *firestore.Transaction, ref *firestore.DocumentRef) (doc Document[T], found bool, err error) {
	snap, err := tx.Get(ref)
	switch {
	case status.Code(err) == codes.NotFound:
		return Document[T]{}, false, nil
	case err != nil:
		return Document[T]{}, false, WrapError(r.op("get"), err)
	}
	doc, err = r.decode(snap)
	return doc, err == nil, err
}

// Set overwrites id with value.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T) error {
	ref, err := r.Ref(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, value); err != nil {
		return WrapError(r.op("set"), err)
	}
	return nil
}

// Ref resolves the document reference, dialling the client if needed.
func (r *BaseRepository[T]) Ref(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	switch {
	case r.provider == nil || r.collection == "":
		return nil, WrapError(r.op("ref"), errors.New("firestore: repository not configured"))
	case strings.TrimSpace(id) == "":
		return nil, WrapError(r.op("ref"), errors.New("firestore: document id is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection).Doc(id), nil
}

func (r *BaseRepository[T]) decode(snap *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode %s/%s: %w", r.collection, snap.Ref.ID, err)
	}
	return Document[T]{ID: snap.Ref.ID, Data: data, CreateTime: snap.CreateTime, UpdateTime: snap.UpdateTime}, nil
}

func (r *BaseRepository[T]) op(action string) string {
	return r.collection + "." + action
}
