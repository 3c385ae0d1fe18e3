package domain

import (
	"errors"
	"fmt"
)

// ErrRelationNotFound reports access to a relation that was never loaded.
var ErrRelationNotFound = errors.New("domain: relation not found")

// RelationNotFoundError names the model and relation that were read without being loaded.
type RelationNotFoundError struct {
	Model    string
	Relation string
}

func (e *RelationNotFoundError) Error() string {
	return fmt.Sprintf("domain: relation %q not loaded on %s", e.Relation, e.Model)
}

// Is reports ErrRelationNotFound equivalence for errors.Is.
func (e *RelationNotFoundError) Is(target error) bool {
	return target == ErrRelationNotFound
}

// Relation holds a single related model populated by an explicit loading step.
// The zero value is an unloaded relation.
type Relation[T any] struct {
	value  T
	loaded bool
}

// LoadedRelation wraps an already resolved related model.
func LoadedRelation[T any](value T) Relation[T] {
	return Relation[T]{value: value, loaded: true}
}

// Loaded reports whether the relation was resolved.
func (r Relation[T]) Loaded() bool {
	return r.loaded
}

func (r Relation[T]) get(model, name string) (T, error) {
	if !r.loaded {
		var zero T
		return zero, &RelationNotFoundError{Model: model, Relation: name}
	}
	return r.value, nil
}

// RelationList holds a to-many relation. A loaded list may be empty.
type RelationList[T any] struct {
	values []T
	loaded bool
}

// LoadedRelationList wraps resolved related models.
func LoadedRelationList[T any](values []T) RelationList[T] {
	if values == nil {
		values = []T{}
	}
	return RelationList[T]{values: values, loaded: true}
}

// Loaded reports whether the relation was resolved.
func (r RelationList[T]) Loaded() bool {
	return r.loaded
}

func (r RelationList[T]) get(model, name string) ([]T, error) {
	if !r.loaded {
		return nil, &RelationNotFoundError{Model: model, Relation: name}
	}
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out, nil
}
