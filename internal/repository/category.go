package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/model"
	"github.com/examforge/examforge/internal/persist"
)

// CategoryRepository is a thin facade over the generic engine; categories
// need no per-entity query code.
type CategoryRepository struct {
	base *persist.Repository[model.Category]
}

// NewCategoryRepository wires the repository.
func NewCategoryRepository(store *persist.Store, opts ...persist.Option) (*CategoryRepository, error) {
	base, err := persist.NewRepository[model.Category](store, opts...)
	if err != nil {
		return nil, err
	}
	return &CategoryRepository{base: base}, nil
}

// Base exposes the generic facade.
func (r *CategoryRepository) Base() *persist.Repository[model.Category] {
	return r.base
}

// ListRoots returns every category without a parent.
func (r *CategoryRepository) ListRoots(ctx context.Context) ([]model.Category, error) {
	f := r.base.Filter().IsNull("ParentId")
	return r.base.GetAll(ctx, f)
}

// ListChildren returns the direct children of one category.
func (r *CategoryRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.Category, error) {
	f := r.base.Filter().Eq("ParentId", parentID)
	return r.base.GetAll(ctx, f)
}
