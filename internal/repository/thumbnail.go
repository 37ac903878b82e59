package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/model"
	"github.com/examforge/examforge/internal/persist"
)

// thumbnailGroup partitions thumbnails by exam and size class; at most one
// row per partition carries the default marker.
var thumbnailGroup = persist.DefaultGroup{
	FlagColumn:   "IsDefault",
	GroupColumns: []string{"ExamId", "SizeClass"},
}

// ThumbnailRepository manages exam preview images and the one-default-per-
// group invariant.
type ThumbnailRepository struct {
	base *persist.Repository[model.Thumbnail]
}

// NewThumbnailRepository wires the repository.
func NewThumbnailRepository(store *persist.Store, opts ...persist.Option) (*ThumbnailRepository, error) {
	base, err := persist.NewRepository[model.Thumbnail](store, opts...)
	if err != nil {
		return nil, err
	}
	return &ThumbnailRepository{base: base}, nil
}

// Base exposes the generic facade for plain CRUD.
func (r *ThumbnailRepository) Base() *persist.Repository[model.Thumbnail] {
	return r.base
}

// Add inserts a thumbnail.
func (r *ThumbnailRepository) Add(ctx context.Context, t *model.Thumbnail) error {
	return r.base.Add(ctx, t)
}

// SetDefault promotes the thumbnail to the single default of its exam and
// size-class group, clearing the previous default in the same transaction.
func (r *ThumbnailRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	return r.base.PromoteDefault(ctx, id, thumbnailGroup)
}

// ListForExam returns an exam's thumbnails of one size class.
func (r *ThumbnailRepository) ListForExam(ctx context.Context, examID uuid.UUID, sizeClass string) ([]model.Thumbnail, error) {
	f := r.base.Filter().
		Eq("ExamId", examID).
		Eq("SizeClass", sizeClass)
	return r.base.GetAll(ctx, f)
}

// GetDefault returns the default thumbnail of one group, or NotFound when
// the group has none.
func (r *ThumbnailRepository) GetDefault(ctx context.Context, examID uuid.UUID, sizeClass string) (*model.Thumbnail, error) {
	f := r.base.Filter().
		Eq("ExamId", examID).
		Eq("SizeClass", sizeClass).
		Eq("IsDefault", true)
	items, err := r.base.GetAll(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, notFound("Thumbnails", examID)
	}
	return &items[0], nil
}
