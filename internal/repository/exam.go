package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/model"
	"github.com/examforge/examforge/internal/persist"
)

// ExamRepository manages exams. This call site historically pages one-based:
// page 1 is the first page.
type ExamRepository struct {
	base *persist.Repository[model.Exam]
}

// NewExamRepository wires the repository with one-based paging.
func NewExamRepository(store *persist.Store, opts ...persist.Option) (*ExamRepository, error) {
	opts = append([]persist.Option{persist.WithPageBase(persist.OneBased)}, opts...)
	base, err := persist.NewRepository[model.Exam](store, opts...)
	if err != nil {
		return nil, err
	}
	return &ExamRepository{base: base}, nil
}

// Base exposes the generic facade for plain CRUD.
func (r *ExamRepository) Base() *persist.Repository[model.Exam] {
	return r.base
}

// GetByID returns an exam by its identifier.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return r.base.GetByID(ctx, id)
}

// Add inserts an exam.
func (r *ExamRepository) Add(ctx context.Context, e *model.Exam) error {
	return r.base.Add(ctx, e)
}

// Update persists an exam's columns.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	return r.base.Update(ctx, e)
}

// SoftDelete marks an exam deleted.
func (r *ExamRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.base.SoftDelete(ctx, id)
}

// ListPaged returns one one-based page of exams, newest first.
func (r *ExamRepository) ListPaged(ctx context.Context, page, pageSize int) (persist.PagedResult[model.Exam], error) {
	return r.base.GetPaged(ctx, nil, nil, page, pageSize)
}

// ListByCategory returns one one-based page of a category's exams.
func (r *ExamRepository) ListByCategory(ctx context.Context, categoryID uuid.UUID, page, pageSize int) (persist.PagedResult[model.Exam], error) {
	f := r.base.Filter().Eq("CategoryId", categoryID)
	return r.base.GetPaged(ctx, f, nil, page, pageSize)
}

// ListByStatus returns every exam in one lifecycle status.
func (r *ExamRepository) ListByStatus(ctx context.Context, status model.ExamStatus) ([]model.Exam, error) {
	f := r.base.Filter().Eq("Status", int(status))
	return r.base.GetAll(ctx, f)
}

// SetStatus moves an exam to a new lifecycle status.
func (r *ExamRepository) SetStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	exam, err := r.base.GetByID(ctx, id)
	if err != nil {
		return err
	}
	exam.Status = status
	return r.base.Update(ctx, exam)
}
