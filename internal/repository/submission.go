package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/model"
	"github.com/examforge/examforge/internal/persist"
)

// SubmissionRepository manages completed exam attempts and their archival.
type SubmissionRepository struct {
	base *persist.Repository[model.Submission]
}

// NewSubmissionRepository wires the repository.
func NewSubmissionRepository(store *persist.Store, opts ...persist.Option) (*SubmissionRepository, error) {
	base, err := persist.NewRepository[model.Submission](store, opts...)
	if err != nil {
		return nil, err
	}
	return &SubmissionRepository{base: base}, nil
}

// Base exposes the generic facade for plain CRUD.
func (r *SubmissionRepository) Base() *persist.Repository[model.Submission] {
	return r.base
}

// Add inserts a submission.
func (r *SubmissionRepository) Add(ctx context.Context, s *model.Submission) error {
	return r.base.Add(ctx, s)
}

// ListForExam returns an exam's submissions, newest first.
func (r *SubmissionRepository) ListForExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	f := r.base.Filter().Eq("ExamId", examID)
	return r.base.GetAll(ctx, f)
}

// ListForCandidate returns a candidate's submissions, newest first.
func (r *SubmissionRepository) ListForCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Submission, error) {
	f := r.base.Filter().Eq("CandidateId", candidateID)
	return r.base.GetAll(ctx, f)
}

// ArchiveBefore moves every submission created before the cutoff into the
// archive store and soft-deletes it from the primary store, atomically.
// It returns the number of rows moved.
func (r *SubmissionRepository) ArchiveBefore(ctx context.Context, archive *persist.ArchiveStore, cutoff time.Time) (int64, error) {
	return r.base.ArchiveBefore(ctx, archive, cutoff)
}
