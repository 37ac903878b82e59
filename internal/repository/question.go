package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/errors"
	"github.com/examforge/examforge/internal/model"
	"github.com/examforge/examforge/internal/persist"
)

// QuestionRepository manages questions and their nested collections. Detail
// loads run one join over answer options, attachments, and tags and flatten
// the cartesian rowset back into the question graph.
type QuestionRepository struct {
	base  *persist.Repository[model.Question]
	store *persist.Store

	optionDesc     *persist.Descriptor
	attachmentDesc *persist.Descriptor
	tagDesc        *persist.Descriptor
	linkDesc       *persist.Descriptor
}

// NewQuestionRepository wires the repository. This call site pages
// zero-based.
func NewQuestionRepository(store *persist.Store, opts ...persist.Option) (*QuestionRepository, error) {
	opts = append([]persist.Option{persist.WithPageBase(persist.ZeroBased)}, opts...)
	base, err := persist.NewRepository[model.Question](store, opts...)
	if err != nil {
		return nil, err
	}
	optionDesc, err := persist.DescriptorFor[model.AnswerOption]()
	if err != nil {
		return nil, err
	}
	attachmentDesc, err := persist.DescriptorFor[model.Attachment]()
	if err != nil {
		return nil, err
	}
	tagDesc, err := persist.DescriptorFor[model.Tag]()
	if err != nil {
		return nil, err
	}
	linkDesc, err := persist.DescriptorFor[model.QuestionTag]()
	if err != nil {
		return nil, err
	}
	return &QuestionRepository{
		base:           base,
		store:          store,
		optionDesc:     optionDesc,
		attachmentDesc: attachmentDesc,
		tagDesc:        tagDesc,
		linkDesc:       linkDesc,
	}, nil
}

// Base exposes the generic facade for plain CRUD.
func (r *QuestionRepository) Base() *persist.Repository[model.Question] {
	return r.base
}

// GetByID returns a question without its nested collections.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	return r.base.GetByID(ctx, id)
}

// Add inserts a question.
func (r *QuestionRepository) Add(ctx context.Context, q *model.Question) error {
	return r.base.Add(ctx, q)
}

// Update persists a question's own columns.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	return r.base.Update(ctx, q)
}

// SoftDelete marks a question deleted.
func (r *QuestionRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.base.SoftDelete(ctx, id)
}

// ListPaged returns one zero-based page of an exam's questions without
// nested collections.
func (r *QuestionRepository) ListPaged(ctx context.Context, examID uuid.UUID, page, pageSize int) (persist.PagedResult[model.Question], error) {
	f := r.base.Filter().Eq("ExamId", examID)
	order := []persist.Order{{Column: "Position"}}
	return r.base.GetPaged(ctx, f, order, page, pageSize)
}

// questionDetailRow is the flat shape one join row scans into. Child columns
// are nullable because every child join is an outer join.
type questionDetailRow struct {
	questionID uuid.UUID
	examID     uuid.UUID
	body       string
	kind       int64
	points     int64
	position   int64
	createdAt  time.Time
	updatedAt  time.Time

	optionID       uuid.UUID
	optionOK       bool
	optionBody     sql.NullString
	optionCorrect  sql.NullBool
	optionPosition sql.NullInt64

	attachmentID uuid.UUID
	attachmentOK bool
	fileName     sql.NullString
	mimeType     sql.NullString
	sizeBytes    sql.NullInt64

	tagID   sql.NullInt64
	tagName sql.NullString
}

// GetWithDetails loads one question with options, attachments, and tags in
// a single join round trip.
func (r *QuestionRepository) GetWithDetails(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	rows, err := r.queryDetails(ctx, r.base.Descriptor().PKColumn, id)
	if err != nil {
		return nil, err
	}
	questions := r.flattenDetails(rows)
	if len(questions) == 0 {
		return nil, errors.Newf("Questions: no matching row").
			Component("repository").
			Category(errors.CategoryNotFound).
			Context("id", id).
			Build()
	}
	return questions[0], nil
}

// ListWithDetails loads every question of an exam with its nested
// collections in a single join round trip, ordered by question position.
func (r *QuestionRepository) ListWithDetails(ctx context.Context, examID uuid.UUID) ([]*model.Question, error) {
	rows, err := r.queryDetails(ctx, "ExamId", examID)
	if err != nil {
		return nil, err
	}
	return r.flattenDetails(rows), nil
}

// queryDetails runs the three-relation join filtered on one question column.
func (r *QuestionRepository) queryDetails(ctx context.Context, filterCol string, filterVal any) ([]questionDetailRow, error) {
	qd := r.base.Descriptor()
	q := r.store.NewQuery()

	q.Write("SELECT ")
	q.Col(qd, "q", "QuestionId").Write(", ")
	q.Col(qd, "q", "ExamId").Write(", ")
	q.Col(qd, "q", "Body").Write(", ")
	q.Col(qd, "q", "Kind").Write(", ")
	q.Col(qd, "q", "Points").Write(", ")
	q.Col(qd, "q", "Position").Write(", ")
	q.Col(qd, "q", "CreatedAt").Write(", ")
	q.Col(qd, "q", "UpdatedAt").Write(", ")
	q.Col(r.optionDesc, "ao", "AnswerOptionId").Write(", ")
	q.Col(r.optionDesc, "ao", "Body").Write(", ")
	q.Col(r.optionDesc, "ao", "IsCorrect").Write(", ")
	q.Col(r.optionDesc, "ao", "Position").Write(", ")
	q.Col(r.attachmentDesc, "att", "AttachmentId").Write(", ")
	q.Col(r.attachmentDesc, "att", "FileName").Write(", ")
	q.Col(r.attachmentDesc, "att", "MimeType").Write(", ")
	q.Col(r.attachmentDesc, "att", "SizeBytes").Write(", ")
	q.Col(r.tagDesc, "t", "TagId").Write(", ")
	q.Col(r.tagDesc, "t", "Name")

	q.Write(" FROM ").Table(qd).Write(" q")
	q.Write(" LEFT JOIN ").Table(r.optionDesc).Write(" ao ON ")
	q.Col(r.optionDesc, "ao", "QuestionId").Write(" = ").Col(qd, "q", "QuestionId")
	q.Write(" AND ").Col(r.optionDesc, "ao", "IsDeleted").Write(" = ").Bind(false)
	q.Write(" LEFT JOIN ").Table(r.attachmentDesc).Write(" att ON ")
	q.Col(r.attachmentDesc, "att", "QuestionId").Write(" = ").Col(qd, "q", "QuestionId")
	q.Write(" AND ").Col(r.attachmentDesc, "att", "IsDeleted").Write(" = ").Bind(false)
	q.Write(" LEFT JOIN ").Table(r.linkDesc).Write(" qt ON ")
	q.Col(r.linkDesc, "qt", "QuestionId").Write(" = ").Col(qd, "q", "QuestionId")
	q.Write(" AND ").Col(r.linkDesc, "qt", "IsDeleted").Write(" = ").Bind(false)
	q.Write(" LEFT JOIN ").Table(r.tagDesc).Write(" t ON ")
	q.Col(r.tagDesc, "t", "TagId").Write(" = ").Col(r.linkDesc, "qt", "TagId")
	q.Write(" AND ").Col(r.tagDesc, "t", "IsDeleted").Write(" = ").Bind(false)

	q.Write(" WHERE ").Col(qd, "q", filterCol).Write(" = ").Bind(filterVal)
	q.Write(" AND ").Col(qd, "q", "IsDeleted").Write(" = ").Bind(false)
	q.Write(" ORDER BY ").Col(qd, "q", "Position").Write(", ")
	q.Col(r.optionDesc, "ao", "Position")

	st, err := q.Statement()
	if err != nil {
		return nil, err
	}

	dbRows, err := r.store.DB().QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, errors.New(err).
			Component("repository").
			Category(errors.CategoryTransientStore).
			EntityContext("Questions", "query-details").
			Build()
	}
	defer func() { _ = dbRows.Close() }()

	var out []questionDetailRow
	for dbRows.Next() {
		var row questionDetailRow
		var qID, examID, optID, attID any
		if err := dbRows.Scan(
			&qID, &examID, &row.body, &row.kind, &row.points, &row.position,
			&row.createdAt, &row.updatedAt,
			&optID, &row.optionBody, &row.optionCorrect, &row.optionPosition,
			&attID, &row.fileName, &row.mimeType, &row.sizeBytes,
			&row.tagID, &row.tagName,
		); err != nil {
			return nil, errors.New(err).
				Component("repository").
				Category(errors.CategoryTransientStore).
				EntityContext("Questions", "query-details").
				Build()
		}
		if row.questionID, err = r.scanID(qID, false); err != nil {
			return nil, err
		}
		if row.examID, err = r.scanID(examID, false); err != nil {
			return nil, err
		}
		if row.optionID, err = r.scanID(optID, true); err != nil {
			return nil, err
		}
		row.optionOK = optID != nil
		if row.attachmentID, err = r.scanID(attID, true); err != nil {
			return nil, err
		}
		row.attachmentOK = attID != nil
		out = append(out, row)
	}
	if err := dbRows.Err(); err != nil {
		return nil, errors.New(err).
			Component("repository").
			Category(errors.CategoryTransientStore).
			EntityContext("Questions", "query-details").
			Build()
	}
	return out, nil
}

// scanID normalizes an identifier column through the coercion registry.
// nullable columns yield the nil identifier on an outer-join miss.
func (r *QuestionRepository) scanID(raw any, nullable bool) (uuid.UUID, error) {
	if raw == nil {
		if nullable {
			return uuid.Nil, nil
		}
		return uuid.Nil, errors.Newf("unexpected NULL identifier").
			Component("repository").
			Category(errors.CategoryCoercion).
			Build()
	}
	v, err := r.store.Registry().FromStorage(uuidReflectType, raw)
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

// flattenDetails rebuilds the question graph from the join rowset.
func (r *QuestionRepository) flattenDetails(rows []questionDetailRow) []*model.Question {
	return persist.Flatten(rows,
		func(row questionDetailRow) uuid.UUID { return row.questionID },
		func(row questionDetailRow) *model.Question {
			return &model.Question{
				QuestionId: row.questionID,
				ExamId:     row.examID,
				Body:       row.body,
				Kind:       model.QuestionKind(row.kind),
				Points:     int(row.points),
				Position:   int(row.position),
				CreatedAt:  row.createdAt,
				UpdatedAt:  row.updatedAt,
			}
		},
		persist.ChildRelation[questionDetailRow, model.Question]{
			Name: "options",
			Key: func(row questionDetailRow) (any, bool) {
				return row.optionID, row.optionOK
			},
			Attach: func(owner *model.Question, row questionDetailRow) {
				owner.Options = append(owner.Options, model.AnswerOption{
					AnswerOptionId: row.optionID,
					QuestionId:     owner.QuestionId,
					Body:           row.optionBody.String,
					IsCorrect:      row.optionCorrect.Bool,
					Position:       int(row.optionPosition.Int64),
				})
			},
		},
		persist.ChildRelation[questionDetailRow, model.Question]{
			Name: "attachments",
			Key: func(row questionDetailRow) (any, bool) {
				return row.attachmentID, row.attachmentOK
			},
			Attach: func(owner *model.Question, row questionDetailRow) {
				owner.Attachments = append(owner.Attachments, model.Attachment{
					AttachmentId: row.attachmentID,
					QuestionId:   owner.QuestionId,
					FileName:     row.fileName.String,
					MimeType:     row.mimeType.String,
					SizeBytes:    row.sizeBytes.Int64,
				})
			},
		},
		persist.ChildRelation[questionDetailRow, model.Question]{
			Name: "tags",
			Key: func(row questionDetailRow) (any, bool) {
				return row.tagID.Int64, row.tagID.Valid
			},
			Attach: func(owner *model.Question, row questionDetailRow) {
				owner.Tags = append(owner.Tags, model.Tag{
					TagId: row.tagID.Int64,
					Name:  row.tagName.String,
				})
			},
		},
	)
}
