// model.go defines the exam-authoring domain entities.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus is the authoring lifecycle of an exam.
type ExamStatus int

const (
	ExamDraft ExamStatus = iota
	ExamReview
	ExamPublished
	ExamRetired
)

// QuestionKind distinguishes the supported question formats.
type QuestionKind int

const (
	SingleChoice QuestionKind = iota
	MultipleChoice
	TrueFalse
	FreeText
)

// Exam is an authored exam. Questions and Thumbnails are navigation fields
// populated only by join queries, never persisted as columns.
type Exam struct {
	ExamId          uuid.UUID
	CategoryId      uuid.UUID
	Title           string
	Description     string
	Status          ExamStatus
	DurationMinutes int
	PassScore       float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	IsDeleted       bool
	DeletedAt       *time.Time

	Questions  []Question  `db:"-"`
	Thumbnails []Thumbnail `db:"-"`
}

// Question is one exam question together with its nested collections.
type Question struct {
	QuestionId uuid.UUID
	ExamId     uuid.UUID
	Body       string
	Kind       QuestionKind
	Points     int
	Position   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	IsDeleted  bool
	DeletedAt  *time.Time

	Options     []AnswerOption `db:"-"`
	Attachments []Attachment   `db:"-"`
	Tags        []Tag          `db:"-"`
}

// AnswerOption is one selectable answer of a question.
type AnswerOption struct {
	AnswerOptionId uuid.UUID
	QuestionId     uuid.UUID
	Body           string
	IsCorrect      bool
	Position       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	IsDeleted      bool
	DeletedAt      *time.Time
}

// Attachment is a file attached to a question.
type Attachment struct {
	AttachmentId uuid.UUID
	QuestionId   uuid.UUID
	FileName     string
	MimeType     string
	SizeBytes    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsDeleted    bool
	DeletedAt    *time.Time
}

// Tag labels questions across exams. Its key is a server-generated identity
// column rather than a client-generated identifier.
type Tag struct {
	TagId     int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
	DeletedAt *time.Time
}

// QuestionTag links a question to a tag.
type QuestionTag struct {
	QuestionTagId int64
	QuestionId    uuid.UUID
	TagId         int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	IsDeleted     bool
	DeletedAt     *time.Time
}

// Thumbnail is one rendered preview image of an exam. Within a group of
// thumbnails sharing an exam and a size class, at most one row may be marked
// default at any time.
type Thumbnail struct {
	ThumbnailId uuid.UUID
	ExamId      uuid.UUID
	SizeClass   string
	Url         string
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsDeleted   bool
	DeletedAt   *time.Time
}

// Submission is a candidate's completed exam attempt. Old submissions are
// archived to the secondary store and soft-deleted from the primary.
type Submission struct {
	SubmissionId uuid.UUID
	ExamId       uuid.UUID
	CandidateId  uuid.UUID
	Score        float64
	MaxScore     float64
	SubmittedAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsDeleted    bool
	DeletedAt    *time.Time
}

// Category partitions exams. ParentId is nil for root categories.
type Category struct {
	CategoryId uuid.UUID
	Name       string
	ParentId   *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
	IsDeleted  bool
	DeletedAt  *time.Time
}

// Role is an authoring-platform role.
type Role struct {
	RoleId    uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
	DeletedAt *time.Time
}

// Prototypes returns one zero value per registered entity type. Startup
// validation derives every descriptor from this list so configuration errors
// surface before the first operation.
func Prototypes() []any {
	return []any{
		Exam{},
		Question{},
		AnswerOption{},
		Attachment{},
		Tag{},
		QuestionTag{},
		Thumbnail{},
		Submission{},
		Category{},
		Role{},
	}
}
