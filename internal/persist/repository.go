// repository.go: the per-entity-type entry point wiring schema metadata,
// SQL generation, and coercion into CRUD, paging, and raw passthrough.
package persist

import (
	"context"
	"database/sql"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/errors"
)

// PagedResult carries one page of entities plus the unfiltered-by-paging
// total for the same filter.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int64
	Page       int
	PageSize   int
}

// Option configures a repository at construction.
type Option func(*repoOptions)

type repoOptions struct {
	pageBase PageBase
	clock    func() time.Time
}

// WithPageBase sets the paging convention the repository's call site uses.
// The default is zero-based.
func WithPageBase(pb PageBase) Option {
	return func(o *repoOptions) { o.pageBase = pb }
}

// WithClock overrides the timestamp source. Tests use this to pin audit
// timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *repoOptions) { o.clock = clock }
}

// Repository is the generic facade over one entity type. It holds no state
// besides its wiring and is safe for concurrent use.
type Repository[T any] struct {
	store *Store
	desc  *Descriptor
	gen   *Generator
	now   func() time.Time

	// beforePurge runs between the copy and purge halves of ArchiveBefore.
	// Tests use it to simulate purge failure.
	beforePurge func() error
}

// NewRepository derives T's descriptor and wires a repository on the store.
// Descriptor derivation errors surface here, at first use.
func NewRepository[T any](store *Store, opts ...Option) (*Repository[T], error) {
	desc, err := DescriptorFor[T]()
	if err != nil {
		return nil, err
	}
	o := repoOptions{pageBase: ZeroBased, clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T]{
		store: store,
		desc:  desc,
		gen:   NewGenerator(store.dialect, store.registry, o.pageBase),
		now:   o.clock,
	}, nil
}

// Descriptor exposes the entity's schema metadata for callers composing
// join queries.
func (r *Repository[T]) Descriptor() *Descriptor { return r.desc }

// Filter starts a filter over the entity's columns.
func (r *Repository[T]) Filter() *Filter { return NewFilter(r.desc) }

// Store returns the store the repository runs on.
func (r *Repository[T]) Store() *Store { return r.store }

// fail is the single error-mapping boundary: every store error leaves the
// facade tagged with entity and operation context.
func (r *Repository[T]) fail(op string, err error, category errors.ErrorCategory) error {
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		// Already categorized deeper in the engine; keep its category.
		return err
	}
	return errors.New(err).
		Component("persist").
		Category(category).
		EntityContext(r.desc.TableName, op).
		Build()
}

func (r *Repository[T]) notFound(op string, id any) error {
	return errors.Newf("%s: no matching row", r.desc.TableName).
		Component("persist").
		Category(errors.CategoryNotFound).
		EntityContext(r.desc.TableName, op).
		Context("id", id).
		Build()
}

// GetByID returns the entity with the given primary key, excluding
// soft-deleted rows.
func (r *Repository[T]) GetByID(ctx context.Context, id any) (*T, error) {
	st, err := r.gen.SelectByID(r.desc, id)
	if err != nil {
		return nil, r.fail("get-by-id", err, errors.CategoryTransientStore)
	}
	entity := new(T)
	row := r.store.db.QueryRowContext(ctx, st.SQL, st.Args...)
	if err := scanEntity(r.desc, r.store.registry, row, reflect.ValueOf(entity).Elem()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.notFound("get-by-id", id)
		}
		return nil, r.fail("get-by-id", err, errors.CategoryTransientStore)
	}
	return entity, nil
}

// GetAll returns every non-deleted entity matching the optional filter,
// ordered by creation timestamp descending unless order is given.
func (r *Repository[T]) GetAll(ctx context.Context, f *Filter, order ...Order) ([]T, error) {
	st, err := r.gen.SelectAll(r.desc, f, order)
	if err != nil {
		return nil, r.fail("get-all", err, errors.CategoryTransientStore)
	}
	return r.queryEntities(ctx, "get-all", st.SQL, st.Args...)
}

// GetPaged returns one page of non-deleted entities plus the total count
// for the same filter. Page interpretation follows the repository's
// configured convention.
func (r *Repository[T]) GetPaged(ctx context.Context, f *Filter, order []Order, page, pageSize int) (PagedResult[T], error) {
	result := PagedResult[T]{Page: page, PageSize: pageSize}

	countStmt, err := r.gen.Count(r.desc, f)
	if err != nil {
		return result, r.fail("get-paged", err, errors.CategoryTransientStore)
	}
	if err := r.store.db.QueryRowContext(ctx, countStmt.SQL, countStmt.Args...).Scan(&result.TotalCount); err != nil {
		return result, r.fail("get-paged", err, errors.CategoryTransientStore)
	}

	st, err := r.gen.SelectPaged(r.desc, f, order, page, pageSize)
	if err != nil {
		return result, r.fail("get-paged", err, errors.CategoryTransientStore)
	}
	items, err := r.queryEntities(ctx, "get-paged", st.SQL, st.Args...)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

// Add inserts the entity. Creation and modification timestamps are stamped,
// the soft-delete flag is cleared, and a missing uuid key is generated;
// identity keys come back from the store in the same round trip.
func (r *Repository[T]) Add(ctx context.Context, entity *T) error {
	rv := reflect.ValueOf(entity).Elem()
	now := r.now().UTC()
	r.stampForInsert(rv, now)

	vals, err := extractValues(r.desc, r.desc.InsertColumns(), rv)
	if err != nil {
		return r.fail("add", err, errors.CategoryConfiguration)
	}
	st, err := r.gen.Insert(r.desc, vals)
	if err != nil {
		return r.fail("add", err, errors.CategoryTransientStore)
	}

	pkField := rv.Field(r.desc.PKIndex)
	switch {
	case st.ReturnsKey:
		var key int64
		if err := r.store.db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&key); err != nil {
			return r.fail("add", err, errors.CategoryTransientStore)
		}
		pkField.SetInt(key)
	case r.desc.IdentityPK():
		res, err := r.store.db.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return r.fail("add", err, errors.CategoryTransientStore)
		}
		key, err := res.LastInsertId()
		if err != nil {
			return r.fail("add", err, errors.CategoryTransientStore)
		}
		pkField.SetInt(key)
	default:
		if _, err := r.store.db.ExecContext(ctx, st.SQL, st.Args...); err != nil {
			return r.fail("add", err, errors.CategoryTransientStore)
		}
	}
	return nil
}

// Update persists the entity's persistable columns. The modification
// timestamp is re-stamped; the creation timestamp and primary key are never
// written. Zero affected rows means the target does not exist or is already
// deleted and surfaces as NotFound.
func (r *Repository[T]) Update(ctx context.Context, entity *T) error {
	rv := reflect.ValueOf(entity).Elem()
	now := r.now().UTC()
	if r.desc.hasUpdatedAt {
		r.setColumn(rv, colUpdatedAt, reflect.ValueOf(now))
	}

	vals, err := extractValues(r.desc, r.desc.UpdateColumns(), rv)
	if err != nil {
		return r.fail("update", err, errors.CategoryConfiguration)
	}
	id := rv.Field(r.desc.PKIndex).Interface()
	st, err := r.gen.Update(r.desc, vals, now, id)
	if err != nil {
		return r.fail("update", err, errors.CategoryTransientStore)
	}
	return r.execExpectingRows(ctx, "update", id, st)
}

// SoftDelete marks the row deleted. The row disappears from every read path
// but stays in the store until hard-deleted.
func (r *Repository[T]) SoftDelete(ctx context.Context, id any) error {
	st, err := r.gen.SoftDelete(r.desc, id, r.now().UTC())
	if err != nil {
		return r.fail("soft-delete", err, errors.CategoryConfiguration)
	}
	return r.execExpectingRows(ctx, "soft-delete", id, st)
}

// HardDelete physically removes the row, bypassing the soft-delete guard.
func (r *Repository[T]) HardDelete(ctx context.Context, id any) error {
	st, err := r.gen.HardDelete(r.desc, id)
	if err != nil {
		return r.fail("hard-delete", err, errors.CategoryTransientStore)
	}
	return r.execExpectingRows(ctx, "hard-delete", id, st)
}

// Exists reports whether a non-deleted row with the given key exists.
func (r *Repository[T]) Exists(ctx context.Context, id any) (bool, error) {
	f := r.Filter().Eq(r.desc.PKColumn, id)
	n, err := r.Count(ctx, f)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of non-deleted rows matching the optional filter.
func (r *Repository[T]) Count(ctx context.Context, f *Filter) (int64, error) {
	st, err := r.gen.Count(r.desc, f)
	if err != nil {
		return 0, r.fail("count", err, errors.CategoryTransientStore)
	}
	var n int64
	if err := r.store.db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&n); err != nil {
		return 0, r.fail("count", err, errors.CategoryTransientStore)
	}
	return n, nil
}

// RawQuery runs caller-supplied SQL and scans the result into entities by
// column name. Columns that are not part of the descriptor are discarded.
// The SQL text is trusted; values must travel in args.
func (r *Repository[T]) RawQuery(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.fail("raw-query", err, errors.CategoryTransientStore)
	}
	defer func() { _ = rows.Close() }()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, r.fail("raw-query", err, errors.CategoryTransientStore)
	}

	var out []T
	for rows.Next() {
		raws := make([]any, len(colNames))
		for i := range raws {
			raws[i] = new(any)
		}
		if err := rows.Scan(raws...); err != nil {
			return nil, r.fail("raw-query", err, errors.CategoryTransientStore)
		}
		var entity T
		rv := reflect.ValueOf(&entity).Elem()
		for i, name := range colNames {
			raw := *(raws[i].(*any))
			var field reflect.Value
			if name == r.desc.PKColumn {
				field = rv.Field(r.desc.PKIndex)
			} else if c, ok := r.desc.column(name); ok {
				field = rv.Field(c.Index)
			} else {
				continue
			}
			if err := assignField(r.store.registry, field, raw); err != nil {
				return nil, r.fail("raw-query", err, errors.CategoryCoercion)
			}
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("raw-query", err, errors.CategoryTransientStore)
	}
	return out, nil
}

// RawExecute runs caller-supplied SQL and returns the number of affected
// rows.
func (r *Repository[T]) RawExecute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, r.fail("raw-execute", err, errors.CategoryTransientStore)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.fail("raw-execute", err, errors.CategoryTransientStore)
	}
	return n, nil
}

func (r *Repository[T]) queryEntities(ctx context.Context, op, query string, args ...any) ([]T, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.fail(op, err, errors.CategoryTransientStore)
	}
	defer func() { _ = rows.Close() }()

	var out []T
	for rows.Next() {
		var entity T
		if err := scanEntity(r.desc, r.store.registry, rows, reflect.ValueOf(&entity).Elem()); err != nil {
			return nil, r.fail(op, err, errors.CategoryCoercion)
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(op, err, errors.CategoryTransientStore)
	}
	return out, nil
}

func (r *Repository[T]) execExpectingRows(ctx context.Context, op string, id any, st Statement) error {
	res, err := r.store.db.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return r.fail(op, err, errors.CategoryTransientStore)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.fail(op, err, errors.CategoryTransientStore)
	}
	if n == 0 {
		return r.notFound(op, id)
	}
	return nil
}

// stampForInsert applies the audit convention: creation and modification
// timestamps set to now, soft-delete flag cleared, missing uuid key
// generated.
func (r *Repository[T]) stampForInsert(rv reflect.Value, now time.Time) {
	if r.desc.hasCreatedAt {
		r.setColumn(rv, colCreatedAt, reflect.ValueOf(now))
	}
	if r.desc.hasUpdatedAt {
		r.setColumn(rv, colUpdatedAt, reflect.ValueOf(now))
	}
	if r.desc.hasIsDeleted {
		r.setColumn(rv, colIsDeleted, reflect.ValueOf(false))
	}
	if r.desc.hasDeletedAt {
		if c, ok := r.desc.column(colDeletedAt); ok {
			rv.Field(c.Index).Set(reflect.Zero(rv.Field(c.Index).Type()))
		}
	}
	if r.desc.PKType == uuidType {
		pk := rv.Field(r.desc.PKIndex)
		if pk.Interface() == any(uuid.Nil) {
			pk.Set(reflect.ValueOf(uuid.New()))
		}
	}
}

func (r *Repository[T]) setColumn(rv reflect.Value, name string, value reflect.Value) {
	if c, ok := r.desc.column(name); ok {
		rv.Field(c.Index).Set(value)
	}
}
