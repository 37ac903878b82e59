// txops.go: compound operations that must leave the store consistent even
// on partial failure.
package persist

import (
	"context"
	"database/sql"
	"reflect"
	"sync"
	"time"

	"github.com/examforge/examforge/internal/conf"
	"github.com/examforge/examforge/internal/errors"
)

// DefaultGroup names the partition within which at most one row may carry
// the default marker.
type DefaultGroup struct {
	// FlagColumn is the boolean default marker, e.g. IsDefault.
	FlagColumn string
	// GroupColumns identify the partition, e.g. parent id plus a size class.
	GroupColumns []string
}

// PromoteDefault atomically makes the identified row the only default within
// its group: the previous default is cleared and the target set in one
// transaction. A target that does not resolve to an existing, non-deleted
// row aborts the whole unit without touching other rows.
func (r *Repository[T]) PromoteDefault(ctx context.Context, id any, group DefaultGroup) error {
	d := r.desc
	if !d.HasColumn(group.FlagColumn) {
		return r.fail("promote-default", errors.Newf("flag column %q is not part of %s", group.FlagColumn, d.Type.Name()).
			Component("persist").
			Category(errors.CategoryConfiguration).
			Build(), errors.CategoryConfiguration)
	}
	for _, c := range group.GroupColumns {
		if !d.HasColumn(c) {
			return r.fail("promote-default", errors.Newf("group column %q is not part of %s", c, d.Type.Name()).
				Component("persist").
				Category(errors.CategoryConfiguration).
				Build(), errors.CategoryConfiguration)
		}
	}
	now := r.now().UTC()

	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		// Resolve the target's group key. Missing or soft-deleted target
		// aborts before any default is cleared.
		b := r.gen.builder()
		b.write("SELECT ")
		for i, c := range group.GroupColumns {
			if i > 0 {
				b.write(", ")
			}
			b.write(b.quote(c))
		}
		b.write(" FROM " + b.quote(d.TableName))
		b.write(" WHERE " + b.quote(d.PKColumn) + " = " + b.bind(id))
		r.gen.softDeleteGuard(b, d)
		st, err := b.stmt()
		if err != nil {
			return r.fail("promote-default", err, errors.CategoryTransientStore)
		}

		groupVals := make([]any, len(group.GroupColumns))
		dest := make([]any, len(groupVals))
		for i := range groupVals {
			dest[i] = &groupVals[i]
		}
		if err := tx.QueryRowContext(ctx, st.SQL, st.Args...).Scan(dest...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return r.notFound("promote-default", id)
			}
			return r.fail("promote-default", err, errors.CategoryTransientStore)
		}

		// Clear the previous default within the exact group.
		b = r.gen.builder()
		b.write("UPDATE " + b.quote(d.TableName) + " SET ")
		b.write(b.quote(group.FlagColumn) + " = " + b.bind(false))
		if d.hasUpdatedAt {
			b.write(", " + b.quote(colUpdatedAt) + " = " + b.bind(now))
		}
		b.write(" WHERE ")
		for i, c := range group.GroupColumns {
			if i > 0 {
				b.write(" AND ")
			}
			b.write(b.quote(c) + " = " + b.bind(groupVals[i]))
		}
		b.write(" AND " + b.quote(d.PKColumn) + " <> " + b.bind(id))
		r.gen.softDeleteGuard(b, d)
		st, err = b.stmt()
		if err != nil {
			return r.fail("promote-default", err, errors.CategoryTransientStore)
		}
		if _, err := tx.ExecContext(ctx, st.SQL, st.Args...); err != nil {
			return r.fail("promote-default", err, errors.CategoryTransientStore)
		}

		// Set the new default.
		b = r.gen.builder()
		b.write("UPDATE " + b.quote(d.TableName) + " SET ")
		b.write(b.quote(group.FlagColumn) + " = " + b.bind(true))
		if d.hasUpdatedAt {
			b.write(", " + b.quote(colUpdatedAt) + " = " + b.bind(now))
		}
		b.write(" WHERE " + b.quote(d.PKColumn) + " = " + b.bind(id))
		r.gen.softDeleteGuard(b, d)
		st, err = b.stmt()
		if err != nil {
			return r.fail("promote-default", err, errors.CategoryTransientStore)
		}
		res, err := tx.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return r.fail("promote-default", err, errors.CategoryTransientStore)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return r.fail("promote-default", err, errors.CategoryTransientStore)
		}
		if n != 1 {
			return r.notFound("promote-default", id)
		}
		return nil
	})
}

// ArchiveStore is the secondary SQLite store archived rows move into. Its
// schema is created from the entity descriptor on first use.
type ArchiveStore struct {
	db  *sql.DB
	gen *Generator

	// created guards lazy table creation; repositories for different entity
	// types may archive through one shared store concurrently.
	mu      sync.Mutex
	created map[string]bool
}

// OpenArchive opens (creating if absent) the archive database at path.
func OpenArchive(path string, registry *Registry) (*ArchiveStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.New(err).
			Component("persist").
			Category(errors.CategoryTransientStore).
			Context("archive", path).
			Build()
	}
	dialect, _ := DialectFor(conf.DialectSQLite)
	return &ArchiveStore{
		db:      db,
		gen:     NewGenerator(dialect, registry, ZeroBased),
		created: make(map[string]bool),
	}, nil
}

// Close releases the archive handle.
func (a *ArchiveStore) Close() error { return a.db.Close() }

// DB exposes the archive handle for verification queries.
func (a *ArchiveStore) DB() *sql.DB { return a.db }

// ensureSchema creates the archive table for d if it does not exist yet.
func (a *ArchiveStore) ensureSchema(ctx context.Context, d *Descriptor) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.created[d.TableName] {
		return nil
	}
	b := a.gen.builder()
	b.write("CREATE TABLE IF NOT EXISTS " + b.quote(d.TableName) + " (")
	b.write(b.quote(d.PKColumn) + " " + archiveColumnType(d.PKType) + " PRIMARY KEY")
	for _, c := range d.Columns {
		b.write(", " + b.quote(c.Name) + " " + archiveColumnType(c.Type))
	}
	b.write(")")
	st, err := b.stmt()
	if err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, st.SQL); err != nil {
		return errors.New(err).
			Component("persist").
			Category(errors.CategoryTransientStore).
			EntityContext(d.TableName, "archive-schema").
			Build()
	}
	a.created[d.TableName] = true
	return nil
}

// archiveColumnType maps a field type to a SQLite column affinity.
func archiveColumnType(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return "DATETIME"
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "INTEGER"
	case reflect.Float32, reflect.Float64:
		return "REAL"
	default:
		return "TEXT"
	}
}

// ArchiveBefore copies every non-deleted row older than the cutoff into the
// archive store, then soft-deletes exactly the copied rows from the primary
// store, keyed on their primary keys. Copy and purge succeed together or not
// at all; the count of rows purged is returned. Archive inserts use
// INSERT OR REPLACE on the primary key, so a retry after a failure between
// the archive commit and the primary commit re-copies and purges the same
// rows without duplication.
func (r *Repository[T]) ArchiveBefore(ctx context.Context, archive *ArchiveStore, cutoff time.Time) (int64, error) {
	d := r.desc
	if !d.hasCreatedAt || !d.SoftDeletes() {
		return 0, r.fail("archive", errors.Newf("%s lacks the audit fields archival requires", d.Type.Name()).
			Component("persist").
			Category(errors.CategoryConfiguration).
			Build(), errors.CategoryConfiguration)
	}
	if err := archive.ensureSchema(ctx, d); err != nil {
		return 0, r.fail("archive", err, errors.CategoryTransientStore)
	}

	rows, err := r.GetAll(ctx, r.Filter().Lt(colCreatedAt, cutoff))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	now := r.now().UTC()

	archiveTx, err := archive.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, r.fail("archive", err, errors.CategoryTransientStore)
	}
	primaryTx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		_ = archiveTx.Rollback()
		return 0, r.fail("archive", err, errors.CategoryTransientStore)
	}
	rollback := func() {
		_ = primaryTx.Rollback()
		_ = archiveTx.Rollback()
	}

	// Copy half: every row moves with all its columns, keyed on the primary
	// key so re-archival replaces rather than duplicates. The keys also drive
	// the purge below.
	cols := d.AllColumns()
	pks := make([]any, 0, len(rows))
	for i := range rows {
		rv := reflect.ValueOf(&rows[i]).Elem()
		pks = append(pks, rv.Field(d.PKIndex).Interface())
		vals, err := extractValues(d, cols, rv)
		if err != nil {
			rollback()
			return 0, r.fail("archive", err, errors.CategoryConfiguration)
		}
		b := archive.gen.builder()
		b.write("INSERT OR REPLACE INTO " + b.quote(d.TableName) + " (")
		for j, c := range cols {
			if j > 0 {
				b.write(", ")
			}
			b.write(b.quote(c))
		}
		b.write(") VALUES (")
		for j, v := range vals {
			if j > 0 {
				b.write(", ")
			}
			b.write(b.bind(v))
		}
		b.write(")")
		st, err := b.stmt()
		if err != nil {
			rollback()
			return 0, r.fail("archive", err, errors.CategoryCoercion)
		}
		if _, err := archiveTx.ExecContext(ctx, st.SQL, st.Args...); err != nil {
			rollback()
			return 0, r.fail("archive", err, errors.CategoryTransientStore)
		}
	}

	if r.beforePurge != nil {
		if err := r.beforePurge(); err != nil {
			rollback()
			return 0, r.fail("archive", err, errors.CategoryTransientStore)
		}
	}

	// Purge half: soft-delete exactly the copied rows, keyed on their primary
	// keys. Re-evaluating the cutoff predicate here would also catch rows that
	// became eligible after the copy set was taken and purge them uncopied;
	// keyed, a late arrival stays readable until the next run moves it.
	b := r.gen.builder()
	b.write("UPDATE " + b.quote(d.TableName) + " SET ")
	b.write(b.quote(colIsDeleted) + " = " + b.bind(true))
	if d.hasDeletedAt {
		b.write(", " + b.quote(colDeletedAt) + " = " + b.bind(now))
	}
	if d.hasUpdatedAt {
		b.write(", " + b.quote(colUpdatedAt) + " = " + b.bind(now))
	}
	b.write(" WHERE " + b.quote(d.PKColumn) + " IN (")
	for i, pk := range pks {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.bind(pk))
	}
	b.write(")")
	b.write(" AND " + b.quote(colIsDeleted) + " = " + b.bind(false))
	st, err := b.stmt()
	if err != nil {
		rollback()
		return 0, r.fail("archive", err, errors.CategoryTransientStore)
	}
	res, err := primaryTx.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		rollback()
		return 0, r.fail("archive", err, errors.CategoryTransientStore)
	}
	purged, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, r.fail("archive", err, errors.CategoryTransientStore)
	}

	// Archive commit first: a failure between the two commits leaves the rows
	// archived but still readable in the primary, and the keyed
	// INSERT OR REPLACE lets a retry re-copy and purge them without
	// duplication. Committing the primary first would strand soft-deleted
	// rows the retry could no longer see.
	if err := archiveTx.Commit(); err != nil {
		_ = primaryTx.Rollback()
		return 0, r.fail("archive", err, errors.CategoryTransientStore)
	}
	if err := primaryTx.Commit(); err != nil {
		return 0, r.fail("archive", err, errors.CategoryTransientStore)
	}
	getLogger().Info("archived rows", "table", d.TableName, "count", purged, "cutoff", cutoff)
	return purged, nil
}
