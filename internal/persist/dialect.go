// dialect.go: synthesizes parameterized SQL for two store dialects from one
// code path.
package persist

import (
	"fmt"
	"strings"

	"github.com/examforge/examforge/internal/conf"
	"github.com/examforge/examforge/internal/errors"
)

// Dialect abstracts the syntactic differences between the supported stores.
// Both dialects produce semantically equivalent statements.
type Dialect interface {
	Name() string
	// Placeholder renders the parameter marker for the 1-based ordinal.
	Placeholder(ordinal int) string
	// Quote renders a trusted identifier. Identifiers only ever come from a
	// schema descriptor, never from untrusted input.
	Quote(ident string) string
	// PagingClause renders the clause following ORDER BY, binding offset and
	// page size in whatever order the dialect consumes them.
	PagingClause(bind func(v any) string, offset, pageSize int) string
	// ReturnsKeyInline reports whether identity inserts return the generated
	// key in the same round trip instead of via LastInsertId.
	ReturnsKeyInline() bool
}

// sqlServerDialect emits @pN markers, bracket quoting, and
// OFFSET ... ROWS FETCH NEXT ... ROWS ONLY paging.
type sqlServerDialect struct{}

func (sqlServerDialect) Name() string { return conf.DialectSQLServer }

func (sqlServerDialect) Placeholder(ordinal int) string {
	return fmt.Sprintf("@p%d", ordinal)
}

func (sqlServerDialect) Quote(ident string) string {
	return "[" + ident + "]"
}

func (sqlServerDialect) PagingClause(bind func(v any) string, offset, pageSize int) string {
	return "OFFSET " + bind(offset) + " ROWS FETCH NEXT " + bind(pageSize) + " ROWS ONLY"
}

func (sqlServerDialect) ReturnsKeyInline() bool { return true }

// limitOffsetDialect emits ? markers and LIMIT ... OFFSET ... paging. SQLite
// and MySQL share it and differ only in identifier quoting.
type limitOffsetDialect struct {
	name       string
	quoteOpen  string
	quoteClose string
}

func (d limitOffsetDialect) Name() string { return d.name }

func (limitOffsetDialect) Placeholder(int) string { return "?" }

func (d limitOffsetDialect) Quote(ident string) string {
	return d.quoteOpen + ident + d.quoteClose
}

func (limitOffsetDialect) PagingClause(bind func(v any) string, offset, pageSize int) string {
	return "LIMIT " + bind(pageSize) + " OFFSET " + bind(offset)
}

func (limitOffsetDialect) ReturnsKeyInline() bool { return false }

// DialectFor maps a configured dialect name to its implementation.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case conf.DialectSQLServer:
		return sqlServerDialect{}, nil
	case conf.DialectSQLite:
		return limitOffsetDialect{name: conf.DialectSQLite, quoteOpen: `"`, quoteClose: `"`}, nil
	case conf.DialectMySQL:
		return limitOffsetDialect{name: conf.DialectMySQL, quoteOpen: "`", quoteClose: "`"}, nil
	default:
		return nil, errors.Newf("unknown dialect %q", name).
			Component("persist").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// PageBase states which paging convention a call site uses. The two services
// consuming this engine disagree, so the convention is explicit per caller
// rather than silently unified.
type PageBase int

const (
	// ZeroBased paging: page 0 is the first page.
	ZeroBased PageBase = iota
	// OneBased paging: page 1 is the first page.
	OneBased
)

// Offset computes the row offset for a page under this convention.
func (p PageBase) Offset(page, pageSize int) int {
	if p == OneBased {
		page--
	}
	if page < 0 {
		page = 0
	}
	return page * pageSize
}

// Statement is ready-to-execute SQL with its ordered parameter bindings.
type Statement struct {
	SQL  string
	Args []any
	// ReturnsKey marks an identity INSERT whose generated key comes back as
	// a single-row result instead of LastInsertId.
	ReturnsKey bool
}

// Order is one ORDER BY term. The column is validated against the descriptor
// before it reaches statement text.
type Order struct {
	Column string
	Desc   bool
}

// Generator builds statements for one dialect, one coercion registry, and
// one paging convention.
type Generator struct {
	dialect  Dialect
	registry *Registry
	pageBase PageBase
}

// NewGenerator wires a generator. registry must not be nil.
func NewGenerator(dialect Dialect, registry *Registry, pageBase PageBase) *Generator {
	return &Generator{dialect: dialect, registry: registry, pageBase: pageBase}
}

// Dialect exposes the generator's dialect for callers composing raw queries.
func (g *Generator) Dialect() Dialect { return g.dialect }

// stmtBuilder accumulates statement text and its bound parameters.
type stmtBuilder struct {
	g    *Generator
	sb   strings.Builder
	args []any
	err  error
}

func (g *Generator) builder() *stmtBuilder {
	return &stmtBuilder{g: g}
}

// bind coerces a domain value to storage form, appends it to the parameter
// list, and returns its placeholder.
func (b *stmtBuilder) bind(v any) string {
	stored, err := b.g.registry.ToStorage(v)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.args = append(b.args, stored)
	return b.g.dialect.Placeholder(len(b.args))
}

func (b *stmtBuilder) write(s string) {
	b.sb.WriteString(s)
}

func (b *stmtBuilder) quote(ident string) string {
	return b.g.dialect.Quote(ident)
}

func (b *stmtBuilder) stmt() (Statement, error) {
	if b.err != nil {
		return Statement{}, b.err
	}
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

// Insert builds the INSERT for an entity. vals must align with
// d.InsertColumns(). Identity-key dialect A inserts return the generated key
// inline via OUTPUT; dialect B callers read LastInsertId from the result.
func (g *Generator) Insert(d *Descriptor, vals []any) (Statement, error) {
	cols := d.InsertColumns()
	if len(vals) != len(cols) {
		return Statement{}, errors.Newf("insert values do not align with columns: %d != %d", len(vals), len(cols)).
			Component("persist").
			Category(errors.CategoryConfiguration).
			Build()
	}
	b := g.builder()
	b.write("INSERT INTO " + b.quote(d.TableName) + " (")
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.quote(c))
	}
	b.write(")")
	returnsKey := d.IdentityPK() && g.dialect.ReturnsKeyInline()
	if returnsKey {
		b.write(" OUTPUT INSERTED." + b.quote(d.PKColumn))
	}
	b.write(" VALUES (")
	for i, v := range vals {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.bind(v))
	}
	b.write(")")
	st, err := b.stmt()
	if err != nil {
		return Statement{}, err
	}
	st.ReturnsKey = returnsKey
	return st, nil
}

// Update builds the UPDATE for an entity. vals must align with
// d.UpdateColumns(). The modification timestamp is force-set to now; the
// WHERE clause always includes the soft-delete guard.
func (g *Generator) Update(d *Descriptor, vals []any, now, id any) (Statement, error) {
	cols := d.UpdateColumns()
	if len(vals) != len(cols) {
		return Statement{}, errors.Newf("update values do not align with columns: %d != %d", len(vals), len(cols)).
			Component("persist").
			Category(errors.CategoryConfiguration).
			Build()
	}
	b := g.builder()
	b.write("UPDATE " + b.quote(d.TableName) + " SET ")
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.quote(c) + " = " + b.bind(vals[i]))
	}
	if d.hasUpdatedAt {
		if len(cols) > 0 {
			b.write(", ")
		}
		b.write(b.quote(colUpdatedAt) + " = " + b.bind(now))
	}
	b.write(" WHERE " + b.quote(d.PKColumn) + " = " + b.bind(id))
	g.softDeleteGuard(b, d)
	return b.stmt()
}

// SelectByID builds the single-row lookup, excluding soft-deleted rows.
func (g *Generator) SelectByID(d *Descriptor, id any) (Statement, error) {
	b := g.builder()
	g.selectList(b, d)
	b.write(" WHERE " + b.quote(d.PKColumn) + " = " + b.bind(id))
	g.softDeleteGuard(b, d)
	return b.stmt()
}

// SelectAll builds the full listing with an optional filter, excluding
// soft-deleted rows. Default order is creation timestamp descending.
func (g *Generator) SelectAll(d *Descriptor, f *Filter, order []Order) (Statement, error) {
	b := g.builder()
	g.selectList(b, d)
	if err := g.whereClause(b, d, f); err != nil {
		return Statement{}, err
	}
	if err := g.orderClause(b, d, order); err != nil {
		return Statement{}, err
	}
	return b.stmt()
}

// SelectPaged builds the paginated listing. The offset follows the
// generator's configured paging convention.
func (g *Generator) SelectPaged(d *Descriptor, f *Filter, order []Order, page, pageSize int) (Statement, error) {
	b := g.builder()
	g.selectList(b, d)
	if err := g.whereClause(b, d, f); err != nil {
		return Statement{}, err
	}
	if err := g.orderClause(b, d, order); err != nil {
		return Statement{}, err
	}
	offset := g.pageBase.Offset(page, pageSize)
	b.write(" " + g.dialect.PagingClause(b.bind, offset, pageSize))
	return b.stmt()
}

// Count builds the row count with an optional filter, excluding soft-deleted
// rows.
func (g *Generator) Count(d *Descriptor, f *Filter) (Statement, error) {
	b := g.builder()
	b.write("SELECT COUNT(*) FROM " + b.quote(d.TableName))
	if err := g.whereClause(b, d, f); err != nil {
		return Statement{}, err
	}
	return b.stmt()
}

// SoftDelete builds the lifecycle update marking a row deleted.
func (g *Generator) SoftDelete(d *Descriptor, id, now any) (Statement, error) {
	if !d.SoftDeletes() {
		return Statement{}, errors.Newf("%s does not carry soft-delete fields", d.Type.Name()).
			Component("persist").
			Category(errors.CategoryConfiguration).
			Build()
	}
	b := g.builder()
	b.write("UPDATE " + b.quote(d.TableName) + " SET ")
	b.write(b.quote(colIsDeleted) + " = " + b.bind(true))
	if d.hasDeletedAt {
		b.write(", " + b.quote(colDeletedAt) + " = " + b.bind(now))
	}
	if d.hasUpdatedAt {
		b.write(", " + b.quote(colUpdatedAt) + " = " + b.bind(now))
	}
	b.write(" WHERE " + b.quote(d.PKColumn) + " = " + b.bind(id))
	g.softDeleteGuard(b, d)
	return b.stmt()
}

// HardDelete builds the physical row removal. It bypasses the soft-delete
// guard so an already soft-deleted row can still be purged.
func (g *Generator) HardDelete(d *Descriptor, id any) (Statement, error) {
	b := g.builder()
	b.write("DELETE FROM " + b.quote(d.TableName))
	b.write(" WHERE " + b.quote(d.PKColumn) + " = " + b.bind(id))
	return b.stmt()
}

func (g *Generator) selectList(b *stmtBuilder, d *Descriptor) {
	b.write("SELECT ")
	for i, c := range d.AllColumns() {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.quote(c))
	}
	b.write(" FROM " + b.quote(d.TableName))
}

// softDeleteGuard appends the IsDeleted predicate to a WHERE clause already
// in progress.
func (g *Generator) softDeleteGuard(b *stmtBuilder, d *Descriptor) {
	if d.SoftDeletes() {
		b.write(" AND " + b.quote(colIsDeleted) + " = " + b.bind(false))
	}
}

// whereClause renders the soft-delete guard plus the caller's filter.
func (g *Generator) whereClause(b *stmtBuilder, d *Descriptor, f *Filter) error {
	wrote := false
	if d.SoftDeletes() {
		b.write(" WHERE " + b.quote(colIsDeleted) + " = " + b.bind(false))
		wrote = true
	}
	if f == nil || len(f.conds) == 0 {
		if f != nil && f.err != nil {
			return f.err
		}
		return nil
	}
	if f.err != nil {
		return f.err
	}
	if wrote {
		b.write(" AND ")
	} else {
		b.write(" WHERE ")
	}
	for i, c := range f.conds {
		if i > 0 {
			b.write(" AND ")
		}
		if err := c.render(b); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) orderClause(b *stmtBuilder, d *Descriptor, order []Order) error {
	if len(order) == 0 {
		if d.hasCreatedAt {
			order = []Order{{Column: colCreatedAt, Desc: true}}
		} else {
			order = []Order{{Column: d.PKColumn}}
		}
	}
	b.write(" ORDER BY ")
	for i, o := range order {
		if !d.HasColumn(o.Column) {
			return errors.Newf("order column %q is not part of %s", o.Column, d.Type.Name()).
				Component("persist").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if i > 0 {
			b.write(", ")
		}
		b.write(b.quote(o.Column))
		if o.Desc {
			b.write(" DESC")
		}
	}
	return nil
}
