// query.go: builder for caller-composed statements such as multi-table
// joins. Identifier slots only accept descriptor-validated names; values
// enter as bound parameters.
package persist

import (
	"github.com/examforge/examforge/internal/errors"
)

// QueryBuilder assembles a raw statement against one store's dialect.
type QueryBuilder struct {
	b *stmtBuilder
}

// NewQuery starts a builder on the store's dialect and registry.
func (s *Store) NewQuery() *QueryBuilder {
	g := NewGenerator(s.dialect, s.registry, ZeroBased)
	return &QueryBuilder{b: g.builder()}
}

// Write appends trusted statement text: keywords, aliases, punctuation.
// Never pass caller-supplied values through here.
func (q *QueryBuilder) Write(text string) *QueryBuilder {
	q.b.write(text)
	return q
}

// Table appends the quoted table name of d.
func (q *QueryBuilder) Table(d *Descriptor) *QueryBuilder {
	q.b.write(q.b.quote(d.TableName))
	return q
}

// Col appends alias.column, validating the column against d. An unknown
// column poisons the builder.
func (q *QueryBuilder) Col(d *Descriptor, alias, col string) *QueryBuilder {
	if !d.HasColumn(col) {
		if q.b.err == nil {
			q.b.err = errors.Newf("column %q is not part of %s", col, d.Type.Name()).
				Component("persist").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return q
	}
	if alias != "" {
		q.b.write(alias + ".")
	}
	q.b.write(q.b.quote(col))
	return q
}

// Bind appends a parameter placeholder for v, coercing it to storage form.
func (q *QueryBuilder) Bind(v any) *QueryBuilder {
	q.b.write(q.b.bind(v))
	return q
}

// Statement finalizes the builder.
func (q *QueryBuilder) Statement() (Statement, error) {
	return q.b.stmt()
}
