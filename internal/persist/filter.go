// filter.go: typed query-fragment builder. Identifier slots only accept
// columns from the trusted schema descriptor; values always travel as bound
// parameters.
package persist

import (
	"github.com/examforge/examforge/internal/errors"
)

type condKind int

const (
	condCompare condKind = iota
	condIn
	condIsNull
	condNotNull
)

type cond struct {
	kind condKind
	col  string
	op   string
	val  any
	vals []any
}

func (c cond) render(b *stmtBuilder) error {
	switch c.kind {
	case condCompare:
		b.write(b.quote(c.col) + " " + c.op + " " + b.bind(c.val))
	case condIn:
		b.write(b.quote(c.col) + " IN (")
		for i, v := range c.vals {
			if i > 0 {
				b.write(", ")
			}
			b.write(b.bind(v))
		}
		b.write(")")
	case condIsNull:
		b.write(b.quote(c.col) + " IS NULL")
	case condNotNull:
		b.write(b.quote(c.col) + " IS NOT NULL")
	}
	return nil
}

// Filter is a conjunction of predicates over one entity's columns. Build it
// from the descriptor so column names are validated before they reach
// statement text; the first invalid column poisons the filter and surfaces
// when a statement is generated.
type Filter struct {
	desc  *Descriptor
	conds []cond
	err   error
}

// NewFilter starts a filter over d's columns.
func NewFilter(d *Descriptor) *Filter {
	return &Filter{desc: d}
}

func (f *Filter) add(c cond) *Filter {
	if f.err != nil {
		return f
	}
	if !f.desc.HasColumn(c.col) {
		f.err = errors.Newf("filter column %q is not part of %s", c.col, f.desc.Type.Name()).
			Component("persist").
			Category(errors.CategoryConfiguration).
			Build()
		return f
	}
	f.conds = append(f.conds, c)
	return f
}

func (f *Filter) compare(col, op string, v any) *Filter {
	return f.add(cond{kind: condCompare, col: col, op: op, val: v})
}

// Eq adds column = value.
func (f *Filter) Eq(col string, v any) *Filter { return f.compare(col, "=", v) }

// Ne adds column <> value.
func (f *Filter) Ne(col string, v any) *Filter { return f.compare(col, "<>", v) }

// Gt adds column > value.
func (f *Filter) Gt(col string, v any) *Filter { return f.compare(col, ">", v) }

// Ge adds column >= value.
func (f *Filter) Ge(col string, v any) *Filter { return f.compare(col, ">=", v) }

// Lt adds column < value.
func (f *Filter) Lt(col string, v any) *Filter { return f.compare(col, "<", v) }

// Le adds column <= value.
func (f *Filter) Le(col string, v any) *Filter { return f.compare(col, "<=", v) }

// Like adds column LIKE pattern.
func (f *Filter) Like(col, pattern string) *Filter { return f.compare(col, "LIKE", pattern) }

// In adds column IN (values...). An empty value list is a validation error
// because it would render invalid SQL.
func (f *Filter) In(col string, vals ...any) *Filter {
	if f.err != nil {
		return f
	}
	if len(vals) == 0 {
		f.err = errors.Newf("IN predicate on %q needs at least one value", col).
			Component("persist").
			Category(errors.CategoryValidation).
			Build()
		return f
	}
	return f.add(cond{kind: condIn, col: col, vals: vals})
}

// IsNull adds column IS NULL.
func (f *Filter) IsNull(col string) *Filter {
	return f.add(cond{kind: condIsNull, col: col})
}

// NotNull adds column IS NOT NULL.
func (f *Filter) NotNull(col string) *Filter {
	return f.add(cond{kind: condNotNull, col: col})
}

// Err returns the first validation error recorded while building.
func (f *Filter) Err() error {
	if f == nil {
		return nil
	}
	return f.err
}
