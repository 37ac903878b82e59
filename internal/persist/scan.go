// scan.go: moves values between entity struct fields and driver rows,
// applying the coercion registry in both directions.
package persist

import (
	"reflect"
	"time"

	"github.com/examforge/examforge/internal/errors"
)

// sqliteTimeLayouts covers the text forms the SQLite driver may hand back
// for DATETIME columns it could not parse itself.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// extractValues pulls the named columns out of an entity struct as domain
// values. The generator coerces them to storage form when binding.
func extractValues(d *Descriptor, cols []string, rv reflect.Value) ([]any, error) {
	vals := make([]any, 0, len(cols))
	for _, name := range cols {
		if name == d.PKColumn {
			vals = append(vals, rv.Field(d.PKIndex).Interface())
			continue
		}
		c, ok := d.column(name)
		if !ok {
			return nil, errors.Newf("column %q is not part of %s", name, d.Type.Name()).
				Component("persist").
				Category(errors.CategoryConfiguration).
				Build()
		}
		vals = append(vals, rv.Field(c.Index).Interface())
	}
	return vals, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntity scans one row laid out as d.AllColumns() into target, an
// addressable struct value of d.Type.
func scanEntity(d *Descriptor, registry *Registry, row rowScanner, target reflect.Value) error {
	cols := d.AllColumns()
	raws := make([]any, len(cols))
	for i := range raws {
		raws[i] = new(any)
	}
	if err := row.Scan(raws...); err != nil {
		return err
	}
	for i, name := range cols {
		raw := *(raws[i].(*any))
		var field reflect.Value
		if name == d.PKColumn {
			field = target.Field(d.PKIndex)
		} else {
			c, _ := d.column(name)
			field = target.Field(c.Index)
		}
		if err := assignField(registry, field, raw); err != nil {
			return errors.New(err).
				Component("persist").
				Category(errors.CategoryCoercion).
				Context("column", name).
				Context("entity", d.Type.Name()).
				Build()
		}
	}
	return nil
}

// assignField converts a raw driver value to the field's type and sets it.
func assignField(registry *Registry, field reflect.Value, raw any) error {
	t := field.Type()

	if _, hasCodec := registry.Lookup(t); hasCodec {
		value, err := registry.FromStorage(t, raw)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(value))
		return nil
	}

	if raw == nil {
		field.Set(reflect.Zero(t))
		return nil
	}

	if t.Kind() == reflect.Pointer {
		pv := reflect.New(t.Elem())
		if err := assignField(registry, pv.Elem(), raw); err != nil {
			return err
		}
		field.Set(pv)
		return nil
	}

	// time.Time arrives natively from drivers configured to parse it, or as
	// text from SQLite.
	if t == timeType {
		switch v := raw.(type) {
		case time.Time:
			field.Set(reflect.ValueOf(v))
			return nil
		case string:
			return assignTimeText(field, v)
		case []byte:
			return assignTimeText(field, string(v))
		default:
			return errors.Newf("cannot convert %T to time.Time", raw).Build()
		}
	}

	rv := reflect.ValueOf(raw)
	switch t.Kind() {
	case reflect.Bool:
		switch v := raw.(type) {
		case bool:
			field.SetBool(v)
		case int64:
			field.SetBool(v != 0)
		default:
			return errors.Newf("cannot convert %T to bool", raw).Build()
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch v := raw.(type) {
		case int64:
			field.SetInt(v)
		case float64:
			field.SetInt(int64(v))
		default:
			return errors.Newf("cannot convert %T to %s", raw, t.Kind()).Build()
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch v := raw.(type) {
		case int64:
			field.SetUint(uint64(v))
		default:
			return errors.Newf("cannot convert %T to %s", raw, t.Kind()).Build()
		}
	case reflect.Float32, reflect.Float64:
		switch v := raw.(type) {
		case float64:
			field.SetFloat(v)
		case int64:
			field.SetFloat(float64(v))
		default:
			return errors.Newf("cannot convert %T to %s", raw, t.Kind()).Build()
		}
	case reflect.String:
		switch v := raw.(type) {
		case string:
			field.SetString(v)
		case []byte:
			field.SetString(string(v))
		default:
			return errors.Newf("cannot convert %T to string", raw).Build()
		}
	default:
		if rv.Type().AssignableTo(t) {
			field.Set(rv)
			return nil
		}
		return errors.Newf("cannot convert %T to %s", raw, t).Build()
	}
	return nil
}

func assignTimeText(field reflect.Value, text string) error {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			field.Set(reflect.ValueOf(ts))
			return nil
		}
	}
	return errors.Newf("unparseable timestamp text %q", text).Build()
}
