// coerce.go: bidirectional converters between domain values and their
// storage representation.
package persist

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/errors"
)

// Codec converts one domain type to and from its storage representation.
// ToStorage and FromStorage must satisfy the round-trip law: a value written
// through ToStorage and re-read through FromStorage compares equal to the
// original.
type Codec struct {
	ToStorage   func(value any) (any, error)
	FromStorage func(raw any) (any, error)
}

// Registry maps domain types to codecs. It is constructed explicitly at
// process start and passed to the engine; there is no hidden global
// registration.
type Registry struct {
	codecs map[reflect.Type]Codec
}

// NewRegistry returns a registry preloaded with the uuid codec, which is
// required because not every backing store has a native 128-bit identifier
// type.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[reflect.Type]Codec)}
	r.Register(uuidType, Codec{
		ToStorage:   uuidToStorage,
		FromStorage: uuidFromStorage,
	})
	return r
}

// Register installs a codec for t, replacing any previous codec.
func (r *Registry) Register(t reflect.Type, c Codec) {
	r.codecs[t] = c
}

// Lookup returns the codec for t, unwrapping one level of pointer.
func (r *Registry) Lookup(t reflect.Type) (Codec, bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c, ok := r.codecs[t]
	return c, ok
}

// ToStorage converts value to its storage representation. Values without a
// registered codec pass through untouched. A nil pointer converts to nil so
// optional fields store as NULL.
func (r *Registry) ToStorage(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
		value = rv.Interface()
	}
	c, ok := r.codecs[rv.Type()]
	if !ok {
		return value, nil
	}
	return c.ToStorage(value)
}

// FromStorage converts a raw storage value to domain type t. Storage NULL
// coerces to the absent sentinel: the type's zero value, or a nil pointer
// for optional fields.
func (r *Registry) FromStorage(t reflect.Type, raw any) (any, error) {
	pointer := t.Kind() == reflect.Pointer
	if pointer {
		t = t.Elem()
	}
	if raw == nil {
		if pointer {
			return reflect.Zero(reflect.PointerTo(t)).Interface(), nil
		}
		return reflect.Zero(t).Interface(), nil
	}
	c, ok := r.codecs[t]
	if !ok {
		return raw, nil
	}
	value, err := c.FromStorage(raw)
	if err != nil {
		return nil, err
	}
	if pointer {
		pv := reflect.New(t)
		pv.Elem().Set(reflect.ValueOf(value))
		return pv.Interface(), nil
	}
	return value, nil
}

// uuidToStorage encodes an identifier in its canonical text form.
func uuidToStorage(value any) (any, error) {
	id, ok := value.(uuid.UUID)
	if !ok {
		return nil, coercionErr("expected uuid.UUID, got %T", value)
	}
	return id.String(), nil
}

// uuidFromStorage normalizes any representation the store may hand back:
// canonical text, a 16-byte binary blob, or text stored as bytes. Malformed
// input is a hard error, never a silent default.
func uuidFromStorage(raw any) (any, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, coercionErr("malformed identifier text %q: %v", v, err)
		}
		return id, nil
	case []byte:
		if len(v) == 16 {
			id, err := uuid.FromBytes(v)
			if err != nil {
				return nil, coercionErr("malformed 16-byte identifier: %v", err)
			}
			return id, nil
		}
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return nil, coercionErr("identifier blob of length %d is neither binary nor text form", len(v))
		}
		return id, nil
	default:
		return nil, coercionErr("unsupported identifier representation %T", raw)
	}
}

func coercionErr(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("persist").
		Category(errors.CategoryCoercion).
		Build()
}
