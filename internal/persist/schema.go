// schema.go: derives table and column metadata from an entity type's shape.
package persist

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/examforge/examforge/internal/errors"
)

// Conventional names of the audit/lifecycle fields every entity carries.
const (
	colCreatedAt = "CreatedAt"
	colUpdatedAt = "UpdatedAt"
	colIsDeleted = "IsDeleted"
	colDeletedAt = "DeletedAt"
)

// entitySuffix is stripped from a type name before the table name is derived,
// so QuestionEntity and Question map to the same table.
const entitySuffix = "Entity"

// Column describes one persistable column of an entity.
type Column struct {
	Name  string // column name, defaults to the field name
	Index int    // struct field index
	Type  reflect.Type
}

// Descriptor holds the derived schema metadata for one entity type. It is
// computed once per type and cached for the lifetime of the process.
type Descriptor struct {
	Type      reflect.Type
	TableName string
	PKColumn  string
	PKIndex   int
	PKType    reflect.Type

	// Columns lists every persistable column except the primary key, in
	// field declaration order. Audit fields are included; statement
	// generation excludes them where the convention demands it.
	Columns []Column

	hasCreatedAt bool
	hasUpdatedAt bool
	hasIsDeleted bool
	hasDeletedAt bool
}

// TableNamer overrides the conventional table name for an entity type.
type TableNamer interface {
	TableName() string
}

// descriptorCache memoizes descriptors by type. Concurrent first access may
// compute the same descriptor twice; derivation is deterministic so both
// results are identical and the second write is harmless.
var descriptorCache = gocache.New(gocache.NoExpiration, 0)

// DescriptorFor returns the cached descriptor for T, deriving it on first use.
func DescriptorFor[T any]() (*Descriptor, error) {
	return descriptorForType(reflect.TypeOf((*T)(nil)).Elem())
}

// DescriptorForValue returns the descriptor for the dynamic type of entity.
func DescriptorForValue(entity any) (*Descriptor, error) {
	t := reflect.TypeOf(entity)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return nil, errors.Newf("cannot derive descriptor for nil entity").
			Component("persist").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return descriptorForType(t)
}

func descriptorForType(t reflect.Type) (*Descriptor, error) {
	key := t.PkgPath() + "." + t.Name()
	if cached, found := descriptorCache.Get(key); found {
		return cached.(*Descriptor), nil
	}
	desc, err := deriveDescriptor(t)
	if err != nil {
		return nil, err
	}
	descriptorCache.Set(key, desc, gocache.NoExpiration)
	return desc, nil
}

func deriveDescriptor(t reflect.Type) (*Descriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, configErr(t, "entity type must be a struct")
	}

	stripped := strings.TrimSuffix(t.Name(), entitySuffix)
	if stripped == "" {
		return nil, configErr(t, "entity type name reduces to nothing after suffix stripping")
	}

	desc := &Descriptor{
		Type:      t,
		TableName: Pluralize(stripped),
		PKColumn:  stripped + "Id",
		PKIndex:   -1,
	}
	if namer, ok := reflect.New(t).Interface().(TableNamer); ok {
		desc.TableName = namer.TableName()
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" || f.Anonymous {
			continue // unexported fields are never persisted
		}
		name, isPK, skip := parseFieldTag(f)
		if skip || !persistableType(f.Type) {
			continue
		}
		if isPK {
			desc.PKColumn = name
		}
		if name == desc.PKColumn {
			if desc.PKIndex >= 0 {
				return nil, configErr(t, "multiple fields resolve to primary key column "+name)
			}
			desc.PKIndex = i
			desc.PKType = f.Type
			continue
		}
		switch name {
		case colCreatedAt:
			desc.hasCreatedAt = true
		case colUpdatedAt:
			desc.hasUpdatedAt = true
		case colIsDeleted:
			desc.hasIsDeleted = true
		case colDeletedAt:
			desc.hasDeletedAt = true
		}
		desc.Columns = append(desc.Columns, Column{Name: name, Index: i, Type: f.Type})
	}

	if desc.PKIndex < 0 {
		return nil, configErr(t, "no field resolves to primary key column "+desc.PKColumn)
	}
	if len(desc.Columns) == 0 {
		return nil, configErr(t, "entity has no persistable columns besides the primary key")
	}
	return desc, nil
}

// parseFieldTag reads the optional db tag: `db:"-"` skips the field,
// `db:"Name"` overrides the column name, `db:",pk"` marks the primary key.
func parseFieldTag(f reflect.StructField) (name string, isPK, skip bool) {
	name = f.Name
	tag, ok := f.Tag.Lookup("db")
	if !ok {
		return name, false, false
	}
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "pk" {
			isPK = true
		}
	}
	return name, isPK, false
}

var timeType = reflect.TypeOf(time.Time{})
var uuidType = reflect.TypeOf(uuid.UUID{})

// persistableType reports whether a field type maps to a single column.
// Navigation fields (slices, maps, nested structs) are excluded automatically.
func persistableType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType || t == uuidType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// IdentityPK reports whether the primary key is a server-generated integer
// identity column. uuid keys are generated client-side instead.
func (d *Descriptor) IdentityPK() bool {
	switch d.PKType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

// AllColumns returns the full select list: primary key first, then every
// other persistable column in declaration order.
func (d *Descriptor) AllColumns() []string {
	cols := make([]string, 0, len(d.Columns)+1)
	cols = append(cols, d.PKColumn)
	for _, c := range d.Columns {
		cols = append(cols, c.Name)
	}
	return cols
}

// InsertColumns returns the INSERT column list: every persistable column,
// plus the primary key when it is client-generated.
func (d *Descriptor) InsertColumns() []string {
	cols := make([]string, 0, len(d.Columns)+1)
	if !d.IdentityPK() {
		cols = append(cols, d.PKColumn)
	}
	for _, c := range d.Columns {
		cols = append(cols, c.Name)
	}
	return cols
}

// UpdateColumns returns the UPDATE set list: every persistable column except
// the primary key, the creation timestamp, and the lifecycle fields. The
// modification timestamp is excluded here because the generator always
// force-assigns it.
func (d *Descriptor) UpdateColumns() []string {
	cols := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		switch c.Name {
		case colCreatedAt, colUpdatedAt, colIsDeleted, colDeletedAt:
			continue
		}
		cols = append(cols, c.Name)
	}
	return cols
}

// HasColumn reports whether name is the primary key or a persistable column.
// Identifier slots in dynamically built fragments only accept names that
// pass this check.
func (d *Descriptor) HasColumn(name string) bool {
	if name == d.PKColumn {
		return true
	}
	for _, c := range d.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// column returns the Column metadata for a non-PK column name.
func (d *Descriptor) column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// SoftDeletes reports whether the entity carries the soft-delete fields.
func (d *Descriptor) SoftDeletes() bool {
	return d.hasIsDeleted
}

// Pluralize applies the naming convention used for table names: y becomes
// ies, sibilant endings gain es, everything else gains s. Case-preserving.
func Pluralize(name string) string {
	switch {
	case strings.HasSuffix(name, "y"):
		return name[:len(name)-1] + "ies"
	case strings.HasSuffix(name, "s"), strings.HasSuffix(name, "x"),
		strings.HasSuffix(name, "z"), strings.HasSuffix(name, "ch"),
		strings.HasSuffix(name, "sh"):
		return name + "es"
	default:
		return name + "s"
	}
}

func configErr(t reflect.Type, msg string) error {
	return errors.Newf("%s: %s", t.Name(), msg).
		Component("persist").
		Category(errors.CategoryConfiguration).
		Build()
}
