package repository

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/errors"
)

var uuidReflectType = reflect.TypeOf(uuid.UUID{})

// notFound builds the standard missing-row error for repository lookups
// that resolve outside the generic facade.
func notFound(entity string, id any) error {
	return errors.Newf("%s: no matching row", entity).
		Component("repository").
		Category(errors.CategoryNotFound).
		Context("id", id).
		Build()
}
