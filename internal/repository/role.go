package repository

import (
	"context"

	"github.com/examforge/examforge/internal/model"
	"github.com/examforge/examforge/internal/persist"
)

// RoleRepository is a thin facade over the generic engine.
type RoleRepository struct {
	base *persist.Repository[model.Role]
}

// NewRoleRepository wires the repository.
func NewRoleRepository(store *persist.Store, opts ...persist.Option) (*RoleRepository, error) {
	base, err := persist.NewRepository[model.Role](store, opts...)
	if err != nil {
		return nil, err
	}
	return &RoleRepository{base: base}, nil
}

// Base exposes the generic facade.
func (r *RoleRepository) Base() *persist.Repository[model.Role] {
	return r.base
}

// GetByName returns the role with the given name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*model.Role, error) {
	f := r.base.Filter().Eq("Name", name)
	roles, err := r.base.GetAll(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, notFound("Roles", name)
	}
	return &roles[0], nil
}
