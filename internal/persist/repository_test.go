package persist

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examforge/examforge/internal/conf"
	"github.com/examforge/examforge/internal/errors"
)

// newSQLiteStore opens an in-memory store for one test. Max one connection:
// each :memory: connection gets its own database.
func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	dialect, err := DialectFor(conf.DialectSQLite)
	require.NoError(t, err)
	return NewStoreFromDB(db, dialect, NewRegistry())
}

// Declared column types matter: the sqlite driver hands back bool and
// time.Time only for BOOLEAN and DATETIME columns.
func createRolesTable(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.DB().Exec(`CREATE TABLE "Roles" (
		"RoleId" TEXT PRIMARY KEY,
		"Name" TEXT NOT NULL,
		"Rank" INTEGER NOT NULL,
		"CreatedAt" DATETIME NOT NULL,
		"UpdatedAt" DATETIME NOT NULL,
		"IsDeleted" BOOLEAN NOT NULL,
		"DeletedAt" DATETIME
	)`)
	require.NoError(t, err)
}

func createBadgesTable(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.DB().Exec(`CREATE TABLE "Badges" (
		"BadgeId" INTEGER PRIMARY KEY AUTOINCREMENT,
		"Name" TEXT NOT NULL,
		"CreatedAt" DATETIME NOT NULL,
		"UpdatedAt" DATETIME NOT NULL,
		"IsDeleted" BOOLEAN NOT NULL,
		"DeletedAt" DATETIME
	)`)
	require.NoError(t, err)
}

func newRoleRepo(t *testing.T, store *Store, opts ...Option) *Repository[Role] {
	t.Helper()
	repo, err := NewRepository[Role](store, opts...)
	require.NoError(t, err)
	return repo
}

func TestRepositoryAddGeneratesKeyAndStampsAudit(t *testing.T) {
	store := newSQLiteStore(t)
	createRolesTable(t, store)
	repo := newRoleRepo(t, store)
	ctx := context.Background()

	role := &Role{Name: "editor", Rank: 2}
	require.NoError(t, repo.Add(ctx, role))

	assert.NotEqual(t, uuid.Nil, role.RoleId)
	assert.False(t, role.CreatedAt.IsZero())
	assert.Equal(t, role.CreatedAt, role.UpdatedAt)
	assert.False(t, role.IsDeleted)

	got, err := repo.GetByID(ctx, role.RoleId)
	require.NoError(t, err)
	assert.Equal(t, role.RoleId, got.RoleId)
	assert.Equal(t, "editor", got.Name)
	assert.Equal(t, 2, got.Rank)
	assert.Nil(t, got.DeletedAt)
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	store := newSQLiteStore(t)
	createRolesTable(t, store)
	repo := newRoleRepo(t, store)

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRepositoryUpdate(t *testing.T) {
	store := newSQLiteStore(t)
	createRolesTable(t, store)
	repo := newRoleRepo(t, store)
	ctx := context.Background()

	role := &Role{Name: "editor", Rank: 2}
	require.NoError(t, repo.Add(ctx, role))

	role.Name = "reviewer"
	role.Rank = 5
	require.NoError(t, repo.Update(ctx, role))

	got, err := repo.GetByID(ctx, role.RoleId)
	require.NoError(t, err)
	assert.Equal(t, "reviewer", got.Name)
	assert.Equal(t, 5, got.Rank)

	t.Run("zero affected rows is not found", func(t *testing.T) {
		ghost := &Role{RoleId: uuid.New(), Name: "ghost"}
		err := repo.Update(ctx, ghost)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestRepositorySoftDeleteExcludesFromEveryReadPath(t *testing.T) {
	store := newSQLiteStore(t)
	createRolesTable(t, store)
	repo := newRoleRepo(t, store)
	ctx := context.Background()

	keep := &Role{Name: "keep", Rank: 1}
	drop := &Role{Name: "drop", Rank: 2}
	require.NoError(t, repo.Add(ctx, keep))
	require.NoError(t, repo.Add(ctx, drop))

	require.NoError(t, repo.SoftDelete(ctx, drop.RoleId))

	_, err := repo.GetByID(ctx, drop.RoleId)
	assert.True(t, errors.IsNotFound(err))

	all, err := repo.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "keep", all[0].Name)

	n, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	exists, err := repo.Exists(ctx, drop.RoleId)
	require.NoError(t, err)
	assert.False(t, exists)

	// The row stays in the store; only the read paths hide it.
	var physical int64
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM "Roles"`).Scan(&physical))
	assert.Equal(t, int64(2), physical)

	t.Run("repeat soft delete is not found", func(t *testing.T) {
		err := repo.SoftDelete(ctx, drop.RoleId)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestRepositoryHardDeleteRemovesRow(t *testing.T) {
	store := newSQLiteStore(t)
	createRolesTable(t, store)
	repo := newRoleRepo(t, store)
	ctx := context.Background()

	role := &Role{Name: "temp", Rank: 1}
	require.NoError(t, repo.Add(ctx, role))
	require.NoError(t, repo.HardDelete(ctx, role.RoleId))

	var physical int64
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM "Roles"`).Scan(&physical))
	assert.Equal(t, int64(0), physical)
}

func TestRepositoryGetPaged(t *testing.T) {
	store := newSQLiteStore(t)
	createRolesTable(t, store)

	// A settable clock gives every row a distinct creation timestamp, which
	// the default newest-first ordering depends on.
	current := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	repo := newRoleRepo(t, store, WithClock(func() time.Time { return current }))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		current = current.Add(time.Minute)
		require.NoError(t, repo.Add(ctx, &Role{Name: fmt.Sprintf("role-%d", i), Rank: i}))
	}

	page, err := repo.GetPaged(ctx, nil, nil, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "role-4", page.Items[0].Name)
	assert.Equal(t, "role-3", page.Items[1].Name)

	last, err := repo.GetPaged(ctx, nil, nil, 2, 2)
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Equal(t, "role-0", last.Items[0].Name)

	t.Run("filter narrows total count", func(t *testing.T) {
		f := repo.Filter().Ge("Rank", 3)
		page, err := repo.GetPaged(ctx, f, nil, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.TotalCount)
		assert.Len(t, page.Items, 2)
	})
}

func TestRepositoryGetAllWithFilterAndOrder(t *testing.T) {
	store := newSQLiteStore(t)
	createRolesTable(t, store)
	repo := newRoleRepo(t, store)
	ctx := context.Background()

	for i, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, repo.Add(ctx, &Role{Name: name, Rank: i}))
	}

	got, err := repo.GetAll(ctx, repo.Filter().Ne("Name", "mid"), Order{Column: "Name"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "zeta", got[1].Name)
}

func TestRepositoryIdentityKeyAdd(t *testing.T) {
	store := newSQLiteStore(t)
	createBadgesTable(t, store)
	repo, err := NewRepository[Badge](store)
	require.NoError(t, err)
	ctx := context.Background()

	first := &Badge{Name: "gold"}
	second := &Badge{Name: "silver"}
	require.NoError(t, repo.Add(ctx, first))
	require.NoError(t, repo.Add(ctx, second))

	assert.Greater(t, first.BadgeId, int64(0))
	assert.Greater(t, second.BadgeId, first.BadgeId)

	got, err := repo.GetByID(ctx, second.BadgeId)
	require.NoError(t, err)
	assert.Equal(t, "silver", got.Name)
}

func TestRepositoryRawQuery(t *testing.T) {
	store := newSQLiteStore(t)
	createRolesTable(t, store)
	repo := newRoleRepo(t, store)
	ctx := context.Background()

	role := &Role{Name: "editor", Rank: 7}
	require.NoError(t, repo.Add(ctx, role))

	// Unknown result columns are discarded, unselected fields stay zero.
	got, err := repo.RawQuery(ctx,
		`SELECT "Name", "Rank", 1 AS "Bogus" FROM "Roles" WHERE "Rank" > ?`, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "editor", got[0].Name)
	assert.Equal(t, 7, got[0].Rank)
	assert.Equal(t, uuid.Nil, got[0].RoleId)
}

func TestRepositoryRawExecute(t *testing.T) {
	store := newSQLiteStore(t)
	createRolesTable(t, store)
	repo := newRoleRepo(t, store)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, &Role{Name: "a", Rank: 1}))
	require.NoError(t, repo.Add(ctx, &Role{Name: "b", Rank: 1}))

	n, err := repo.RawExecute(ctx, `UPDATE "Roles" SET "Rank" = ? WHERE "Rank" = ?`, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
