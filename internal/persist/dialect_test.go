package persist

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examforge/examforge/internal/conf"
	"github.com/examforge/examforge/internal/errors"
)

// Badge has a server-generated identity key, unlike the uuid-keyed entities.
type Badge struct {
	BadgeId   int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
	DeletedAt *time.Time
}

func newTestGenerator(t *testing.T, dialectName string, pb PageBase) *Generator {
	t.Helper()
	dialect, err := DialectFor(dialectName)
	require.NoError(t, err)
	return NewGenerator(dialect, NewRegistry(), pb)
}

func TestPageBaseOffsets(t *testing.T) {
	assert.Equal(t, 0, ZeroBased.Offset(0, 20))
	assert.Equal(t, 40, ZeroBased.Offset(2, 20))
	assert.Equal(t, 0, OneBased.Offset(1, 20))
	assert.Equal(t, 20, OneBased.Offset(3, 10))
	// Out-of-range pages clamp to the first page instead of going negative.
	assert.Equal(t, 0, OneBased.Offset(0, 20))
}

func TestSelectPagedSQLServer(t *testing.T) {
	g := newTestGenerator(t, conf.DialectSQLServer, ZeroBased)
	desc, err := DescriptorFor[Role]()
	require.NoError(t, err)

	st, err := g.SelectPaged(desc, nil, nil, 2, 20)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT [RoleId], [Name], [Rank], [CreatedAt], [UpdatedAt], [IsDeleted], [DeletedAt] "+
			"FROM [Roles] WHERE [IsDeleted] = @p1 ORDER BY [CreatedAt] DESC "+
			"OFFSET @p2 ROWS FETCH NEXT @p3 ROWS ONLY",
		st.SQL)
	assert.Equal(t, []any{false, 40, 20}, st.Args)
}

func TestSelectPagedSQLite(t *testing.T) {
	g := newTestGenerator(t, conf.DialectSQLite, ZeroBased)
	desc, err := DescriptorFor[Role]()
	require.NoError(t, err)

	st, err := g.SelectPaged(desc, nil, nil, 0, 20)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "RoleId", "Name", "Rank", "CreatedAt", "UpdatedAt", "IsDeleted", "DeletedAt" `+
			`FROM "Roles" WHERE "IsDeleted" = ? ORDER BY "CreatedAt" DESC LIMIT ? OFFSET ?`,
		st.SQL)
	assert.Equal(t, []any{false, 20, 0}, st.Args)
}

func TestSelectPagedOneBasedFirstPageHasZeroOffset(t *testing.T) {
	g := newTestGenerator(t, conf.DialectSQLite, OneBased)
	desc, err := DescriptorFor[Role]()
	require.NoError(t, err)

	st, err := g.SelectPaged(desc, nil, nil, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []any{false, 20, 0}, st.Args)
}

func TestInsertIdentityKeyReturnsKeyInline(t *testing.T) {
	desc, err := DescriptorFor[Badge]()
	require.NoError(t, err)
	vals := []any{"gold", time.Now(), time.Now(), false, nil}

	t.Run("sqlserver uses OUTPUT", func(t *testing.T) {
		g := newTestGenerator(t, conf.DialectSQLServer, ZeroBased)
		st, err := g.Insert(desc, vals)
		require.NoError(t, err)
		assert.Equal(t,
			"INSERT INTO [Badges] ([Name], [CreatedAt], [UpdatedAt], [IsDeleted], [DeletedAt]) "+
				"OUTPUT INSERTED.[BadgeId] VALUES (@p1, @p2, @p3, @p4, @p5)",
			st.SQL)
		assert.True(t, st.ReturnsKey)
	})

	t.Run("sqlite relies on LastInsertId", func(t *testing.T) {
		g := newTestGenerator(t, conf.DialectSQLite, ZeroBased)
		st, err := g.Insert(desc, vals)
		require.NoError(t, err)
		assert.Equal(t,
			`INSERT INTO "Badges" ("Name", "CreatedAt", "UpdatedAt", "IsDeleted", "DeletedAt") `+
				`VALUES (?, ?, ?, ?, ?)`,
			st.SQL)
		assert.False(t, st.ReturnsKey)
	})
}

func TestInsertCoercesIdentifierToText(t *testing.T) {
	g := newTestGenerator(t, conf.DialectSQLite, ZeroBased)
	desc, err := DescriptorFor[Role]()
	require.NoError(t, err)

	id := uuid.New()
	now := time.Now()
	st, err := g.Insert(desc, []any{id, "editor", 1, now, now, false, nil})
	require.NoError(t, err)
	assert.Equal(t, id.String(), st.Args[0])
}

func TestUpdateForcesModificationTimestampAndGuardsSoftDelete(t *testing.T) {
	g := newTestGenerator(t, conf.DialectSQLServer, ZeroBased)
	desc, err := DescriptorFor[Role]()
	require.NoError(t, err)

	id := uuid.New()
	now := time.Now()
	st, err := g.Update(desc, []any{"editor", 2}, now, id)
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE [Roles] SET [Name] = @p1, [Rank] = @p2, [UpdatedAt] = @p3 "+
			"WHERE [RoleId] = @p4 AND [IsDeleted] = @p5",
		st.SQL)
	assert.Equal(t, []any{"editor", 2, now, id.String(), false}, st.Args)
}

func TestSoftDeleteStampsLifecycleFields(t *testing.T) {
	g := newTestGenerator(t, conf.DialectSQLite, ZeroBased)
	desc, err := DescriptorFor[Role]()
	require.NoError(t, err)

	id := uuid.New()
	now := time.Now()
	st, err := g.SoftDelete(desc, id, now)
	require.NoError(t, err)

	assert.Equal(t,
		`UPDATE "Roles" SET "IsDeleted" = ?, "DeletedAt" = ?, "UpdatedAt" = ? `+
			`WHERE "RoleId" = ? AND "IsDeleted" = ?`,
		st.SQL)
	assert.Equal(t, []any{true, now, now, id.String(), false}, st.Args)
}

func TestHardDeleteBypassesSoftDeleteGuard(t *testing.T) {
	g := newTestGenerator(t, conf.DialectSQLite, ZeroBased)
	desc, err := DescriptorFor[Role]()
	require.NoError(t, err)

	st, err := g.HardDelete(desc, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "Roles" WHERE "RoleId" = ?`, st.SQL)
}

func TestCountWithFilter(t *testing.T) {
	g := newTestGenerator(t, conf.DialectSQLite, ZeroBased)
	desc, err := DescriptorFor[Role]()
	require.NoError(t, err)

	f := NewFilter(desc).Like("Name", "ed%").In("Rank", 1, 2)
	st, err := g.Count(desc, f)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT COUNT(*) FROM "Roles" WHERE "IsDeleted" = ? AND "Name" LIKE ? AND "Rank" IN (?, ?)`,
		st.SQL)
	assert.Equal(t, []any{false, "ed%", 1, 2}, st.Args)
}

func TestFilterRejectsUnknownColumn(t *testing.T) {
	g := newTestGenerator(t, conf.DialectSQLite, ZeroBased)
	desc, err := DescriptorFor[Role]()
	require.NoError(t, err)

	f := NewFilter(desc).Eq("NoSuchColumn", 1)
	_, err = g.Count(desc, f)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestOrderByRejectsUnknownColumn(t *testing.T) {
	g := newTestGenerator(t, conf.DialectSQLite, ZeroBased)
	desc, err := DescriptorFor[Role]()
	require.NoError(t, err)

	_, err = g.SelectAll(desc, nil, []Order{{Column: "NoSuchColumn"}})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestDialectForUnknownName(t *testing.T) {
	_, err := DialectFor("oracle")
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}
