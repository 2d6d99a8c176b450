package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/adapter"
	"github.com/syssam/strata/adapter/memory"
	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

func defineUsers(t *testing.T, a *memory.Adapter) {
	t.Helper()
	s, err := schema.Compile(schema.Config{
		Identity:    "user",
		Connections: []string{"default"},
		AutoPK:      true,
		Strict:      true,
	}, map[string]schema.Attribute{
		"name": {Type: schema.TypeString, Unique: true, Index: true},
		"age":  {Type: schema.TypeInteger},
	})
	require.NoError(t, err)
	require.NoError(t, a.DefineSchema(context.Background(), "users", s))
}

func insert(t *testing.T, a *memory.Adapter, rows ...map[string]any) {
	t.Helper()
	for _, row := range rows {
		_, err := a.Insert(context.Background(), "users", row)
		require.NoError(t, err)
	}
}

// TestInsertAutoIncrement tests counter-backed key generation,
// including resumption above explicitly supplied keys.
func TestInsertAutoIncrement(t *testing.T) {
	t.Parallel()

	a := memory.New()
	defineUsers(t, a)

	ctx := context.Background()
	first, err := a.Insert(ctx, "users", map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first["id"])

	_, err = a.Insert(ctx, "users", map[string]any{"id": int64(10), "name": "grace"})
	require.NoError(t, err)

	third, err := a.Insert(ctx, "users", map[string]any{"name": "linus"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), third["id"])
}

// TestUniqueCaseInsensitive tests that uniqueness on a string column
// folds case, on insert and on update.
func TestUniqueCaseInsensitive(t *testing.T) {
	t.Parallel()

	a := memory.New()
	defineUsers(t, a)
	insert(t, a, map[string]any{"name": "Ada"}, map[string]any{"name": "Grace"})

	ctx := context.Background()
	_, err := a.Insert(ctx, "users", map[string]any{"name": "ADA"})
	require.Error(t, err)
	var ce *adapter.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "name", ce.Column)

	// Updating a row onto another row's value collides; updating a row
	// onto its own value does not.
	q := &criteria.Query{Conditions: []criteria.Condition{
		{Column: "name", Op: criteria.OpEq, Value: "grace", Type: schema.TypeString},
	}}
	_, err = a.Update(ctx, "users", q, map[string]any{"name": "ada"})
	require.ErrorAs(t, err, &ce)

	rows, err := a.Update(ctx, "users", q, map[string]any{"name": "GRACE"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "GRACE", rows[0]["name"])
}

// TestFindWindowAndSort tests matching, case-insensitive sort,
// windowing, and projection.
func TestFindWindowAndSort(t *testing.T) {
	t.Parallel()

	a := memory.New()
	defineUsers(t, a)
	insert(t, a,
		map[string]any{"name": "delta", "age": int64(40)},
		map[string]any{"name": "Alpha", "age": int64(30)},
		map[string]any{"name": "charlie", "age": int64(20)},
		map[string]any{"name": "Bravo", "age": int64(10)},
	)

	ctx := context.Background()
	rows, err := a.Find(ctx, "users", &criteria.Query{
		Sort:    []criteria.SortColumn{{Column: "name", Type: schema.TypeString}},
		Skip:    1,
		Limit:   2,
		Columns: []string{"name"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bravo", rows[0]["name"])
	assert.Equal(t, "charlie", rows[1]["name"])
	_, hasAge := rows[0]["age"]
	assert.False(t, hasAge)

	rows, err = a.Find(ctx, "users", &criteria.Query{
		Conditions: []criteria.Condition{
			{Column: "age", Op: criteria.OpGte, Value: int64(30), Type: schema.TypeInteger},
		},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

// TestIndexDowngrade tests that string index requests are recorded as
// downgraded while numeric ones are not.
func TestIndexDowngrade(t *testing.T) {
	t.Parallel()

	a := memory.New()
	defineUsers(t, a)

	ctx := context.Background()
	require.NoError(t, a.AddIndex(ctx, "users", "name", true))
	require.NoError(t, a.AddIndex(ctx, "users", "age", false))
	assert.Equal(t, []string{"name"}, a.Downgraded("users"))
}

// TestCallMethods tests the adapter's custom methods.
func TestCallMethods(t *testing.T) {
	t.Parallel()

	a := memory.New()
	defineUsers(t, a)
	insert(t, a, map[string]any{"name": "ada"}, map[string]any{"name": "grace"})

	ctx := context.Background()
	n, err := a.Call(ctx, "count", "users")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = a.Call(ctx, "truncate", "users")
	require.NoError(t, err)
	n, err = a.Call(ctx, "count", "users")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = a.Call(ctx, "vacuum", "users")
	require.Error(t, err)
}
