package strata_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/adapter/kv"
	"github.com/syssam/strata/adapter/memory"
	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

func criteriaByName(name string) criteria.Criteria {
	return criteria.Criteria{Where: criteria.Where{"name": name}}
}

func personModel(t *testing.T) (*strata.ORM, *strata.Collection) {
	t.Helper()
	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("default", memory.New()))
	c, err := orm.Register(context.Background(), strata.Definition{
		Identity:   "person",
		Connection: []string{"default"},
		Attributes: map[string]schema.Attribute{
			"firstName": {Type: schema.TypeString, Required: true},
			"lastName":  {Type: schema.TypeString, Required: true, Unique: true},
			"age":       {Type: schema.TypeInteger, Required: true},
			"title":     {Type: schema.TypeString, DefaultsTo: "none"},
		},
	})
	require.NoError(t, err)
	return orm, c
}

// TestCreatePipeline tests the full create path: defaults, validation,
// timestamps, and generated keys.
func TestCreatePipeline(t *testing.T) {
	t.Parallel()

	_, people := personModel(t)
	ctx := context.Background()

	rec, err := people.Create(ctx, schema.Values{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"age":       "36",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Get("id"))
	assert.Equal(t, int64(36), rec.Get("age"))
	assert.Equal(t, "none", rec.Get("title"))
	require.IsType(t, time.Time{}, rec.Get("createdAt"))
	require.IsType(t, time.Time{}, rec.Get("updatedAt"))

	_, err = people.Create(ctx, schema.Values{"firstName": "Only"})
	require.Error(t, err)
	var ve *strata.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"required"}, ve.Rules("lastName"))
	assert.Equal(t, []string{"required"}, ve.Rules("age"))

	// A unique collision is a constraint error, not a validation error.
	_, err = people.Create(ctx, schema.Values{
		"firstName": "Augusta",
		"lastName":  "lovelace",
		"age":       40,
	})
	assert.True(t, strata.IsConstraint(err))
	assert.False(t, strata.IsValidationError(err))
}

// TestHookMutationVisibleToAdapter tests that a beforeCreate mutation
// lands in the stored record.
func TestHookMutationVisibleToAdapter(t *testing.T) {
	t.Parallel()

	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("default", memory.New()))
	c, err := orm.Register(context.Background(), strata.Definition{
		Identity:   "account",
		Connection: []string{"default"},
		Attributes: map[string]schema.Attribute{
			"email": {Type: schema.TypeString, Required: true},
		},
		Hooks: strata.Hooks{
			BeforeValidate: func(ctx context.Context, rec schema.Values) error {
				if s, ok := rec["email"].(string); ok {
					rec["email"] = strings.TrimSpace(s)
				}
				return nil
			},
		},
	})
	require.NoError(t, err)

	rec, err := c.Create(context.Background(), schema.Values{"email": "  a@b.co  "})
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", rec.Get("email"))

	found, err := c.FindOne(context.Background(), criteria.Criteria{
		Where: criteria.Where{"email": "a@b.co"},
	})
	require.NoError(t, err)
	assert.Equal(t, rec.Get("id"), found.Get("id"))
}

// TestUpdatePipeline tests partial validation, updatedAt refresh, and
// UpdateOne's single-record guarantee.
func TestUpdatePipeline(t *testing.T) {
	t.Parallel()

	_, people := personModel(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := people.Create(ctx, schema.Values{
			"firstName": "P",
			"lastName":  fmt.Sprintf("Name%d", i),
			"age":       30,
		})
		require.NoError(t, err)
	}

	recs, err := people.Update(ctx, criteria.Criteria{
		Where: criteria.Where{"age": 30},
	}, schema.Values{"age": 31})
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	for _, r := range recs {
		assert.Equal(t, int64(31), r.Get("age"))
	}

	// Partial mode: the required firstName may be absent from changes.
	one, err := people.UpdateOne(ctx, criteria.Criteria{
		Where: criteria.Where{"age": 31},
	}, schema.Values{"age": 99})
	require.NoError(t, err)
	assert.Equal(t, int64(99), one.Get("age"))
	n, err := people.Count(ctx, criteria.Criteria{Where: criteria.Where{"age": 99}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = people.UpdateOne(ctx, criteria.Criteria{
		Where: criteria.Where{"age": 1000},
	}, schema.Values{"age": 1})
	assert.True(t, strata.IsNotFound(err))
}

// TestExplicitPrimaryKeyUniqueness tests that a declared primary key
// rejects duplicates like the injected one, and that UpdateOne's
// single-record guarantee holds on such a model.
func TestExplicitPrimaryKeyUniqueness(t *testing.T) {
	t.Parallel()

	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("default", memory.New()))
	c, err := orm.Register(context.Background(), strata.Definition{
		Identity:   "item",
		Connection: []string{"default"},
		AutoPK:     strata.Bool(false),
		Attributes: map[string]schema.Attribute{
			"code": {Type: schema.TypeInteger, PrimaryKey: true},
			"name": {Type: schema.TypeString},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Create(ctx, schema.Values{"code": 1, "name": "first"})
	require.NoError(t, err)
	_, err = c.Create(ctx, schema.Values{"code": 1, "name": "shadow"})
	assert.True(t, strata.IsConstraint(err))

	_, err = c.Create(ctx, schema.Values{"code": 2, "name": "second"})
	require.NoError(t, err)

	// A broad criteria still updates exactly one record.
	one, err := c.UpdateOne(ctx, criteria.Criteria{}, schema.Values{"name": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", one.Get("name"))
	n, err := c.Count(ctx, criteriaByName("renamed"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestDeclaredTimestampsUntouched tests that a model owning its own
// timestamp attributes never has them overwritten by the pipeline.
func TestDeclaredTimestampsUntouched(t *testing.T) {
	t.Parallel()

	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("default", memory.New()))
	c, err := orm.Register(context.Background(), strata.Definition{
		Identity:      "event",
		Connection:    []string{"default"},
		AutoCreatedAt: strata.Bool(false),
		AutoUpdatedAt: strata.Bool(false),
		Attributes: map[string]schema.Attribute{
			"name":      {Type: schema.TypeString},
			"createdAt": {Type: schema.TypeDateTime},
			"updatedAt": {Type: schema.TypeDateTime},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	created := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	rec, err := c.Create(ctx, schema.Values{"name": "launch", "createdAt": created})
	require.NoError(t, err)
	assert.True(t, created.Equal(rec.Get("createdAt").(time.Time)))
	_, stamped := rec.ToObject()["updatedAt"]
	assert.False(t, stamped)

	updated := time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)
	recs, err := c.Update(ctx, criteriaByName("launch"), schema.Values{"updatedAt": updated})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, updated.Equal(recs[0].Get("updatedAt").(time.Time)))
}

// TestFinderReuse tests that resolving One does not narrow a finder
// that is resolved again afterwards.
func TestFinderReuse(t *testing.T) {
	t.Parallel()

	_, people := personModel(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := people.Create(ctx, schema.Values{
			"firstName": "P",
			"lastName":  fmt.Sprintf("Reuse%d", i),
			"age":       20,
		})
		require.NoError(t, err)
	}

	f := people.Find(criteria.Criteria{Where: criteria.Where{"age": 20}})
	_, err := f.One(ctx)
	require.NoError(t, err)

	recs, err := f.All(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

// TestDestroyPipeline tests destroy, the beforeDestroy veto leaving the
// store untouched, and afterDestroy receiving the removed records.
func TestDestroyPipeline(t *testing.T) {
	t.Parallel()

	var removed []string
	veto := false
	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("default", memory.New()))
	c, err := orm.Register(context.Background(), strata.Definition{
		Identity:   "task",
		Connection: []string{"default"},
		Attributes: map[string]schema.Attribute{
			"name": {Type: schema.TypeString, Required: true},
		},
		Hooks: strata.Hooks{
			BeforeDestroy: func(ctx context.Context, crit *criteria.Criteria) error {
				if veto {
					return fmt.Errorf("keep everything")
				}
				return nil
			},
			AfterDestroy: func(ctx context.Context, recs []*strata.Record) error {
				for _, r := range recs {
					removed = append(removed, r.Get("name").(string))
				}
				return nil
			},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	for _, name := range []string{"one", "two"} {
		_, err := c.Create(ctx, schema.Values{"name": name})
		require.NoError(t, err)
	}

	veto = true
	_, err = c.Destroy(ctx, criteriaByName("one"))
	assert.True(t, strata.IsHookError(err))
	n, err := c.Count(ctx, criteria.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	veto = false
	recs, err := c.Destroy(ctx, criteriaByName("one"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"one"}, removed)
	n, err = c.Count(ctx, criteria.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestFindCriteria tests find with modifiers, sorting, windowing, and
// the not-found contract.
func TestFindCriteria(t *testing.T) {
	t.Parallel()

	_, people := personModel(t)
	ctx := context.Background()
	ages := []int{25, 35, 45, 55}
	for i, age := range ages {
		_, err := people.Create(ctx, schema.Values{
			"firstName": "P",
			"lastName":  fmt.Sprintf("Last%d", i),
			"age":       age,
		})
		require.NoError(t, err)
	}

	recs, err := people.Find(criteria.Criteria{
		Where: criteria.Where{"age": map[string]any{">=": 35}},
		Sort:  []criteria.Sort{{Attr: "age", Desc: true}},
		Limit: 2,
	}).All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(55), recs[0].Get("age"))
	assert.Equal(t, int64(45), recs[1].Get("age"))

	recs, err = people.Find(criteria.Criteria{
		Where: criteria.Where{
			"or": []any{
				map[string]any{"age": 25},
				map[string]any{"lastName": "LAST3"},
			},
		},
	}).All(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = people.FindOne(ctx, criteria.Criteria{
		Where: criteria.Where{"age": 1000},
	})
	assert.True(t, strata.IsNotFound(err))
}

// TestMultiConnectionPrecedence tests CRUD capability routing and
// custom-method collision resolution across two connections.
func TestMultiConnectionPrecedence(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	blob := kv.New(kv.NewMemoryStore())
	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("primary", mem))
	require.NoError(t, orm.RegisterConnection("blobs", blob))

	c, err := orm.Register(context.Background(), strata.Definition{
		Identity:   "note",
		Connection: []string{"primary", "blobs"},
		Attributes: map[string]schema.Attribute{
			"body": {Type: schema.TypeString},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Create(ctx, schema.Values{"body": "hi"})
	require.NoError(t, err)

	// Both adapters expose "truncate"; the leftmost connection owns it.
	// "keys" exists only on the kv adapter and stays reachable.
	assert.ElementsMatch(t, []string{"truncate", "count", "keys"}, c.Methods())

	keys, err := c.Call(ctx, "keys")
	require.NoError(t, err)
	assert.Empty(t, keys) // record went to the memory connection

	_, err = c.Call(ctx, "truncate")
	require.NoError(t, err)
	n, err := c.Count(ctx, criteria.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// TestRecordSerialization tests ToObject flattening and the model
// ToJSON override.
func TestRecordSerialization(t *testing.T) {
	t.Parallel()

	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("default", memory.New()))
	c, err := orm.Register(context.Background(), strata.Definition{
		Identity:   "secret",
		Connection: []string{"default"},
		Attributes: map[string]schema.Attribute{
			"name":  {Type: schema.TypeString},
			"token": {Type: schema.TypeString},
		},
		ToJSON: func(r *strata.Record) any {
			obj := r.ToObject()
			delete(obj, "token")
			return obj
		},
	})
	require.NoError(t, err)

	rec, err := c.Create(context.Background(), schema.Values{
		"name":  "alpha",
		"token": "hunter2",
	})
	require.NoError(t, err)

	obj := rec.ToObject()
	assert.Equal(t, "hunter2", obj["token"])

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "alpha", decoded["name"])
	_, leaked := decoded["token"]
	assert.False(t, leaked)
}

// TestInstanceMethods tests definition-bound record methods.
func TestInstanceMethods(t *testing.T) {
	t.Parallel()

	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("default", memory.New()))
	c, err := orm.Register(context.Background(), strata.Definition{
		Identity:   "greeter",
		Connection: []string{"default"},
		Attributes: map[string]schema.Attribute{
			"name": {Type: schema.TypeString},
		},
		Methods: map[string]strata.Method{
			"greet": func(r *strata.Record, args ...any) any {
				return "hello " + r.Get("name").(string)
			},
		},
	})
	require.NoError(t, err)

	rec, err := c.Create(context.Background(), schema.Values{"name": "ada"})
	require.NoError(t, err)

	out, err := rec.Invoke("greet")
	require.NoError(t, err)
	assert.Equal(t, "hello ada", out)

	_, err = rec.Invoke("missing")
	assert.True(t, strata.IsUnsupported(err))
}

// TestNonStrictPassthrough tests that a non-strict model carries
// undeclared attributes through to storage and back.
func TestNonStrictPassthrough(t *testing.T) {
	t.Parallel()

	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("default", memory.New()))
	c, err := orm.Register(context.Background(), strata.Definition{
		Identity:   "blob",
		Connection: []string{"default"},
		Strict:     strata.Bool(false),
		Attributes: map[string]schema.Attribute{
			"name": {Type: schema.TypeString},
		},
	})
	require.NoError(t, err)

	rec, err := c.Create(context.Background(), schema.Values{
		"name":  "x",
		"extra": "kept",
	})
	require.NoError(t, err)
	assert.Equal(t, "kept", rec.Get("extra"))
}
