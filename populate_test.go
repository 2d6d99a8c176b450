package strata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/adapter/memory"
	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

func ownersAndPets(t *testing.T) (*strata.Collection, *strata.Collection) {
	t.Helper()
	orm := strata.New()
	require.NoError(t, orm.RegisterConnection("default", memory.New()))
	ctx := context.Background()

	owners, err := orm.Register(ctx, strata.Definition{
		Identity:   "owner",
		Connection: []string{"default"},
		Attributes: map[string]schema.Attribute{
			"name": {Type: schema.TypeString, Required: true},
			"pets": {Collection: "pet", Via: "owner"},
		},
	})
	require.NoError(t, err)

	pets, err := orm.Register(ctx, strata.Definition{
		Identity:   "pet",
		Connection: []string{"default"},
		Attributes: map[string]schema.Attribute{
			"name":  {Type: schema.TypeString, Required: true},
			"owner": {Model: "owner"},
		},
	})
	require.NoError(t, err)
	return owners, pets
}

// TestPopulateBelongsTo tests foreign-key resolution into the related
// record.
func TestPopulateBelongsTo(t *testing.T) {
	t.Parallel()

	owners, pets := ownersAndPets(t)
	ctx := context.Background()

	ada, err := owners.Create(ctx, schema.Values{"name": "Ada"})
	require.NoError(t, err)
	_, err = pets.Create(ctx, schema.Values{"name": "Rex", "owner": ada.Get("id")})
	require.NoError(t, err)
	_, err = pets.Create(ctx, schema.Values{"name": "Stray"})
	require.NoError(t, err)

	recs, err := pets.Find(criteria.Criteria{}).Populate("owner").All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byName := map[string]*strata.Record{}
	for _, r := range recs {
		byName[r.Get("name").(string)] = r
	}
	rex := byName["Rex"]
	ownerRec, ok := rex.Get("owner").(*strata.Record)
	require.True(t, ok)
	assert.Equal(t, "Ada", ownerRec.Get("name"))

	// A nil foreign key stays nil.
	assert.Nil(t, byName["Stray"].Get("owner"))

	// ToObject flattens the populated record.
	obj := rex.ToObject()
	nested, ok := obj["owner"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ada", nested["name"])
}

// TestPopulateHasMany tests reverse resolution through the via
// attribute, including the empty-slice contract.
func TestPopulateHasMany(t *testing.T) {
	t.Parallel()

	owners, pets := ownersAndPets(t)
	ctx := context.Background()

	ada, err := owners.Create(ctx, schema.Values{"name": "Ada"})
	require.NoError(t, err)
	_, err = owners.Create(ctx, schema.Values{"name": "Grace"})
	require.NoError(t, err)
	for _, name := range []string{"Rex", "Pixel"} {
		_, err = pets.Create(ctx, schema.Values{"name": name, "owner": ada.Get("id")})
		require.NoError(t, err)
	}

	recs, err := owners.Find(criteria.Criteria{
		Sort: []criteria.Sort{{Attr: "name"}},
	}).Populate("pets").All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	adaPets, ok := recs[0].Get("pets").([]*strata.Record)
	require.True(t, ok)
	assert.Len(t, adaPets, 2)

	gracePets, ok := recs[1].Get("pets").([]*strata.Record)
	require.True(t, ok)
	assert.Empty(t, gracePets)
}

// TestPopulateRejections tests unknown and non-association populate
// targets.
func TestPopulateRejections(t *testing.T) {
	t.Parallel()

	owners, _ := ownersAndPets(t)
	ctx := context.Background()
	_, err := owners.Create(ctx, schema.Values{"name": "Ada"})
	require.NoError(t, err)

	_, err = owners.Find(criteria.Criteria{}).Populate("nope").All(ctx)
	assert.True(t, strata.IsUnknownAttribute(err))

	_, err = owners.Find(criteria.Criteria{}).Populate("name").All(ctx)
	assert.True(t, strata.IsSchemaError(err))
}
