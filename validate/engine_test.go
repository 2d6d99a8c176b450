package validate_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/validate"
)

func personSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Compile(schema.Config{
		Identity:    "person",
		Connections: []string{"default"},
		AutoPK:      true,
		Strict:      true,
	}, map[string]schema.Attribute{
		"firstName": {Type: schema.TypeString, Required: true},
		"lastName":  {Type: schema.TypeString, Required: true},
		"email": {Type: schema.TypeString, Rules: []schema.Rule{
			{Name: "email", Value: schema.Lit(true)},
		}},
		"age": {Type: schema.TypeInteger, Rules: []schema.Rule{
			{Name: "min", Value: schema.Lit(0)},
			{Name: "max", Value: schema.Lit(150)},
		}},
	})
	require.NoError(t, err)
	return s
}

// TestValidateComplete tests that every failing rule of every attribute
// is reported in one pass.
func TestValidateComplete(t *testing.T) {
	t.Parallel()

	s := personSchema(t)
	err := validate.Validate(context.Background(), s, schema.Values{
		"firstName": "Ada",
		"email":     "not-an-email",
		"age":       200,
	}, false)
	require.Error(t, err)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "person", ve.Identity)
	assert.Equal(t, []string{"required"}, ve.Rules("lastName"))
	assert.Equal(t, []string{"email"}, ve.Rules("email"))
	assert.Equal(t, []string{"max"}, ve.Rules("age"))
	assert.Empty(t, ve.Rules("firstName"))
}

// TestValidatePartial tests update-mode validation: absent attributes
// are skipped, present ones are checked.
func TestValidatePartial(t *testing.T) {
	t.Parallel()

	s := personSchema(t)
	require.NoError(t, validate.Validate(context.Background(), s, schema.Values{
		"age": 30,
	}, true))

	err := validate.Validate(context.Background(), s, schema.Values{
		"age": -1,
	}, true)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"min"}, ve.Rules("age"))
}

// TestValidateCoercion tests that coercion runs before rules and leaves
// the coerced value in the record, and that an uncoercible value fails
// under the type name.
func TestValidateCoercion(t *testing.T) {
	t.Parallel()

	s := personSchema(t)
	rec := schema.Values{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"age":       "36",
	}
	require.NoError(t, validate.Validate(context.Background(), s, rec, false))
	assert.Equal(t, int64(36), rec["age"])

	err := validate.Validate(context.Background(), s, schema.Values{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"age":       "not a number",
	}, false)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"integer"}, ve.Rules("age"))
}

// TestValidateRuleOperands tests the operand variants: derived
// operands, disabled rules, and compiled patterns.
func TestValidateRuleOperands(t *testing.T) {
	t.Parallel()

	mk := func(t *testing.T, rules []schema.Rule) *schema.Schema {
		t.Helper()
		s, err := schema.Compile(schema.Config{
			Identity:    "doc",
			Connections: []string{"default"},
			AutoPK:      true,
		}, map[string]schema.Attribute{
			"title": {Type: schema.TypeString, Rules: rules},
		})
		require.NoError(t, err)
		return s
	}

	t.Run("derived", func(t *testing.T) {
		s := mk(t, []schema.Rule{
			{Name: "maxLength", Value: schema.Derive(func(rec schema.Values) any {
				if rec["kind"] == "short" {
					return 3
				}
				return 100
			})},
		})
		err := validate.Validate(context.Background(), s, schema.Values{
			"title": "too long",
			"kind":  "short",
		}, false)
		var ve *validate.Error
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"maxLength"}, ve.Rules("title"))

		require.NoError(t, validate.Validate(context.Background(), s, schema.Values{
			"title": "too long",
		}, false))
	})

	t.Run("disabled", func(t *testing.T) {
		s := mk(t, []schema.Rule{
			{Name: "email", Value: schema.Lit(false)},
		})
		require.NoError(t, validate.Validate(context.Background(), s, schema.Values{
			"title": "not an email at all",
		}, false))
	})

	t.Run("pattern", func(t *testing.T) {
		s := mk(t, []schema.Rule{
			{Name: "is", Value: schema.Regex(regexp.MustCompile(`^[a-z]+$`))},
		})
		require.NoError(t, validate.Validate(context.Background(), s, schema.Values{
			"title": "lowercase",
		}, false))
		err := validate.Validate(context.Background(), s, schema.Values{
			"title": "Mixed Case",
		}, false)
		var ve *validate.Error
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"is"}, ve.Rules("title"))
	})

	t.Run("producer failure", func(t *testing.T) {
		s := mk(t, []schema.Rule{
			{Name: "in", Value: schema.DeriveCtx(func(ctx context.Context, rec schema.Values) (any, error) {
				return nil, context.DeadlineExceeded
			})},
		})
		err := validate.Validate(context.Background(), s, schema.Values{
			"title": "anything",
		}, false)
		var ve *validate.Error
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"in"}, ve.Rules("title"))
	})
}

// TestValidateCustomType tests model-registered type validators,
// including sibling-attribute access and panic containment.
func TestValidateCustomType(t *testing.T) {
	t.Parallel()

	point := func(v any, rec schema.Values) bool {
		m, ok := v.(map[string]any)
		if !ok {
			return false
		}
		_, hasX := m["x"]
		_, hasY := m["y"]
		return hasX && hasY
	}
	s, err := schema.Compile(schema.Config{
		Identity:    "shape",
		Connections: []string{"default"},
		AutoPK:      true,
		Validators:  map[string]schema.TypeValidator{"point": point},
	}, map[string]schema.Attribute{
		"origin": {Type: schema.TypeJSON, Validate: "point"},
		"panicky": {Type: schema.TypeString, Validate: "explode"},
	})
	require.Error(t, err) // explode is not registered

	s, err = schema.Compile(schema.Config{
		Identity:    "shape",
		Connections: []string{"default"},
		AutoPK:      true,
		Validators: map[string]schema.TypeValidator{
			"point":   point,
			"explode": func(v any, rec schema.Values) bool { panic("boom") },
		},
	}, map[string]schema.Attribute{
		"origin": {Type: schema.TypeJSON, Validate: "point"},
		"label":  {Type: schema.TypeString, Validate: "explode"},
	})
	require.NoError(t, err)

	require.NoError(t, validate.Validate(context.Background(), s, schema.Values{
		"origin": map[string]any{"x": 1, "y": 2},
	}, false))

	verr := validate.Validate(context.Background(), s, schema.Values{
		"origin": map[string]any{"x": 1},
		"label":  "anything",
	}, false)
	var ve *validate.Error
	require.ErrorAs(t, verr, &ve)
	assert.Equal(t, []string{"point"}, ve.Rules("origin"))
	assert.Equal(t, []string{"explode"}, ve.Rules("label"))
}

// TestKnown tests the builtin rule table lookup and the int alias.
func TestKnown(t *testing.T) {
	t.Parallel()

	assert.True(t, validate.Known("email"))
	assert.True(t, validate.Known("int"))
	assert.True(t, validate.Known("integer"))
	assert.False(t, validate.Known("sparkles"))
}
