package strata

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// populateRecords resolves association attributes for a result set.
// Relations resolve concurrently, one lookup per relation for the whole
// set. Resolved values are applied only after every lookup succeeds, so
// a failed populate never leaves records half-resolved.
func (c *Collection) populateRecords(ctx context.Context, recs []*Record, attrs []string) error {
	if len(recs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(attrs))
	var relations []schema.Attribute
	for _, name := range attrs {
		if seen[name] {
			continue
		}
		seen[name] = true
		a, ok := c.s.Attribute(name)
		if !ok {
			return &criteria.UnknownAttributeError{Identity: c.s.Identity(), Attr: name}
		}
		if !a.Relational() {
			return schema.NewAttrError(c.s.Identity(), name, "cannot populate a non-association attribute")
		}
		relations = append(relations, a)
	}

	resolved := make([]map[int]any, len(relations))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range relations {
		g.Go(func() error {
			var (
				vals map[int]any
				err  error
			)
			if a.Collection != "" {
				vals, err = c.resolveMany(gctx, recs, a)
			} else {
				vals, err = c.resolveOne(gctx, recs, a)
			}
			if err != nil {
				return err
			}
			resolved[i] = vals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, a := range relations {
		for idx, v := range resolved[i] {
			recs[idx].values[a.Name] = v
		}
	}
	return nil
}

// resolveOne resolves a belongs-to relation: the attribute holds the
// related model's primary key, and the resolved value is the related
// record itself.
func (c *Collection) resolveOne(ctx context.Context, recs []*Record, a schema.Attribute) (map[int]any, error) {
	related, err := c.orm.Collection(a.Model)
	if err != nil {
		return nil, err
	}
	var keys []any
	seen := make(map[string]bool)
	for _, r := range recs {
		fk := r.values[a.Name]
		if fk == nil {
			continue
		}
		if k := foldKey(fk); !seen[k] {
			seen[k] = true
			keys = append(keys, fk)
		}
	}
	out := make(map[int]any)
	if len(keys) == 0 {
		return out, nil
	}
	pk := related.s.PrimaryKey().Name
	children, err := related.Find(criteria.Criteria{
		Where: criteria.Where{pk: keys},
	}).All(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*Record, len(children))
	for _, child := range children {
		byKey[foldKey(child.values[pk])] = child
	}
	for idx, r := range recs {
		fk := r.values[a.Name]
		if fk == nil {
			continue
		}
		if child, ok := byKey[foldKey(fk)]; ok {
			out[idx] = child
		}
	}
	return out, nil
}

// resolveMany resolves a has-many relation: the related model's Via
// attribute points back at this model's primary key, and the resolved
// value is the slice of related records. Records with no children get
// an empty slice rather than the raw key.
func (c *Collection) resolveMany(ctx context.Context, recs []*Record, a schema.Attribute) (map[int]any, error) {
	related, err := c.orm.Collection(a.Collection)
	if err != nil {
		return nil, err
	}
	if _, ok := related.s.Attribute(a.Via); !ok {
		return nil, schema.NewAttrError(c.s.Identity(), a.Name, "via attribute %q not declared on %s", a.Via, a.Collection)
	}
	pk := c.s.PrimaryKey().Name
	var keys []any
	for _, r := range recs {
		if v := r.values[pk]; v != nil {
			keys = append(keys, v)
		}
	}
	out := make(map[int]any)
	if len(keys) == 0 {
		return out, nil
	}
	children, err := related.Find(criteria.Criteria{
		Where: criteria.Where{a.Via: keys},
	}).All(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]*Record)
	for _, child := range children {
		k := foldKey(child.values[a.Via])
		grouped[k] = append(grouped[k], child)
	}
	for idx, r := range recs {
		v := r.values[pk]
		if v == nil {
			continue
		}
		group := grouped[foldKey(v)]
		if group == nil {
			group = []*Record{}
		}
		out[idx] = group
	}
	return out, nil
}

// foldKey renders a key value for matching across numeric widths: an
// int64 read back from one engine and the int it was written as must
// join.
func foldKey(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
	case float32:
		if float64(n) == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
	}
	return fmt.Sprintf("%v", v)
}
