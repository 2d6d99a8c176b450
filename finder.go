package strata

import (
	"context"

	"github.com/syssam/strata/criteria"
)

// Finder is a deferred query over a collection. Chain Populate to
// resolve associations, then resolve with All, One, or Count.
type Finder struct {
	c        *Collection
	crit     criteria.Criteria
	populate []string
}

// Populate marks the named association attributes for resolution after
// the find. Unknown or non-relational names fail at resolution time.
func (f *Finder) Populate(attrs ...string) *Finder {
	f.populate = append(f.populate, attrs...)
	return f
}

// All runs the query and returns every matching record.
func (f *Finder) All(ctx context.Context) ([]*Record, error) {
	q, err := criteria.Normalize(f.crit, f.c.s)
	if err != nil {
		return nil, err
	}
	rows, hit := f.cachedFind(ctx, q)
	if !hit {
		rows, err = f.c.dispatcher.Find(ctx, q)
		if err != nil {
			return nil, err
		}
		f.cacheStore(ctx, q, rows)
	}
	recs := f.c.wrap(rows)
	if len(f.populate) > 0 {
		if err := f.c.populateRecords(ctx, recs, f.populate); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// One runs the query with a limit of one and returns the single match,
// or ErrNotFound. The finder itself is left untouched.
func (f *Finder) One(ctx context.Context) (*Record, error) {
	limited := &Finder{c: f.c, crit: f.crit, populate: f.populate}
	limited.crit.Limit = 1
	recs, err := limited.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// Count returns the number of matching records. Sort, limit, and skip
// on the criteria still apply, so a windowed criteria counts the
// window.
func (f *Finder) Count(ctx context.Context) (int, error) {
	crit := f.crit
	crit.Select = []string{f.c.s.PrimaryKey().Name}
	q, err := criteria.Normalize(crit, f.c.s)
	if err != nil {
		return 0, err
	}
	rows, err := f.c.dispatcher.Find(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
