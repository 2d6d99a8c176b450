package adapter

import (
	"context"

	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// Capability names one operation an adapter can serve. The dispatcher
// queries an adapter's set to decide eligibility and precedence.
type Capability string

const (
	Insert       Capability = "insert"
	Update       Capability = "update"
	Delete       Capability = "delete"
	Find         Capability = "find"
	DefineSchema Capability = "defineSchema"
	AddIndex     Capability = "addIndex"

	// NativeJSON marks engines that store array and json attributes
	// structurally. The dispatcher stringifies those values for engines
	// without it and parses them back on the way out.
	NativeJSON Capability = "json"
)

// CapabilitySet is the set of capabilities an adapter exposes.
type CapabilitySet map[Capability]bool

// Caps builds a CapabilitySet.
func Caps(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// An Adapter is a backing-store-specific implementation of the CRUD
// contract. Records and queries arrive with storage column names; the
// dispatcher owns the translation from logical attribute names, so
// adapters never see them.
//
// Adapters own constraint enforcement (unique, storage-level required)
// and report violations with *ConstraintError.
type Adapter interface {
	// Capabilities returns the operations this adapter serves.
	Capabilities() CapabilitySet

	// Insert stores one record and returns it as stored, including any
	// engine-generated values (auto-increment keys).
	Insert(ctx context.Context, table string, record map[string]any) (map[string]any, error)

	// Update applies changes to every record matching q and returns the
	// updated records.
	Update(ctx context.Context, table string, q *criteria.Query, changes map[string]any) ([]map[string]any, error)

	// Delete removes every record matching q and returns the removed
	// records.
	Delete(ctx context.Context, table string, q *criteria.Query) ([]map[string]any, error)

	// Find returns the records matching q, honoring its sort,
	// pagination, and projection.
	Find(ctx context.Context, table string, q *criteria.Query) ([]map[string]any, error)
}

// SchemaDefiner is implemented by adapters that materialize the
// compiled schema in the engine (tables, column types).
type SchemaDefiner interface {
	DefineSchema(ctx context.Context, table string, s *schema.Schema) error
}

// Indexer is implemented by adapters that support secondary indexes.
// An index request may be rejected or downgraded: engines whose indexes
// compare exact bytes cannot simply index string attributes, whose
// equality is case-insensitive by contract.
type Indexer interface {
	AddIndex(ctx context.Context, table, column string, unique bool) error
}

// Caller is implemented by adapters exposing custom named methods
// beyond the CRUD contract.
type Caller interface {
	// Methods returns the custom method names, in no particular order.
	Methods() []string

	// Call invokes a custom method against the given table.
	Call(ctx context.Context, method, table string, args ...any) (any, error)
}
