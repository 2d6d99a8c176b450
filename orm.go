package strata

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/syssam/strata/adapter"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/validate"
)

// ORM is the process-scoped registry of connections and compiled
// models. Registration is explicit, as is teardown; duplicate
// identities are rejected at registration rather than silently
// replaced.
type ORM struct {
	mu     sync.RWMutex
	conns  map[string]adapter.Adapter
	models map[string]*Collection
}

// New returns an empty registry.
func New() *ORM {
	return &ORM{
		conns:  make(map[string]adapter.Adapter),
		models: make(map[string]*Collection),
	}
}

// RegisterConnection binds an adapter instance to a connection name.
// Models reference connections by these names.
func (o *ORM) RegisterConnection(name string, a adapter.Adapter) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.conns[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConnection, name)
	}
	o.conns[name] = a
	return nil
}

// Register compiles a model definition, materializes its schema on the
// connections that support definition, and returns the ready
// Collection. Compile-time failures are fatal for the model: nothing is
// registered.
func (o *ORM) Register(ctx context.Context, def Definition) (*Collection, error) {
	cfg := schema.Config{
		Identity:      def.Identity,
		Connections:   def.Connection,
		TableName:     def.TableName,
		AutoPK:        flag(def.AutoPK, true),
		AutoCreatedAt: flag(def.AutoCreatedAt, true),
		AutoUpdatedAt: flag(def.AutoUpdatedAt, true),
		Strict:        flag(def.Strict, true),
		Validators:    def.Types,
	}
	for name, attr := range def.Attributes {
		for _, rule := range attr.Rules {
			if !validate.Known(rule.Name) {
				return nil, schema.NewAttrError(def.Identity, name, "unknown validation rule %q", rule.Name)
			}
		}
	}
	s, err := schema.Compile(cfg, def.Attributes)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if _, exists := o.models[s.Identity()]; exists {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentity, s.Identity())
	}
	conns := make([]adapter.Connection, 0, len(def.Connection))
	for _, name := range def.Connection {
		a, ok := o.conns[name]
		if !ok {
			o.mu.Unlock()
			return nil, schema.NewError(def.Identity, "unknown connection %q", name)
		}
		conns = append(conns, adapter.Connection{Name: name, Adapter: a})
	}
	c := &Collection{
		orm:        o,
		def:        def,
		s:          s,
		engine:     validate.New(s),
		dispatcher: adapter.NewDispatcher(s, conns),
	}
	o.models[s.Identity()] = c
	o.mu.Unlock()

	if err := c.dispatcher.Initialize(ctx); err != nil {
		o.mu.Lock()
		delete(o.models, s.Identity())
		o.mu.Unlock()
		return nil, err
	}
	return c, nil
}

// RegisterRaw parses a loose declaration map (the structural intake of
// §external interfaces: reserved top-level keys plus hook and method
// bindings by name) and registers it.
func (o *ORM) RegisterRaw(ctx context.Context, decl map[string]any) (*Collection, error) {
	def, err := ParseDefinition(decl)
	if err != nil {
		return nil, err
	}
	return o.Register(ctx, def)
}

// Collection returns the compiled model with the given identity.
func (o *ORM) Collection(identity string) (*Collection, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.models[identity]
	if !ok {
		return nil, fmt.Errorf("strata: unknown model %q", identity)
	}
	return c, nil
}

// Identities returns the registered model identities, sorted.
func (o *ORM) Identities() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.models))
	for id := range o.models {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Teardown clears the registry: all models and connections are
// forgotten. Adapters are not closed; callers own their lifecycle.
func (o *ORM) Teardown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.models = make(map[string]*Collection)
	o.conns = make(map[string]adapter.Adapter)
}
