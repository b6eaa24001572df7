package storage

import (
	"fmt"
	"time"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/annotations"
	"github.com/wbrown/janus-joqular/joqular/condition"
	"github.com/wbrown/janus-joqular/joqular/executor"
	"github.com/wbrown/janus-joqular/joqular/projection"
)

// Database provides the main API for defining entities, querying them and
// writing instances.
type Database struct {
	store      *Store
	exec       *executor.Executor
	opts       Options
	handler    annotations.Handler
	metrics    *annotations.Metrics
	conditions *condition.Cache
	patterns   *projection.Registry
}

// Open opens the backend selected by opts and wraps it in a database.
func Open(opts Options) (*Database, error) {
	backend, err := OpenBackend(opts)
	if err != nil {
		return nil, err
	}
	db, err := NewDatabase(backend, opts)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return db, nil
}

// NewDatabase creates a database over an open backend.
func NewDatabase(backend Backend, opts Options) (*Database, error) {
	db := &Database{
		opts:       opts,
		conditions: condition.NewCache(opts.ConditionCacheSize, opts.ConditionCacheTTL),
		patterns:   projection.NewRegistry(),
	}

	var console, metrics annotations.Handler
	if opts.Verbose {
		console = annotations.ConsoleHandler()
	}
	if opts.Registerer != nil {
		db.metrics = annotations.NewMetrics(opts.Registerer)
		metrics = db.metrics.Handler()
	}
	db.handler = annotations.Multi(opts.Handler, console, metrics)

	store, err := NewStore(backend, db.handler)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	db.store = store
	db.exec = executor.NewExecutor(store, executor.Options{
		Provenance: opts.Provenance,
		Handler:    db.handler,
	})
	return db, nil
}

// Close closes the backend.
func (d *Database) Close() error {
	return d.store.Close()
}

// Store returns the underlying store.
func (d *Database) Store() *Store {
	return d.store
}

// Define registers an entity.
func (d *Database) Define(schema joqular.Schema) error {
	return d.store.DefineSchema(schema)
}

// Patterns returns the transform registry used to compile and parse
// projection patterns.
func (d *Database) Patterns() *projection.Registry {
	return d.patterns
}

// Metrics returns the Prometheus metrics, or nil when no registerer was
// configured.
func (d *Database) Metrics() *annotations.Metrics {
	return d.metrics
}

// ParseCondition parses a condition tree from text through the database's
// cache.
func (d *Database) ParseCondition(text string) (condition.Tree, error) {
	return d.conditions.Parse(text)
}

// ConditionCacheStats returns the hit and miss counts and size of the
// condition cache.
func (d *Database) ConditionCacheStats() (hits, misses int64, size int) {
	return d.conditions.Stats()
}

// compile binds aliases to entities and validates tree against them.
func (d *Database) compile(bindings []executor.Binding, tree condition.Tree) (*executor.Query, error) {
	if err := d.checkBindings(bindings); err != nil {
		return nil, err
	}
	q, err := executor.Compile(bindings, tree)
	if err != nil {
		d.bindingError(err)
		return nil, err
	}
	return q, nil
}

func (d *Database) checkBindings(bindings []executor.Binding) error {
	for _, b := range bindings {
		if _, ok := d.store.GetSchema(b.Entity); !ok {
			err := fmt.Errorf("%w: %s", joqular.ErrUnknownEntity, b.Entity)
			d.bindingError(err)
			return err
		}
	}
	return nil
}

func (d *Database) bindingError(err error) {
	if d.handler == nil {
		return
	}
	now := time.Now()
	d.handler(annotations.Event{
		Name:  annotations.ErrorQueryBinding,
		Start: now,
		End:   now,
		Data:  map[string]interface{}{"error": err.Error()},
	})
}

// Entity binds an entity under its own name.
func Entity(name string) executor.Binding {
	return executor.Binding{Alias: name, Entity: name}
}

// As binds an entity under an alias.
func As(entity, alias string) executor.Binding {
	return executor.Binding{Alias: alias, Entity: entity}
}
