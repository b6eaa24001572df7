package storage

import (
	"fmt"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/condition"
	"github.com/wbrown/janus-joqular/joqular/executor"
	"github.com/wbrown/janus-joqular/joqular/projection"
)

// SelectBuilder builds a query. Nothing runs until the selection is
// iterated.
type SelectBuilder struct {
	db       *Database
	pattern  projection.Pattern
	opts     []projection.Option
	bindings []executor.Binding
	err      error
}

// Select starts a query projected through pattern. Without a pattern each
// result is the tuple as an alias -> instance object; projection.IDs
// yields the identifiers. Any other value is compiled with
// projection.Compile.
func (d *Database) Select(pattern ...interface{}) *SelectBuilder {
	b := &SelectBuilder{db: d}
	switch len(pattern) {
	case 0:
	case 1:
		b.pattern, b.err = projection.Compile(pattern[0], d.patterns)
	default:
		b.err = fmt.Errorf("select takes at most one pattern, got %d", len(pattern))
	}
	return b
}

// From binds the entities the query reads.
func (b *SelectBuilder) From(bindings ...executor.Binding) *SelectBuilder {
	b.bindings = append(b.bindings, bindings...)
	return b
}

// WithAll keeps every field of each projected instance, not only those the
// pattern names.
func (b *SelectBuilder) WithAll() *SelectBuilder {
	b.opts = append(b.opts, projection.WithAll())
	return b
}

// Where sets the condition. Binding errors are reported here, by the
// selection's Err, before anything is read.
func (b *SelectBuilder) Where(clauses ...condition.Clause) *Selection {
	s := &Selection{db: b.db, pattern: b.pattern, opts: b.opts, err: b.err}
	if s.err == nil {
		s.query, s.err = b.db.compile(b.bindings, condition.Where(clauses...))
	}
	return s
}

// SelectText runs a query whose pattern and condition are given as text.
// An empty pattern selects whole tuples.
func (d *Database) SelectText(pattern, where string, bindings ...executor.Binding) *Selection {
	p, err := projection.Unmarshal([]byte(pattern), d.patterns)
	if err != nil {
		return &Selection{db: d, err: err}
	}
	tree, err := d.conditions.Parse(where)
	if err != nil {
		return &Selection{db: d, err: err}
	}
	b := &SelectBuilder{db: d, pattern: p}
	return b.From(bindings...).Where(tree...)
}

// Selection is a compiled query.
type Selection struct {
	db      *Database
	query   *executor.Query
	pattern projection.Pattern
	opts    []projection.Option
	err     error
}

// Err returns the construction error, if any.
func (s *Selection) Err() error {
	return s.err
}

// WithAll returns a copy of the selection that keeps every field of each
// projected instance.
func (s *Selection) WithAll() *Selection {
	c := *s
	c.opts = append(append([]projection.Option(nil), s.opts...), projection.WithAll())
	return &c
}

// Aliases returns the aliases of each tuple in order.
func (s *Selection) Aliases() []string {
	if s.query == nil {
		return nil
	}
	return s.query.Aliases()
}

// Rows returns a lazy sequence of results. Each call runs the query again.
func (s *Selection) Rows() *Results {
	if s.err != nil {
		return &Results{err: s.err}
	}
	return &Results{
		rows:    s.db.exec.Run(s.query),
		pattern: s.pattern,
		opts:    s.opts,
	}
}

// All runs the query to completion and returns the projected results.
func (s *Selection) All() ([]interface{}, error) {
	r := s.Rows()
	defer r.Close()
	var out []interface{}
	for r.Next() {
		out = append(out, r.Value())
	}
	return out, r.Err()
}

// Tuples runs the query to completion and returns the unprojected tuples.
func (s *Selection) Tuples() ([]executor.Tuple, error) {
	if s.err != nil {
		return nil, s.err
	}
	return executor.Collect(s.db.exec.Run(s.query))
}

// Results iterates projected tuples. Tuples the pattern projects to nothing
// are skipped.
type Results struct {
	rows    *executor.Rows
	pattern projection.Pattern
	opts    []projection.Option
	value   interface{}
	err     error
}

func (r *Results) Next() bool {
	if r.rows == nil {
		return false
	}
	for r.rows.Next() {
		out, ok := projection.Project(r.pattern, r.rows.Tuple(), r.opts...)
		if !ok {
			continue
		}
		r.value = out
		return true
	}
	r.value = nil
	return false
}

// Value returns the current projected result.
func (r *Results) Value() interface{} {
	return r.value
}

// Tuple returns the current unprojected tuple.
func (r *Results) Tuple() executor.Tuple {
	if r.rows == nil {
		return nil
	}
	return r.rows.Tuple()
}

func (r *Results) Err() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *Results) Close() error {
	if r.rows != nil {
		return r.rows.Close()
	}
	return nil
}

// InsertBuilder builds an insert.
type InsertBuilder struct {
	db       *Database
	bindings []executor.Binding
}

// Insert starts an insert.
func (d *Database) Insert() *InsertBuilder {
	return &InsertBuilder{db: d}
}

// Into binds the entities written to.
func (b *InsertBuilder) Into(bindings ...executor.Binding) *InsertBuilder {
	b.bindings = append(b.bindings, bindings...)
	return b
}

type pendingPut struct {
	entity string
	inst   joqular.Object
}

// Values gives the instances to write by alias: one instance or a list of
// instances each. Array-shaped entities take a list of arrays. Every
// instance is constructed before anything is written, so a shape mismatch
// leaves the store untouched.
func (b *InsertBuilder) Values(values map[string]interface{}) *Write {
	if err := b.db.checkBindings(b.bindings); err != nil {
		return &Write{err: err}
	}
	bound := make(map[string]bool, len(b.bindings))
	for _, binding := range b.bindings {
		bound[binding.Alias] = true
	}
	for alias := range values {
		if !bound[alias] {
			return &Write{err: fmt.Errorf("%w: %s", joqular.ErrUnknownAlias, alias)}
		}
	}

	var puts []pendingPut
	for _, binding := range b.bindings {
		v, ok := values[binding.Alias]
		if !ok {
			continue
		}
		schema, _ := b.db.store.GetSchema(binding.Entity)
		insts, err := construct(schema, v)
		if err != nil {
			return &Write{err: fmt.Errorf("insert %s: %w", binding.Alias, err)}
		}
		for _, inst := range insts {
			puts = append(puts, pendingPut{entity: binding.Entity, inst: inst})
		}
	}

	store := b.db.store
	return &Write{produce: func() (writeSource, func()) {
		i := 0
		return func() (string, bool, error) {
			if i >= len(puts) {
				return "", false, nil
			}
			p := puts[i]
			i++
			id, err := store.Put(p.entity, p.inst)
			if err != nil {
				return "", false, err
			}
			return id, true, nil
		}, func() {}
	}}
}

// construct builds the instances for one alias's values.
func construct(schema joqular.Schema, v interface{}) ([]joqular.Object, error) {
	n, err := joqular.Normalize(v)
	if err != nil {
		return nil, err
	}

	var raws []interface{}
	switch val := n.(type) {
	case []interface{}:
		raws = val
	case joqular.Object:
		if schema.Shape == joqular.ArrayShape {
			return nil, fmt.Errorf("%w: %s expects a list of arrays, got an object", joqular.ErrShapeMismatch, schema.Name)
		}
		raws = []interface{}{val}
	default:
		return nil, fmt.Errorf("%w: %s expects instances, got %s", joqular.ErrShapeMismatch, schema.Name, joqular.TypeName(n))
	}

	out := make([]joqular.Object, 0, len(raws))
	for i, raw := range raws {
		if schema.Shape == joqular.ArrayShape {
			if _, ok := raw.([]interface{}); !ok {
				return nil, fmt.Errorf("%w: %s expects array instances, element %d is %s",
					joqular.ErrShapeMismatch, schema.Name, i, joqular.TypeName(raw))
			}
		}
		inst, err := schema.New(raw)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

// UpdateBuilder builds an update.
type UpdateBuilder struct {
	db       *Database
	bindings []executor.Binding
	patches  map[string]joqular.Object
	err      error
}

// Update starts an update over the bound entities.
func (d *Database) Update(bindings ...executor.Binding) *UpdateBuilder {
	return &UpdateBuilder{db: d, bindings: bindings, patches: make(map[string]joqular.Object)}
}

// Set gives the partial objects to merge, keyed by entity name.
func (b *UpdateBuilder) Set(patches map[string]interface{}) *UpdateBuilder {
	for entity, patch := range patches {
		n, err := joqular.Normalize(patch)
		if err != nil {
			b.err = fmt.Errorf("set %s: %w", entity, err)
			return b
		}
		obj, ok := n.(joqular.Object)
		if !ok {
			b.err = fmt.Errorf("set %s: expected an object, got %s", entity, joqular.TypeName(n))
			return b
		}
		b.patches[entity] = obj
	}
	return b
}

// Where selects the instances to patch. Each matching instance whose
// entity has a patch is merge-written once.
func (b *UpdateBuilder) Where(clauses ...condition.Clause) *Write {
	if b.err != nil {
		return &Write{err: b.err}
	}
	q, err := b.db.compile(b.bindings, condition.Where(clauses...))
	if err != nil {
		return &Write{err: err}
	}
	for entity := range b.patches {
		if !boundEntity(b.bindings, entity) {
			return &Write{err: fmt.Errorf("%w: %s is not bound", joqular.ErrUnknownEntity, entity)}
		}
	}

	store := b.db.store
	return &Write{produce: b.db.tupleWrites(q, func(m executor.Member) (bool, error) {
		patch, ok := b.patches[q.Entity(m.Alias)]
		if !ok {
			return false, nil
		}
		_, err := store.Patch(m.ID, patch)
		return err == nil, err
	})}
}

func boundEntity(bindings []executor.Binding, entity string) bool {
	for _, b := range bindings {
		if b.Entity == entity {
			return true
		}
	}
	return false
}

// DeleteBuilder builds a delete.
type DeleteBuilder struct {
	db       *Database
	bindings []executor.Binding
}

// Delete starts a delete.
func (d *Database) Delete() *DeleteBuilder {
	return &DeleteBuilder{db: d}
}

// From binds the entities deleted from.
func (b *DeleteBuilder) From(bindings ...executor.Binding) *DeleteBuilder {
	b.bindings = append(b.bindings, bindings...)
	return b
}

// Where selects the instances to remove.
func (b *DeleteBuilder) Where(clauses ...condition.Clause) *Write {
	q, err := b.db.compile(b.bindings, condition.Where(clauses...))
	if err != nil {
		return &Write{err: err}
	}
	store := b.db.store
	return &Write{produce: b.db.tupleWrites(q, func(m executor.Member) (bool, error) {
		return store.Remove(m.ID)
	})}
}

// writeSource performs the next write and returns its identifier.
type writeSource func() (id string, ok bool, err error)

// tupleWrites runs q and applies fn once to each distinct instance of the
// results, in tuple order.
func (d *Database) tupleWrites(q *executor.Query, fn func(m executor.Member) (bool, error)) func() (writeSource, func()) {
	return func() (writeSource, func()) {
		rows := d.exec.Run(q)
		seen := make(map[string]bool)
		var pending []executor.Member
		next := func() (string, bool, error) {
			for {
				for len(pending) > 0 {
					m := pending[0]
					pending = pending[1:]
					if seen[m.ID] {
						continue
					}
					seen[m.ID] = true
					ok, err := fn(m)
					if err != nil {
						return "", false, err
					}
					if ok {
						return m.ID, true, nil
					}
				}
				if !rows.Next() {
					return "", false, rows.Err()
				}
				pending = append(pending, rows.Tuple()...)
			}
		}
		return next, func() { rows.Close() }
	}
}

// Write is a compiled insert, update or delete. Writes happen one at a
// time as the results are pulled; there is no rollback when a later write
// fails.
type Write struct {
	produce func() (writeSource, func())
	err     error
}

// Err returns the construction error, if any.
func (w *Write) Err() error {
	return w.err
}

// Rows returns the lazy sequence of written identifiers. Each call runs
// the write again.
func (w *Write) Rows() *WriteResults {
	if w.err != nil {
		return &WriteResults{err: w.err, done: true}
	}
	next, closeFn := w.produce()
	return &WriteResults{next: next, close: closeFn}
}

// Exec runs the write to completion and returns the identifiers written.
func (w *Write) Exec() ([]string, error) {
	r := w.Rows()
	defer r.Close()
	var ids []string
	for r.Next() {
		ids = append(ids, r.ID())
	}
	return ids, r.Err()
}

// WriteResults iterates written identifiers.
type WriteResults struct {
	next  writeSource
	close func()
	id    string
	err   error
	done  bool
}

func (r *WriteResults) Next() bool {
	if r.done {
		return false
	}
	id, ok, err := r.next()
	if err != nil || !ok {
		r.err = err
		r.Close()
		return false
	}
	r.id = id
	return true
}

// ID returns the identifier of the last write.
func (r *WriteResults) ID() string {
	return r.id
}

func (r *WriteResults) Err() error {
	return r.err
}

func (r *WriteResults) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	r.id = ""
	if r.close != nil {
		r.close()
	}
	return nil
}
