// Package executor runs condition trees against a Source with an
// index-nested-loop join. Each alias accumulates a candidate map from
// index and entity scans, candidates that fail any property test are
// pruned, joins are resolved per left candidate, and the surviving
// candidates are combined into tuples lazily.
package executor

import (
	"fmt"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/annotations"
	"github.com/wbrown/janus-joqular/joqular/condition"
)

// Source is the read side of the store used during execution.
type Source interface {
	// Get returns the instance stored under id.
	Get(id string) (joqular.Object, bool, error)
	// GetRange scans the primary key space over [start, end).
	GetRange(start, end string) (joqular.Iterator, error)
	// GetRangeFromIndex scans the secondary index of entity.property for
	// value, or every value when value is joqular.Any. Entries carry only
	// the identifier.
	GetRangeFromIndex(entity, property string, value interface{}) (joqular.Iterator, error)
}

// Binding binds an alias to an entity.
type Binding struct {
	Alias  string
	Entity string
}

// Options controls execution.
type Options struct {
	// Provenance restricts the cross product to tuples whose joined pairs
	// were verified together. Without it every surviving candidate of one
	// alias is combined with every surviving candidate of the others.
	Provenance bool

	// Handler receives annotation events. Nil disables annotations.
	Handler annotations.Handler
}

// DefaultOptions returns options with provenance tracking enabled.
func DefaultOptions() Options {
	return Options{Provenance: true}
}

// Executor runs queries against a source.
type Executor struct {
	src  Source
	opts Options
}

// NewExecutor creates an executor over src.
func NewExecutor(src Source, opts Options) *Executor {
	return &Executor{src: src, opts: opts}
}

// Query is a validated, optimized condition tree with its aliases bound to
// entities.
type Query struct {
	tree     condition.Tree
	entities map[string]string
	aliases  []string
}

// Compile validates tree against bindings and optimizes it. Every alias the
// tree names, including join targets, must be bound.
func Compile(bindings []Binding, tree condition.Tree) (*Query, error) {
	entities := make(map[string]string, len(bindings))
	for _, b := range bindings {
		if b.Alias == "" || b.Entity == "" {
			return nil, fmt.Errorf("binding %q: alias and entity are required", b.Alias)
		}
		if _, dup := entities[b.Alias]; dup {
			return nil, fmt.Errorf("alias %s bound twice", b.Alias)
		}
		entities[b.Alias] = b.Entity
	}

	if err := condition.Validate(tree); err != nil {
		return nil, err
	}

	aliases := condition.Aliases(tree)
	for _, alias := range aliases {
		if _, ok := entities[alias]; !ok {
			return nil, fmt.Errorf("%w: %s", joqular.ErrUnknownAlias, alias)
		}
	}

	return &Query{
		tree:     condition.OptimizeTree(tree),
		entities: entities,
		aliases:  aliases,
	}, nil
}

// Aliases returns the aliases of the tuples the query produces, in tuple
// order.
func (q *Query) Aliases() []string {
	return q.aliases
}

// Tree returns the optimized tree.
func (q *Query) Tree() condition.Tree {
	return q.tree
}

// Entity returns the entity bound to alias.
func (q *Query) Entity(alias string) string {
	return q.entities[alias]
}

// Execute compiles and runs tree. Compile errors are reported by the
// returned rows.
func (e *Executor) Execute(bindings []Binding, tree condition.Tree) *Rows {
	q, err := Compile(bindings, tree)
	if err != nil {
		return &Rows{err: err, done: true}
	}
	return e.Run(q)
}

// Run returns lazy rows for q. Nothing is read until the first call to
// Next, and every call to Run scans again from scratch.
func (e *Executor) Run(q *Query) *Rows {
	return &Rows{exec: e, query: q}
}

// Execute runs tree over src with the given options.
func Execute(src Source, bindings []Binding, tree condition.Tree, opts Options) *Rows {
	return NewExecutor(src, opts).Execute(bindings, tree)
}

// candidate is one instance accumulating property matches for an alias.
type candidate struct {
	id       string
	value    joqular.Object
	count    int
	lastProp int
	links    []link
}

// candidates keeps an alias's candidate map in first-seen order.
type candidates struct {
	byID  map[string]*candidate
	order []*candidate
}

func newCandidates() *candidates {
	return &candidates{byID: make(map[string]*candidate)}
}

func (c *candidates) len() int {
	return len(c.order)
}

// hit counts one property match. Repeated hits for the same property are
// counted once.
func (c *candidates) hit(id string, value joqular.Object, prop int, links []link) bool {
	cand, ok := c.byID[id]
	if !ok {
		cand = &candidate{id: id, value: value, lastProp: -1}
		c.byID[id] = cand
		c.order = append(c.order, cand)
	}
	if cand.lastProp == prop {
		return false
	}
	cand.lastProp = prop
	cand.count++
	cand.links = append(cand.links, links...)
	return true
}

// prune drops candidates that did not match all n properties.
func (c *candidates) prune(n int) {
	kept := c.order[:0]
	for _, cand := range c.order {
		if cand.count == n {
			kept = append(kept, cand)
		} else {
			delete(c.byID, cand.id)
		}
	}
	c.order = kept
}

func (c *candidates) add(cand *candidate) {
	if _, ok := c.byID[cand.id]; ok {
		return
	}
	c.byID[cand.id] = cand
	c.order = append(c.order, cand)
}

// site identifies one join: leftAlias.property joined onto right.
type site struct {
	left     string
	property string
	right    string
}

// link records the partners a left candidate found at a join site.
type link struct {
	site     site
	partners []*candidate
}

// run holds the accumulation state of one query invocation.
type run struct {
	src      Source
	ctx      Context
	entities map[string]string

	instances map[string]joqular.Object
	top       map[string]*candidates
	joined    map[string]*candidates
	links     map[site]map[string]map[string]bool
	memo      map[*condition.Clause]map[string][]*candidate
}

func newRun(src Source, ctx Context, entities map[string]string) *run {
	return &run{
		src:       src,
		ctx:       ctx,
		entities:  entities,
		instances: make(map[string]joqular.Object),
		top:       make(map[string]*candidates),
		joined:    make(map[string]*candidates),
		links:     make(map[site]map[string]map[string]bool),
		memo:      make(map[*condition.Clause]map[string][]*candidate),
	}
}

// resolve returns the full instance for a scanned entry.
func (r *run) resolve(e joqular.Entry) (joqular.Object, bool, error) {
	if e.Value != nil {
		return e.Value, true, nil
	}
	if inst, ok := r.instances[e.Key]; ok {
		return inst, inst != nil, nil
	}
	inst, ok, err := r.src.Get(e.Key)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", e.Key, err)
	}
	if !ok {
		// index entry without a record
		r.instances[e.Key] = nil
		return nil, false, nil
	}
	r.instances[e.Key] = inst
	return inst, true, nil
}

// each scans it and calls fn with each resolved instance.
func (r *run) each(it joqular.Iterator, fn func(id string, inst joqular.Object) error) (int, error) {
	defer it.Close()
	scanned := 0
	for it.Next() {
		scanned++
		e := it.Entry()
		inst, ok, err := r.resolve(e)
		if err != nil {
			return scanned, err
		}
		if !ok {
			continue
		}
		if err := fn(e.Key, inst); err != nil {
			return scanned, err
		}
	}
	return scanned, it.Err()
}

// scanFor opens the scan that feeds a property test: the index range for
// literals, the whole property index for operator tests and the entity's
// identifier range for joins.
func (r *run) scanFor(entity, property string, test condition.Test) (joqular.Iterator, error) {
	switch t := test.(type) {
	case condition.Null:
		return r.src.GetRangeFromIndex(entity, property, nil)
	case condition.Literal:
		return r.src.GetRangeFromIndex(entity, property, t.Value)
	case condition.Match:
		return r.src.GetRangeFromIndex(entity, property, joqular.Any)
	}
	start, end := joqular.IDRange(entity)
	return r.src.GetRange(start, end)
}

// scanClause accumulates the candidates of a top-level clause.
func (r *run) scanClause(c condition.Clause) (*candidates, error) {
	entity := r.entities[c.Alias]
	cands := newCandidates()

	if len(c.Props) == 0 {
		start, end := joqular.IDRange(entity)
		it, err := r.src.GetRange(start, end)
		if err != nil {
			return nil, err
		}
		_, err = r.each(it, func(id string, inst joqular.Object) error {
			cands.hit(id, inst, 0, nil)
			return nil
		})
		return cands, err
	}

	for i, p := range c.Props {
		err := r.ctx.ScanProperty(c.Alias, p.Property, p.Test.String(), scanKind(p.Test), func() (int, int, error) {
			it, err := r.scanFor(entity, p.Property, p.Test)
			if err != nil {
				return 0, 0, err
			}
			matched := 0
			scanned, err := r.each(it, func(id string, inst joqular.Object) error {
				if i > 0 && cands.byID[id] == nil {
					return nil
				}
				v, ok := inst[p.Property]
				if !ok {
					return nil
				}
				links, ok, err := r.test(c.Alias, id, p, v)
				if err != nil || !ok {
					return err
				}
				if cands.hit(id, inst, i, links) {
					matched++
				}
				return nil
			})
			return scanned, matched, err
		})
		if err != nil {
			return nil, err
		}
		before := cands.len()
		cands.prune(i + 1)
		if i == len(c.Props)-1 || cands.len() == 0 {
			r.ctx.PruneAlias(c.Alias, before, cands.len(), len(c.Props))
		}
		if cands.len() == 0 {
			break
		}
	}
	return cands, nil
}

func scanKind(t condition.Test) string {
	switch t.(type) {
	case condition.Null, condition.Literal:
		return "index"
	case condition.Match:
		return "index any"
	}
	return "entity"
}

// test applies a top-level property test to v. Joins report the links
// they found.
func (r *run) test(alias, id string, p condition.Prop, v interface{}) ([]link, bool, error) {
	switch t := p.Test.(type) {
	case condition.Null:
		return nil, v == nil, nil
	case condition.Literal:
		return nil, joqular.StrictEqual(t.Value, v), nil
	case condition.Match:
		_, ok := t.Test.Eval(v)
		return nil, ok, nil
	case condition.Join:
		return r.join(alias, id, p.Property, v, t.Tree)
	}
	return nil, false, fmt.Errorf("%s.%s: unsupported test %T", alias, p.Property, p.Test)
}

// join resolves every clause of a join tree for one left candidate whose
// property holds left. The candidate passes only if each joined alias has
// at least one partner.
func (r *run) join(alias, id, property string, left interface{}, tree condition.Tree) ([]link, bool, error) {
	links := make([]link, 0, len(tree))
	for i := range tree {
		clause := &tree[i]
		partners, err := r.partners(clause, id, left)
		if err != nil {
			return nil, false, err
		}
		if len(partners) == 0 {
			return nil, false, nil
		}
		links = append(links, link{
			site:     site{left: alias, property: property, right: clause.Alias},
			partners: partners,
		})
	}
	return links, true, nil
}

// partners finds the instances of a joined clause that match the left value
// on every property. Results are memoized per clause and left identifier.
func (r *run) partners(c *condition.Clause, leftID string, left interface{}) ([]*candidate, error) {
	memo, ok := r.memo[c]
	if !ok {
		memo = make(map[string][]*candidate)
		r.memo[c] = memo
	}
	if found, ok := memo[leftID]; ok {
		return found, nil
	}

	found, err := r.findPartners(c, left)
	if err != nil {
		return nil, err
	}
	memo[leftID] = found
	return found, nil
}

func (r *run) findPartners(c *condition.Clause, left interface{}) ([]*candidate, error) {
	entity := r.entities[c.Alias]
	cands := newCandidates()

	if len(c.Props) == 0 {
		start, end := joqular.IDRange(entity)
		it, err := r.src.GetRange(start, end)
		if err != nil {
			return nil, err
		}
		_, err = r.each(it, func(id string, inst joqular.Object) error {
			cands.hit(id, inst, 0, nil)
			return nil
		})
		return cands.order, err
	}

	for i, p := range c.Props {
		if !gate(p.Test, left) {
			return nil, nil
		}
		it, err := r.scanFor(entity, p.Property, p.Test)
		if err != nil {
			return nil, err
		}
		_, err = r.each(it, func(id string, inst joqular.Object) error {
			if i > 0 && cands.byID[id] == nil {
				return nil
			}
			v, ok := inst[p.Property]
			if !ok {
				return nil
			}
			links, ok, err := r.joinTest(c.Alias, id, p, left, v)
			if err != nil || !ok {
				return err
			}
			cands.hit(id, inst, i, links)
			return nil
		})
		if err != nil {
			return nil, err
		}
		cands.prune(i + 1)
		if cands.len() == 0 {
			return nil, nil
		}
	}
	return cands.order, nil
}

// gate rejects a left value before any scan when the test on the joined
// alias can not hold for it.
func gate(t condition.Test, left interface{}) bool {
	switch t := t.(type) {
	case condition.Null:
		return left == nil
	case condition.Literal:
		return joqular.StrictEqual(t.Value, left)
	case condition.Match:
		if !t.Test.Binary() {
			_, ok := t.Test.Eval(left)
			return ok
		}
	}
	return true
}

// joinTest applies a joined property test to the right value v.
func (r *run) joinTest(alias, id string, p condition.Prop, left, v interface{}) ([]link, bool, error) {
	switch t := p.Test.(type) {
	case condition.Null:
		return nil, v == nil, nil
	case condition.Literal:
		return nil, joqular.StrictEqual(left, v), nil
	case condition.Match:
		_, ok := t.Test.EvalJoin(left, v)
		return nil, ok, nil
	case condition.Join:
		return r.join(alias, id, p.Property, v, t.Tree)
	}
	return nil, false, fmt.Errorf("%s.%s: unsupported test %T", alias, p.Property, p.Test)
}

// commit records the joined partners of a surviving candidate, then those
// of each partner in turn.
func (r *run) commit(cand *candidate) {
	for _, l := range cand.links {
		bySite, ok := r.links[l.site]
		if !ok {
			bySite = make(map[string]map[string]bool)
			r.links[l.site] = bySite
		}
		rights, ok := bySite[cand.id]
		if !ok {
			rights = make(map[string]bool, len(l.partners))
			bySite[cand.id] = rights
		}

		joined, ok := r.joined[l.site.right]
		if !ok {
			joined = newCandidates()
			r.joined[l.site.right] = joined
		}
		for _, p := range l.partners {
			if rights[p.id] {
				continue
			}
			rights[p.id] = true
			joined.add(p)
			r.commit(p)
		}
	}
}

// linked reports whether the pair was verified at s.
func (r *run) linked(s site, left, right string) bool {
	return r.links[s][left][right]
}
