package executor

import (
	"github.com/wbrown/janus-joqular/joqular"
)

// Rows is a lazy, single-pass sequence of tuples. The scans run on the
// first call to Next; abandoning the rows early is always safe.
type Rows struct {
	exec  *Executor
	query *Query
	ctx   Context

	started bool
	done    bool
	err     error

	run     *run
	aliases []string
	sets    [][]*candidate
	sites   []siteIndex
	idx     []int
	current Tuple
	count   int
}

// siteIndex locates a join site's aliases in the tuple.
type siteIndex struct {
	site  site
	left  int
	right int
}

// Next advances to the next tuple.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	if !r.started {
		r.started = true
		if !r.start() {
			r.finish()
			return false
		}
	} else if !r.advance() {
		r.finish()
		return false
	}

	for !r.valid() {
		if !r.advance() {
			r.finish()
			return false
		}
	}

	tuple := make(Tuple, len(r.aliases))
	for i, alias := range r.aliases {
		cand := r.sets[i][r.idx[i]]
		tuple[i] = Member{Alias: alias, ID: cand.id, Value: cand.value}
	}
	r.current = tuple
	r.count++
	return true
}

// Tuple returns the current tuple.
func (r *Rows) Tuple() Tuple {
	return r.current
}

// Err returns the error that stopped iteration, if any.
func (r *Rows) Err() error {
	return r.err
}

// Close stops iteration.
func (r *Rows) Close() error {
	if !r.done {
		r.finish()
	}
	return nil
}

// Aliases returns the tuple aliases.
func (r *Rows) Aliases() []string {
	if r.query == nil {
		return nil
	}
	return r.query.aliases
}

func (r *Rows) finish() {
	r.done = true
	r.current = nil
	r.run = nil
	if r.ctx != nil {
		r.ctx.QueryComplete(r.count, r.err)
	}
}

// start accumulates the candidates of every alias and positions the index
// vector on the first combination. It reports false when there are no rows.
func (r *Rows) start() bool {
	q := r.query
	r.ctx = NewContext(r.exec.opts.Handler)
	r.ctx.QueryBegin(q.tree.String(), q.aliases)

	if len(q.tree) == 0 {
		return false
	}

	run := newRun(r.exec.src, r.ctx, q.entities)
	r.run = run

	for _, c := range q.tree {
		cands, err := run.scanClause(c)
		if err != nil {
			r.err = err
			return false
		}
		if cands.len() == 0 {
			return false
		}
		run.top[c.Alias] = cands
	}

	for _, c := range q.tree {
		for _, cand := range run.top[c.Alias].order {
			run.commit(cand)
		}
	}
	for s, bySite := range run.links {
		linkCount := 0
		for _, rights := range bySite {
			linkCount += len(rights)
		}
		r.ctx.ResolveJoin(s.left, s.property, s.right, run.joined[s.right].len(), linkCount)
	}

	r.aliases = q.aliases
	r.sets = make([][]*candidate, len(r.aliases))
	sizes := make([]int, len(r.aliases))
	for i, alias := range r.aliases {
		set := r.survivors(alias)
		if len(set) == 0 {
			r.ctx.CrossProduct(r.aliases, sizes, r.exec.opts.Provenance)
			return false
		}
		r.sets[i] = set
		sizes[i] = len(set)
	}
	r.ctx.CrossProduct(r.aliases, sizes, r.exec.opts.Provenance)

	if r.exec.opts.Provenance {
		pos := make(map[string]int, len(r.aliases))
		for i, alias := range r.aliases {
			pos[alias] = i
		}
		for s := range run.links {
			r.sites = append(r.sites, siteIndex{site: s, left: pos[s.left], right: pos[s.right]})
		}
	}

	r.idx = make([]int, len(r.aliases))
	return true
}

// survivors combines the top-level candidates of alias with the partners
// it was joined to. An alias that appears in both places keeps only the
// instances found by both.
func (r *Rows) survivors(alias string) []*candidate {
	top, isTop := r.run.top[alias]
	joined, isJoined := r.run.joined[alias]
	switch {
	case isTop && isJoined:
		var out []*candidate
		for _, cand := range top.order {
			if joined.byID[cand.id] != nil {
				out = append(out, cand)
			}
		}
		return out
	case isTop:
		return top.order
	case isJoined:
		return joined.order
	}
	return nil
}

// advance moves the index vector to the next combination, last alias
// fastest.
func (r *Rows) advance() bool {
	for i := len(r.idx) - 1; i >= 0; i-- {
		r.idx[i]++
		if r.idx[i] < len(r.sets[i]) {
			return true
		}
		r.idx[i] = 0
	}
	return false
}

// valid reports whether every joined pair of the current combination was
// verified together.
func (r *Rows) valid() bool {
	for _, s := range r.sites {
		left := r.sets[s.left][r.idx[s.left]].id
		right := r.sets[s.right][r.idx[s.right]].id
		if !r.run.linked(s.site, left, right) {
			return false
		}
	}
	return true
}

// Collect drains rows into a slice.
func Collect(rows *Rows) ([]Tuple, error) {
	defer rows.Close()
	var out []Tuple
	for rows.Next() {
		out = append(out, rows.Tuple())
	}
	return out, rows.Err()
}

// Member is one alias's instance within a tuple.
type Member struct {
	Alias string
	ID    string
	Value joqular.Object
}

// Tuple holds one instance per alias, in alias order.
type Tuple []Member

// IDs returns the identifiers in alias order.
func (t Tuple) IDs() []string {
	ids := make([]string, len(t))
	for i, m := range t {
		ids[i] = m.ID
	}
	return ids
}

// Map returns the tuple as alias -> instance.
func (t Tuple) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(t))
	for _, m := range t {
		out[m.Alias] = m.Value
	}
	return out
}

// Instance returns the instance bound to alias.
func (t Tuple) Instance(alias string) (joqular.Object, bool) {
	for _, m := range t {
		if m.Alias == alias {
			return m.Value, true
		}
	}
	return nil, false
}
