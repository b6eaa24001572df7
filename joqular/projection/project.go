package projection

import (
	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/executor"
)

// Option configures a projection.
type Option func(*scope)

// WithAll copies every field of each projected object into the output
// before the pattern's own fields are applied.
func WithAll() Option {
	return func(s *scope) {
		s.all = true
	}
}

// Project reshapes one tuple. A nil pattern returns the tuple as an
// alias -> instance object and IDs returns the identifiers in alias order.
// Any other pattern is applied to the alias -> instance object. The second
// result is false when nothing survives the pattern.
func Project(p Pattern, t executor.Tuple, opts ...Option) (interface{}, bool) {
	switch p {
	case nil:
		return joqular.Object(t.Map()), true
	case IDs:
		return t.IDs(), true
	}
	return Apply(p, joqular.Object(t.Map()), opts...)
}

// Apply walks p in lockstep with v.
func Apply(p Pattern, v interface{}, opts ...Option) (interface{}, bool) {
	if p == nil {
		return v, true
	}
	s := &scope{
		root:   joqular.Object{},
		lifted: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if obj, ok := p.(*Object); ok {
		return s.object(obj, v, s.root)
	}
	out, ok := s.walk(p, v, true)
	if !ok || joqular.IsUndefined(out) {
		return nil, false
	}
	return out, true
}

func (s *scope) walk(p Pattern, v interface{}, present bool) (interface{}, bool) {
	if !present {
		v = joqular.Undefined
	}
	switch pat := p.(type) {
	case nil:
		return v, present
	case Literal:
		if present && joqular.StrictEqual(pat.Value, v) {
			return v, true
		}
		return nil, false
	case Func:
		return pat(v)
	case Chain:
		return s.chain(pat, v)
	case *Object:
		return s.object(pat, v, nil)
	}
	return nil, false
}

func (s *scope) chain(c Chain, v interface{}) (interface{}, bool) {
	for _, step := range c {
		var ok bool
		if v, ok = step.run(v, s); !ok {
			return nil, false
		}
	}
	return v, true
}

// object projects the fields of v into into, or a new object when into is
// nil. Empty results do not match.
func (s *scope) object(pat *Object, v interface{}, into joqular.Object) (interface{}, bool) {
	if len(pat.Filter) > 0 {
		if _, ok := s.chain(pat.Filter, v); !ok {
			return nil, false
		}
	}
	src, ok := asMap(v)
	if !ok {
		return nil, false
	}

	result := into
	if result == nil {
		result = joqular.Object{}
	}
	if s.all {
		for k, val := range src {
			if obj, ok := asMap(val); ok {
				val = joqular.Object(obj).Clone()
			}
			result[k] = val
		}
	}

	parentKey := s.key
	for _, f := range pat.Fields {
		s.key = f.Key
		val, has := src[f.Key]
		out, ok := s.walk(f.Pattern, val, has)
		switch {
		case ok && !joqular.IsUndefined(out):
			result[f.Key] = out
		case into != nil && s.lifted[f.Key]:
			// lifted onto this object under its own key
		default:
			delete(result, f.Key)
		}
	}
	s.key = parentKey

	if len(result) == 0 {
		return nil, false
	}
	return result, true
}
