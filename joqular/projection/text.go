package projection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-joqular/joqular"
)

// Marshal writes p as compact JSON. Fields and steps keep their order,
// object literals are wrapped as {"$literal": ...}, IDs is {"$ids": true}
// and the nil pattern is null. Unnamed Go functions fail with
// ErrNotSerializable.
func Marshal(p Pattern) ([]byte, error) {
	var buf bytes.Buffer
	if p == IDs {
		buf.WriteString(`{"` + IDsName + `":true}`)
		return buf.Bytes(), nil
	}
	if err := writePattern(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePattern(buf *bytes.Buffer, p Pattern) error {
	switch pat := p.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case Literal:
		if _, ok := asMap(pat.Value); ok {
			buf.WriteString(`{"` + LiteralName + `":`)
			if err := writeValue(buf, pat.Value); err != nil {
				return err
			}
			buf.WriteByte('}')
			return nil
		}
		return writeValue(buf, pat.Value)
	case Chain:
		buf.WriteByte('{')
		if err := writeSteps(buf, pat); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case *Object:
		buf.WriteByte('{')
		if err := writeSteps(buf, pat.Filter); err != nil {
			return err
		}
		for i, f := range pat.Fields {
			if i > 0 || len(pat.Filter) > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, f.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writePattern(buf, f.Pattern); err != nil {
				return fmt.Errorf("%s: %w", f.Key, err)
			}
		}
		buf.WriteByte('}')
		return nil
	case Func:
		return fmt.Errorf("%w: unnamed function", joqular.ErrNotSerializable)
	}
	return fmt.Errorf("%w: %T", joqular.ErrNotSerializable, p)
}

func writeSteps(buf *bytes.Buffer, c Chain) error {
	for i, step := range c {
		if step.Name == "" {
			return fmt.Errorf("%w: unnamed step", joqular.ErrNotSerializable)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, step.Name); err != nil {
			return err
		}
		buf.WriteByte(':')
		arg := step.Arg
		if re, ok := arg.(*regexp.Regexp); ok {
			arg = re.String()
		}
		if err := writeValue(buf, arg); err != nil {
			return fmt.Errorf("%s: %w", step.Name, err)
		}
	}
	return nil
}

func writeValue(buf *bytes.Buffer, v interface{}) error {
	n, err := joqular.Normalize(v)
	if err != nil {
		return fmt.Errorf("%w: %v", joqular.ErrNotSerializable, err)
	}
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("%w: %v", joqular.ErrNotSerializable, err)
	}
	buf.Write(b)
	return nil
}

// Unmarshal rebuilds a pattern from its text form, resolving every "$" key
// through reg. JSON and YAML are accepted; key order is kept.
func Unmarshal(text []byte, reg *Registry) (Pattern, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return nil, fmt.Errorf("parse pattern: %w", err)
	}
	if doc.Kind == 0 || (doc.Kind == yaml.DocumentNode && len(doc.Content) == 0) {
		return nil, nil
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		root = root.Content[0]
	}
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, nil
	}
	if root.Kind == yaml.MappingNode && len(root.Content) == 2 && root.Content[0].Value == IDsName {
		return IDs, nil
	}
	return parseNode(root, reg)
}

func parseNode(n *yaml.Node, reg *Registry) (Pattern, error) {
	if n.Kind == yaml.AliasNode {
		return parseNode(n.Alias, reg)
	}
	if n.Kind != yaml.MappingNode {
		v, err := decodeValue(n)
		if err != nil {
			return nil, err
		}
		return Literal{Value: v}, nil
	}

	if len(n.Content) == 2 && n.Content[0].Value == LiteralName {
		v, err := decodeValue(n.Content[1])
		if err != nil {
			return nil, err
		}
		return Literal{Value: v}, nil
	}

	obj := &Object{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i].Value, n.Content[i+1]
		if strings.HasPrefix(key, "$") {
			arg, err := decodeValue(value)
			if err != nil {
				return nil, err
			}
			step, err := reg.Step(key, arg)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", value.Line, err)
			}
			obj.Filter = append(obj.Filter, step)
			continue
		}
		p, err := parseNode(value, reg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		obj.Fields = append(obj.Fields, Field{Key: key, Pattern: p})
	}
	if len(obj.Fields) == 0 && len(obj.Filter) > 0 {
		return obj.Filter, nil
	}
	return obj, nil
}

func decodeValue(n *yaml.Node) (interface{}, error) {
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return joqular.Normalize(v)
}

// MustUnmarshal is Unmarshal that panics on error.
func MustUnmarshal(text string, reg *Registry) Pattern {
	p, err := Unmarshal([]byte(text), reg)
	if err != nil {
		panic(err)
	}
	return p
}
