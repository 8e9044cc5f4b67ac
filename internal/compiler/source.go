package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"gopkg.in/yaml.v3"
)

type sourceKind int

const (
	kindNull sourceKind = iota
	kindScalar
	kindList
	kindStruct
)

func (k sourceKind) String() string {
	switch k {
	case kindScalar:
		return "scalar"
	case kindList:
		return "list"
	case kindStruct:
		return "struct"
	default:
		return "null"
	}
}

// source is one authored value, read from CUE or YAML (JSON included).
// Both carry positions, so errors point at the offending line.
type source interface {
	kind() sourceKind
	scalar() (string, error)
	items() ([]source, error)
	fields() ([]field, error)
	path() string
	errorf(format string, args ...any) *CompileError
}

type field struct {
	name  string
	value source
}

func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func index(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}

// cueSource wraps a cue.Value.
type cueSource struct {
	v cue.Value
	p string
}

func (s cueSource) kind() sourceKind {
	switch s.v.IncompleteKind() {
	case cue.NullKind:
		return kindNull
	case cue.ListKind:
		return kindList
	case cue.StructKind:
		return kindStruct
	default:
		return kindScalar
	}
}

func (s cueSource) scalar() (string, error) {
	if !s.v.IsConcrete() {
		return "", s.errorf("value is not concrete")
	}
	switch s.v.Kind() {
	case cue.StringKind:
		str, err := s.v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return str, nil
	case cue.IntKind:
		n, err := s.v.Int64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatInt(n, 10), nil
	case cue.FloatKind:
		f, err := s.v.Float64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case cue.BoolKind:
		b, err := s.v.Bool()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatBool(b), nil
	default:
		return "", s.errorf("expected text, got %s", s.v.Kind())
	}
}

func (s cueSource) items() ([]source, error) {
	iter, err := s.v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []source
	for i := 0; iter.Next(); i++ {
		out = append(out, cueSource{v: iter.Value(), p: index(s.p, i)})
	}
	return out, nil
}

func (s cueSource) fields() ([]field, error) {
	iter, err := s.v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []field
	for iter.Next() {
		name := iter.Label()
		out = append(out, field{name: name, value: cueSource{v: iter.Value(), p: join(s.p, name)}})
	}
	return out, nil
}

func (s cueSource) path() string {
	return s.p
}

func (s cueSource) errorf(format string, args ...any) *CompileError {
	return &CompileError{Field: s.p, Message: fmt.Sprintf(format, args...), Pos: s.v.Pos()}
}

// yamlSource wraps a yaml.Node.
type yamlSource struct {
	n    *yaml.Node
	p    string
	file string
}

func (s yamlSource) node() *yaml.Node {
	n := s.n
	for n.Kind == yaml.AliasNode || n.Kind == yaml.DocumentNode {
		if n.Kind == yaml.AliasNode {
			n = n.Alias
			continue
		}
		if len(n.Content) == 0 {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
		}
		n = n.Content[0]
	}
	return n
}

func (s yamlSource) kind() sourceKind {
	n := s.node()
	switch n.Kind {
	case yaml.SequenceNode:
		return kindList
	case yaml.MappingNode:
		return kindStruct
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return kindNull
		}
		return kindScalar
	default:
		return kindNull
	}
}

func (s yamlSource) scalar() (string, error) {
	n := s.node()
	if n.Kind != yaml.ScalarNode {
		return "", s.errorf("expected text, got %s", s.kind())
	}
	return n.Value, nil
}

func (s yamlSource) items() ([]source, error) {
	n := s.node()
	if n.Kind != yaml.SequenceNode {
		return nil, s.errorf("expected a list, got %s", s.kind())
	}
	out := make([]source, len(n.Content))
	for i, c := range n.Content {
		out[i] = yamlSource{n: c, p: index(s.p, i), file: s.file}
	}
	return out, nil
}

func (s yamlSource) fields() ([]field, error) {
	n := s.node()
	if n.Kind != yaml.MappingNode {
		return nil, s.errorf("expected a mapping, got %s", s.kind())
	}
	out := make([]field, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		out = append(out, field{name: name, value: yamlSource{n: n.Content[i+1], p: join(s.p, name), file: s.file}})
	}
	return out, nil
}

func (s yamlSource) path() string {
	return s.p
}

func (s yamlSource) errorf(format string, args ...any) *CompileError {
	return &CompileError{
		Field:   s.p,
		Message: fmt.Sprintf(format, args...),
		File:    s.file,
		Line:    s.n.Line,
		Column:  s.n.Column,
	}
}
