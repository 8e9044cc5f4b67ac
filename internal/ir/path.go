package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// PathPart is one dotted segment of a reference path: a name followed by
// zero or more numeric indices. Indices are 1-based as authored.
//
// A part with an empty Name is the index-only remainder left behind when
// resolution stops in front of an index.
type PathPart struct {
	Name  string `json:"name,omitempty"`
	Index []int  `json:"index,omitempty"`
}

// Path is a parsed reference such as x.y[2].z.
type Path []PathPart

// String renders the path in authored form (without the leading $).
func (p Path) String() string {
	var b strings.Builder
	for i, part := range p {
		if i > 0 && part.Name != "" {
			b.WriteByte('.')
		}
		b.WriteString(part.Name)
		for _, idx := range part.Index {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(idx))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Empty reports whether nothing remains of the path.
func (p Path) Empty() bool {
	return len(p) == 0
}

// ParseRef parses an authored reference. The leading $ is required.
func ParseRef(ref string) (Path, error) {
	rest, ok := strings.CutPrefix(ref, "$")
	if !ok {
		return nil, fmt.Errorf("reference %q must start with $", ref)
	}
	return ParsePath(rest)
}

// ParsePath parses x.y[2].z into parts. Every segment must carry a name;
// indices must be positive integers.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}
	var path Path
	for _, seg := range strings.Split(s, ".") {
		part, err := parsePart(seg)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", s, err)
		}
		path = append(path, part)
	}
	return path, nil
}

func parsePart(seg string) (PathPart, error) {
	name, rest, _ := strings.Cut(seg, "[")
	if name == "" {
		return PathPart{}, fmt.Errorf("segment %q has no name", seg)
	}
	if !validName(name) {
		return PathPart{}, fmt.Errorf("invalid name %q", name)
	}
	part := PathPart{Name: name}
	if rest == "" {
		if strings.Contains(seg, "[") {
			return PathPart{}, fmt.Errorf("segment %q has an unterminated index", seg)
		}
		return part, nil
	}
	rest = "[" + rest
	for rest != "" {
		if rest[0] != '[' {
			return PathPart{}, fmt.Errorf("segment %q: unexpected %q", seg, rest)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return PathPart{}, fmt.Errorf("segment %q has an unterminated index", seg)
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil || n < 1 {
			return PathPart{}, fmt.Errorf("segment %q: index must be a positive integer", seg)
		}
		part.Index = append(part.Index, n)
		rest = rest[end+1:]
	}
	return part, nil
}

func validName(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}
