package document

import (
	"fmt"
	"log/slog"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/deps"
	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/resolver"
	"github.com/roach88/doccore/internal/structure"
)

// ref is a resolved extend reference.
type ref struct {
	source int
	rest   ir.Path
}

// bind resolves the references of idxs, infers implicit tags, looks up
// definitions and turns references into extends. Failures become
// placeholders.
func (d *Document) bind(idxs []int) {
	refs := make(map[int]ref)
	resolve := func() {
		for _, i := range idxs {
			if d.comps[i].inert || d.comps[i].failed != nil || d.flat.Nodes[i].Extend == "" {
				continue
			}
			r, err := d.resolveRef(i)
			if err != nil {
				delete(refs, i)
				continue
			}
			refs[i] = r
		}
	}

	// Whole-component copies let lookups fall through to their source, so
	// a second pass picks up references into copied content.
	resolve()
	for _, i := range idxs {
		if r, ok := refs[i]; ok && len(r.rest) == 0 {
			d.res.SetSourceChain(i, d.sourceChain(r.source, refs))
		}
	}
	resolve()

	for _, i := range idxs {
		c := d.comps[i]
		if c.inert || c.failed != nil {
			continue
		}
		if d.flat.Nodes[i].Extend != "" {
			if _, ok := refs[i]; !ok {
				_, err := d.resolveRef(i)
				d.failRef(i, err)
			}
		}
	}

	inferring := make(map[int]bool)
	for _, i := range idxs {
		d.inferTag(i, refs, inferring)
	}

	for _, i := range idxs {
		c := d.comps[i]
		if c.inert || c.failed != nil {
			continue
		}
		def, ok := d.cat.Lookup(c.tag)
		if !ok {
			d.fail(i, CodeUnknownComponent, fmt.Sprintf("unknown component %q", c.tag), nil)
			continue
		}
		c.def = def
	}

	// A copy of a failed component fails too.
	for changed := true; changed; {
		changed = false
		for _, i := range idxs {
			r, ok := refs[i]
			if !ok || d.comps[i].failed != nil || d.comps[i].inert {
				continue
			}
			if src := d.comps[r.source]; src.failed != nil || src.inert || src.deleted {
				d.fail(i, CodeUnresolvedReference, fmt.Sprintf("%s refers to a component that did not build", d.flat.Nodes[i].Extend), nil)
				changed = true
			}
		}
	}

	for _, i := range idxs {
		r, ok := refs[i]
		if !ok || d.comps[i].failed != nil || d.comps[i].inert {
			continue
		}
		ext, err := d.extendFor(i, r)
		if err != nil {
			d.fail(i, err.Code, err.Message, nil)
			continue
		}
		d.comps[i].extend = ext
	}
}

func (d *Document) resolveRef(i int) (ref, error) {
	path, err := ir.ParseRef(d.flat.Nodes[i].Extend)
	if err != nil {
		return ref{}, err
	}
	r, err := d.res.ResolveIndexed(path, i, false)
	if err != nil {
		return ref{}, err
	}
	return ref{source: r.Node, rest: r.Remainder}, nil
}

func (d *Document) failRef(i int, err error) {
	code := CodeUnresolvedReference
	if resolver.IsNonUnique(err) {
		code = CodeAmbiguousReference
	}
	d.fail(i, code, fmt.Sprintf("cannot resolve %s", d.flat.Nodes[i].Extend), err)
}

// sourceChain lists the components a failed name lookup at a copy of src
// falls through to: src, then whatever src itself copies.
func (d *Document) sourceChain(src int, refs map[int]ref) []int {
	chain := []int{src}
	for {
		next := -1
		if r, ok := refs[src]; ok && len(r.rest) == 0 {
			next = r.source
		} else if ext := d.comps[src].extend; ext != nil && ext.Prop == "" {
			next = ext.Source
		}
		if next < 0 || contains(chain, next) {
			return chain
		}
		chain = append(chain, next)
		src = next
	}
}

// inferTag fills in the tag of a reference authored without one: a whole
// copy takes its source's tag, a prop copy the tag for the prop's type.
func (d *Document) inferTag(i int, refs map[int]ref, inferring map[int]bool) string {
	c := d.comps[i]
	if c.tag != "" || c.inert {
		return c.tag
	}
	r, ok := refs[i]
	if !ok {
		return c.tag
	}
	if inferring[i] {
		d.fail(i, CodeExtendCycle, "reference refers back to itself", nil)
		return c.tag
	}
	inferring[i] = true
	defer delete(inferring, i)

	srcTag := d.inferTag(r.source, refs, inferring)
	if c.failed != nil {
		return c.tag
	}
	src := d.comps[r.source]
	sdef, ok := d.cat.Lookup(srcTag)
	if !ok || src.failed != nil || src.inert {
		d.fail(i, CodeUnresolvedReference, fmt.Sprintf("%s refers to a component that did not build", d.flat.Nodes[i].Extend), nil)
		return c.tag
	}

	prop := ""
	switch {
	case len(r.rest) == 0 && sdef.Hidden && sdef.ExtendProp != "":
		prop = sdef.ExtendProp
	case len(r.rest) == 0:
		c.tag = srcTag
		return c.tag
	case r.rest[0].Name == "" && sdef.Group != nil:
		prop = sdef.Group.MembersProp
	default:
		prop = r.rest[0].Name
	}
	pd, ok := sdef.Prop(prop)
	if !ok {
		d.fail(i, CodeNotFound, fmt.Sprintf("%s has no prop %q", srcTag, prop), nil)
		return c.tag
	}
	c.tag = catalog.TagForType(d.valueType(r.source, pd))
	return c.tag
}

// valueType returns the declared type of a prop, or for an untyped prop the
// type of its current value when the engine can already resolve it.
func (d *Document) valueType(src int, pd *catalog.PropDef) string {
	if pd.Type != catalog.TypeAny || d.engine == nil || !d.graph.Live(src) {
		return pd.Type
	}
	v, ok, err := d.engine.Resolve(deps.Whole(src, pd.Name))
	if err != nil || !ok {
		return pd.Type
	}
	if arr, isArr := v.(ir.Array); isArr && len(arr) > 0 {
		v = arr[0]
	}
	switch v.(type) {
	case ir.Number, ir.Int:
		return catalog.TypeNumber
	case ir.Bool:
		return catalog.TypeBoolean
	}
	return catalog.TypeString
}

type extendError struct {
	Code    string
	Message string
}

// extendFor turns a resolved reference into what the component copies.
func (d *Document) extendFor(i int, r ref) (*structure.Extend, *extendError) {
	def := d.comps[i].def
	src := d.comps[r.source]
	sdef := src.def
	needProp := func(ext *structure.Extend) (*structure.Extend, *extendError) {
		if def.ExtendProp == "" {
			return nil, &extendError{CodeIncompatibleExtend, fmt.Sprintf("%s cannot copy a prop", def.Tag)}
		}
		return ext, nil
	}

	switch rest := r.rest; {
	case len(rest) == 0 && src.tag == d.comps[i].tag:
		return &structure.Extend{Source: r.source}, nil

	case len(rest) == 0:
		if sdef.ExtendProp == "" {
			return nil, &extendError{CodeIncompatibleExtend, fmt.Sprintf("%s cannot extend %s", def.Tag, sdef.Tag)}
		}
		return needProp(&structure.Extend{Source: r.source, Prop: sdef.ExtendProp})

	case len(rest) > 1:
		return nil, &extendError{CodeNotFound, fmt.Sprintf("cannot resolve %q below %s", rest.String(), sdef.Tag)}

	case rest[0].Name == "":
		if sdef.Group == nil || len(rest[0].Index) != 1 {
			return nil, &extendError{CodeNotFound, fmt.Sprintf("%s has no members to index", sdef.Tag)}
		}
		return needProp(&structure.Extend{Source: r.source, Prop: sdef.Group.MembersProp, Element: rest[0].Index[0]})
	}

	part := r.rest[0]
	pd, ok := sdef.Prop(part.Name)
	if !ok || !pd.Public {
		return nil, &extendError{CodeNotFound, fmt.Sprintf("%s has no public prop %q", sdef.Tag, part.Name)}
	}
	switch len(part.Index) {
	case 0:
		return needProp(&structure.Extend{Source: r.source, Prop: part.Name})
	case 1:
		if !pd.IsArray {
			return nil, &extendError{CodeNotFound, fmt.Sprintf("%s.%s is not an array", sdef.Tag, part.Name)}
		}
		return needProp(&structure.Extend{Source: r.source, Prop: part.Name, Element: part.Index[0]})
	}
	return nil, &extendError{CodeNotFound, fmt.Sprintf("cannot index %s.%s twice", sdef.Tag, part.Name)}
}

// fail replaces component i with an error placeholder and makes its
// content inert.
func (d *Document) fail(i int, code, msg string, cause error) {
	c := d.comps[i]
	be := &BuildError{Code: code, Component: i, Tag: c.tag, Name: c.name, Message: msg, Err: cause}
	slog.Warn("component replaced by placeholder", "error", be)

	c.failed = be
	c.tag = catalog.ErrorTag
	c.def, _ = d.cat.Lookup(catalog.ErrorTag)
	c.extend = nil
	d.errs = append(d.errs, be)

	if exp := d.expansions[i]; exp != nil {
		d.remove(exp.iterations)
		delete(d.expansions, i)
	}

	for _, desc := range d.descendants(i) {
		d.comps[desc].inert = true
		if d.graph != nil && desc < d.graph.Len() {
			d.graph.Remove(desc)
		}
	}
	if d.graph != nil && i < d.graph.Len() {
		d.graph.Replace(i, d.structComponent(i))
	}
}

// descendants lists the nodes below i in the flat document.
func (d *Document) descendants(i int) []int {
	var out []int
	var walk func(children []ir.FlatChild)
	walk = func(children []ir.FlatChild) {
		for _, ch := range children {
			if ch.Node == nil || *ch.Node >= len(d.flat.Nodes) {
				continue
			}
			n := *ch.Node
			out = append(out, n)
			walk(d.flat.Nodes[n].Children)
			for _, a := range d.flat.Nodes[n].Attributes {
				walk(a.Children)
			}
		}
	}
	walk(d.flat.Nodes[i].Children)
	for _, a := range d.flat.Nodes[i].Attributes {
		walk(a.Children)
	}
	return out
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// markTemplates makes the template content of every map among idxs inert.
// Attribute content (the map's sources) stays live.
func (d *Document) markTemplates(idxs []int) {
	for _, i := range idxs {
		def, ok := d.cat.Lookup(d.flat.Nodes[i].Tag)
		if !ok || def.SourcesProp == "" || d.comps[i].inert {
			continue
		}
		for _, ch := range d.flat.Nodes[i].Children {
			if ch.Node == nil {
				continue
			}
			d.comps[*ch.Node].inert = true
			for _, desc := range d.descendants(*ch.Node) {
				d.comps[desc].inert = true
			}
		}
	}
}

// structComponent is the structure graph input for component i.
func (d *Document) structComponent(i int) structure.Component {
	c := d.comps[i]
	n := d.flat.Nodes[i]
	if c.failed != nil {
		return structure.Component{
			Tag:    catalog.ErrorTag,
			Parent: n.Parent,
			Attributes: []ir.FlatAttribute{
				{Name: "message", Children: []ir.FlatChild{ir.TextChild(c.failed.Error())}},
				{Name: "code", Children: []ir.FlatChild{ir.TextChild(c.failed.Code)}},
			},
			Props: propNames(c.def),
		}
	}
	sc := structure.Component{
		Tag:        c.tag,
		Parent:     n.Parent,
		Children:   n.Children,
		Attributes: n.Attributes,
		Extend:     c.extend,
		Props:      propNames(c.def),
		Inert:      c.inert || c.deleted,
	}
	if c.def != nil && c.def.SourcesProp != "" {
		// Iterations replace the template once the map expands.
		sc.Children = nil
		sc.Composite = true
	}
	return sc
}

func propNames(def *catalog.Definition) []string {
	if def == nil {
		return nil
	}
	out := make([]string, len(def.Props))
	for i, p := range def.Props {
		out[i] = p.Name
	}
	return out
}
