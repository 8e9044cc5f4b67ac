// Package document assembles the reactive core for one authored document.
//
// Build takes a flat node list and a catalog, compacts the tree, resolves
// every $reference into an extend source, builds the structure graph and
// checks the dependency graph for cycles. Components that fail any of
// these steps are replaced by inert error placeholders so the rest of the
// document still loads. Map components are then expanded: each source item
// gets an iteration holding a generated item and a clone of the template.
//
// Component indices are shared by the flat document, the resolver, the
// structure graph and the engine. Generated content is appended, never
// renumbered, so an index stays valid for the life of the Document.
//
// A Document is not safe for concurrent use.
package document

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/deps"
	"github.com/roach88/doccore/internal/engine"
	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/resolver"
	"github.com/roach88/doccore/internal/structure"
)

// Document owns every table of one document instance.
type Document struct {
	cat  *catalog.Catalog
	opts options

	flat     *ir.FlatDocument
	res      *resolver.Resolver
	graph    *structure.Graph
	comps    []*component
	store    *deps.EssentialStore
	compiler *deps.Compiler
	engine   *engine.Engine

	errs       []*BuildError
	expansions map[int]*expansion

	// seen holds the change counter of every renderer prop last projected.
	// created lists components generated or added since the last Render;
	// projected is the engine generation at the last projection.
	seen      map[deps.SlotKey]uint64
	created   []int
	projected int64
}

type component struct {
	tag    string
	name   string
	parent int
	def    *catalog.Definition
	extend *structure.Extend

	// inert marks map template content and content below a placeholder.
	inert   bool
	deleted bool
	failed  *BuildError
}

type options struct {
	maxDepth int
	state    ir.Object
}

// Option configures Build.
type Option func(*options)

// WithMaxDepth limits the resolution depth of the engine.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}

// WithEssentialState resumes essential data saved by EssentialState.
// Records whose alias no longer exists are ignored.
func WithEssentialState(records ir.Object) Option {
	return func(o *options) {
		o.state = records
	}
}

// Build creates a document. It fails only when the flat document itself is
// malformed; component-level problems are reported by Errors.
func Build(flat *ir.FlatDocument, cat *catalog.Catalog, opts ...Option) (*Document, error) {
	if verrs := flat.Validate(); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("invalid document: %w", errors.Join(errs...))
	}
	if _, ok := cat.Lookup(catalog.ErrorTag); !ok {
		return nil, fmt.Errorf("catalog has no %q definition", catalog.ErrorTag)
	}

	d := &Document{
		cat:        cat,
		expansions: make(map[int]*expansion),
		seen:       make(map[deps.SlotKey]uint64),
	}
	for _, opt := range opts {
		opt(&d.opts)
	}

	d.res = resolver.Build(flat, d.invisible)
	remap := d.res.Compact()
	d.flat = flat.Remap(remap)
	if pruned := len(flat.Nodes) - len(d.flat.Nodes); pruned > 0 {
		slog.Debug("pruned unreachable nodes", "count", pruned)
	}

	all := make([]int, len(d.flat.Nodes))
	for i, n := range d.flat.Nodes {
		all[i] = i
		d.comps = append(d.comps, &component{tag: n.Tag, name: n.Name, parent: n.Parent})
	}
	d.markTemplates(all)
	d.bind(all)

	structs := make([]structure.Component, len(all))
	for i := range all {
		structs[i] = d.structComponent(i)
	}
	graph, err := structure.Build(structs)
	d.graph = graph
	d.failStuck(err)

	d.store = deps.NewEssentialStore()
	d.compiler = deps.NewCompiler(d.graph, d, d.store)
	var eopts []engine.Option
	if d.opts.maxDepth > 0 {
		eopts = append(eopts, engine.WithMaxDepth(d.opts.maxDepth))
	}
	d.engine = engine.New(d, d.compiler, eopts...)
	d.seed()

	d.checkCycles()
	if err := d.expandAll(all); err != nil {
		return nil, err
	}

	slog.Debug("document built", "components", len(d.comps), "errors", len(d.errs))
	return d, nil
}

// Definition implements deps.Host. Deleted and inert components have none.
func (d *Document) Definition(i int) *catalog.Definition {
	if i < 0 || i >= len(d.comps) {
		return nil
	}
	c := d.comps[i]
	if c.deleted || c.inert {
		return nil
	}
	return c.def
}

func (d *Document) invisible(tag string) bool {
	def, ok := d.cat.Lookup(tag)
	return ok && def.ChildrenInvisible
}

func (d *Document) live(i int) bool {
	return d.Definition(i) != nil
}

// Errors returns the build errors collected so far, including those from
// generated content and structural edits.
func (d *Document) Errors() []*BuildError {
	return append([]*BuildError(nil), d.errs...)
}

// Engine returns the resolution engine.
func (d *Document) Engine() *engine.Engine {
	return d.engine
}

// Generation returns the engine generation: the number of applied update
// batches and structural edits so far.
func (d *Document) Generation() int64 {
	return d.engine.Generation()
}

// Flat returns the current flat document, generated content included.
func (d *Document) Flat() *ir.FlatDocument {
	return d.flat
}

// Alias returns the stable name of component i: its authored name when
// that name resolves to it from the root, else _id_<i>.
func (d *Document) Alias(i int) string {
	if name := d.comps[i].name; name != "" {
		r, err := d.res.Resolve(ir.Path{{Name: name}}, 0, true)
		if err == nil && r.Node == i && len(r.Remainder) == 0 {
			return name
		}
	}
	return "_id_" + strconv.Itoa(i)
}

// Lookup returns the live component with the given alias.
func (d *Document) Lookup(alias string) (int, bool) {
	i, ok := d.find(alias)
	return i, ok && d.live(i)
}

// find resolves an alias to a component index, live or not.
func (d *Document) find(alias string) (int, bool) {
	if n, ok := strings.CutPrefix(alias, "_id_"); ok {
		i, err := strconv.Atoi(n)
		return i, err == nil && i >= 0 && i < len(d.comps)
	}
	r, err := d.res.Resolve(ir.Path{{Name: alias}}, 0, true)
	if err != nil || len(r.Remainder) > 0 {
		return 0, false
	}
	return r.Node, true
}

// Tag returns the tag of component i; error placeholders report
// catalog.ErrorTag.
func (d *Document) Tag(i int) string {
	return d.comps[i].tag
}

// Components returns the aliases of every live component in index order.
func (d *Document) Components() []string {
	var out []string
	for i := range d.comps {
		if d.live(i) {
			out = append(out, d.Alias(i))
		}
	}
	return out
}

// Value resolves a prop of the component with the given alias.
func (d *Document) Value(alias, prop string) (ir.Value, bool, error) {
	i, ok := d.Lookup(alias)
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownAlias, alias)
	}
	return d.engine.Resolve(deps.Whole(i, prop))
}

// Reference resolves an authored reference ($x.y[2].value) from the root.
// It returns the referenced component's alias and the prop the remainder
// names, if any.
func (d *Document) Reference(ref string) (alias, prop string, err error) {
	path, err := ir.ParseRef(ref)
	if err != nil {
		return "", "", err
	}
	r, err := d.res.ResolveIndexed(path, 0, false)
	if err != nil {
		return "", "", err
	}
	switch {
	case len(r.Remainder) == 0:
	case len(r.Remainder) == 1 && len(r.Remainder[0].Index) == 0:
		prop = r.Remainder[0].Name
	default:
		return "", "", fmt.Errorf("reference %s: cannot resolve %q", ref, r.Remainder.String())
	}
	if !d.live(r.Node) {
		return "", "", fmt.Errorf("reference %s: component %d is not live", ref, r.Node)
	}
	return d.Alias(r.Node), prop, nil
}

func (d *Document) seed() {
	for key, v := range d.opts.state {
		alias, origin, ok := strings.Cut(key, "/")
		if !ok {
			slog.Warn("ignoring malformed state record", "key", key)
			continue
		}
		var i int
		if n, isID := strings.CutPrefix(alias, "_id_"); isID {
			idx, err := strconv.Atoi(n)
			if err != nil {
				slog.Warn("ignoring malformed state record", "key", key)
				continue
			}
			i = idx
		} else if i, ok = d.Lookup(alias); !ok {
			slog.Warn("ignoring state for unknown component", "alias", alias)
			continue
		}
		d.store.Seed(deps.EssentialKey{Component: i, Origin: origin}, v)
	}
}

// checkCycles replaces every component on a dependency cycle with a
// placeholder, then checks again until the graph is acyclic.
func (d *Document) checkCycles() {
	for range len(d.comps) + 1 {
		cycles := d.compiler.CheckCycles()
		if len(cycles) == 0 {
			return
		}
		for _, ce := range cycles {
			for _, c := range ce.Components() {
				if d.comps[c].failed == nil {
					d.fail(c, CodeCyclicDependency, "cyclic dependency", ce)
				}
			}
		}
		d.engine.Flush()
	}
}

// failStuck turns components the structure graph could not build into
// extend-cycle placeholders.
func (d *Document) failStuck(err error) {
	var ce *structure.CycleError
	if !errors.As(err, &ce) {
		return
	}
	for _, c := range ce.Components {
		d.fail(c, CodeExtendCycle, "extend cycle", err)
	}
}
