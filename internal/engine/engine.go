package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/cell"
	"github.com/roach88/doccore/internal/deps"
	"github.com/roach88/doccore/internal/ir"
)

// Engine is the lazy evaluator for one document.
//
// Every prop slot owns one cell. Resolve pulls: it resolves the slot's
// dependencies, hands their values to the prop's updater and caches the
// result. MarkStale pushes: it walks the inverse index of cells read during
// resolution and marks every dependent slot stale. RequestUpdate inverts a
// requested value back to essential data.
//
// INVARIANTS:
//   - Single writer: all methods run on the caller's goroutine, synchronously
//   - A slot's cell is Fresh only if every cell it read is Fresh
//   - dependents holds exactly the cells each slot read on its last calculation
type Engine struct {
	host     deps.Host
	compiler *deps.Compiler
	clock    *Clock
	detector *CycleDetector
	quota    *QuotaEnforcer

	slots      map[deps.SlotKey]*slot
	dependents map[*cell.Cell]map[deps.SlotKey]struct{}
}

type slot struct {
	key   deps.SlotKey
	cell  *cell.Cell
	views map[*cell.Cell]*cell.View
	reads []*cell.Cell
	calcs int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the maximum resolution depth.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.quota = NewQuotaEnforcer(n)
	}
}

// New creates an engine resolving props through compiler.
func New(host deps.Host, compiler *deps.Compiler, opts ...Option) *Engine {
	e := &Engine{
		host:       host,
		compiler:   compiler,
		clock:      NewClock(),
		detector:   NewCycleDetector(),
		quota:      NewQuotaEnforcer(DefaultMaxDepth),
		slots:      make(map[deps.SlotKey]*slot),
		dependents: make(map[*cell.Cell]map[deps.SlotKey]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compiler returns the dependency compiler.
func (e *Engine) Compiler() *deps.Compiler {
	return e.compiler
}

// Generation returns the number of applied update batches and flushes.
func (e *Engine) Generation() int64 {
	return e.clock.Current()
}

func (e *Engine) slot(key deps.SlotKey) *slot {
	s, ok := e.slots[key]
	if !ok {
		s = &slot{key: key, cell: cell.New(), views: make(map[*cell.Cell]*cell.View)}
		e.slots[key] = s
	}
	return s
}

// Cell returns the cell backing key, if the slot has been touched.
func (e *Engine) Cell(key deps.SlotKey) (*cell.Cell, bool) {
	s, ok := e.slots[key]
	if !ok {
		return nil, false
	}
	return s.cell, true
}

// Freshness returns the freshness of key. Untouched slots are Unresolved.
func (e *Engine) Freshness(key deps.SlotKey) cell.Freshness {
	if s, ok := e.slots[key]; ok {
		return s.cell.Freshness()
	}
	return cell.Unresolved
}

// Calculations returns how many times key's value was calculated.
func (e *Engine) Calculations(key deps.SlotKey) int {
	if s, ok := e.slots[key]; ok {
		return s.calcs
	}
	return 0
}

// propDef returns the definition of key's prop, or nil when the slot does
// not exist for its component.
func (e *Engine) propDef(key deps.SlotKey) *catalog.PropDef {
	def := e.host.Definition(key.Component)
	if def == nil {
		return nil
	}
	pd, ok := def.Prop(key.Prop)
	if !ok {
		return nil
	}
	if key.Part != deps.PartWhole && !pd.IsArray {
		return nil
	}
	return pd
}

// Resolve returns the current value of key. ok is false when the slot does
// not exist: an unknown prop, or an array element past the current size.
func (e *Engine) Resolve(key deps.SlotKey) (v ir.Value, ok bool, err error) {
	pd := e.propDef(key)
	if pd == nil {
		return nil, false, nil
	}

	if key.Part == deps.PartElement {
		size, ok, err := e.Resolve(deps.Size(key.Component, key.Prop))
		if err != nil || !ok {
			return nil, false, err
		}
		if n, _ := size.(ir.Int); key.Element < 0 || key.Element >= int(n) {
			return nil, false, nil
		}
	}

	s := e.slot(key)
	if s.cell.Freshness() == cell.Fresh {
		return s.cell.Get(), true, nil
	}

	if e.detector.WouldCycle(key) {
		return nil, false, NewCycleError(key)
	}
	if err := e.quota.Check(key, e.detector.Depth()+1); err != nil {
		return nil, false, err
	}
	e.detector.Enter(key)
	defer e.detector.Leave(key)

	if err := e.calculate(s, pd); err != nil {
		return nil, false, err
	}
	return s.cell.Get(), true, nil
}

// calculate brings s to Fresh. Dependencies are resolved first; a stale
// slot whose dependencies report no change is restored without calling
// its updater.
func (e *Engine) calculate(s *slot, pd *catalog.PropDef) error {
	key := s.key
	instrs, err := e.compiler.Compile(key)
	if err != nil {
		return &ResolveError{Component: key.Component, Prop: key.Prop, Cause: err}
	}
	if s.cell.Freshness() == cell.Unresolved {
		s.cell.SetResolved()
	}

	g, err := e.gather(key, instrs)
	if err != nil {
		return err
	}

	wasStale := s.cell.Freshness() == cell.Stale
	if wasStale && !g.changed(s) && sameCells(s.reads, g.cells) {
		s.cell.RestorePrevious()
		slog.Debug("restored stale slot", "slot", key)
		return nil
	}

	res, err := e.compute(key, pd, instrs, g)
	if err != nil {
		return err
	}
	s.calcs++

	switch {
	case res.NoChange && wasStale:
		s.cell.RestorePrevious()
	case res.NoChange:
		s.cell.SetWithDefault(pd.Default, true)
	case wasStale && ir.Equal(res.Value, s.cell.Cached()) && res.FromDefault == s.cell.FromDefault():
		s.cell.RestorePrevious()
	default:
		s.cell.SetWithDefault(res.Value, res.FromDefault)
	}

	e.track(s, g)
	return nil
}

// compute runs the calculation for one slot.
func (e *Engine) compute(key deps.SlotKey, pd *catalog.PropDef, instrs []deps.Instruction, g *gathered) (catalog.Result, error) {
	switch key.Part {
	case deps.PartSize:
		v, ok := g.single(0)
		if !ok {
			return catalog.Result{Value: ir.Int(0)}, nil
		}
		arr, _ := v.Value.(ir.Array)
		return catalog.Result{Value: ir.Int(len(arr))}, nil

	case deps.PartElement:
		v, ok := g.single(1)
		arr, isArr := v.Value.(ir.Array)
		if !ok || !isArr || key.Element >= len(arr) {
			return catalog.Result{}, &ResolveError{Component: key.Component, Prop: key.Prop, Cause: fmt.Errorf("element %d out of range", key.Element)}
		}
		return catalog.Result{Value: arr[key.Element], FromDefault: v.FromDefault}, nil
	}

	if _, ok := deps.IsShadow(instrs); ok {
		v, ok := g.single(0)
		if !ok {
			return catalog.Result{Value: pd.Default, FromDefault: true}, nil
		}
		return catalog.Result{Value: convert(pd, v.Value), FromDefault: v.FromDefault}, nil
	}

	res, err := pd.Updater.Calculate(g.data)
	if err != nil {
		return catalog.Result{}, &ResolveError{Component: key.Component, Prop: key.Prop, Cause: err}
	}
	if !res.NoChange {
		if res.Value == nil {
			res.Value = ir.Null{}
		}
		res.Value = convert(pd, res.Value)
	}
	return res, nil
}

// convert coerces a calculated value to the prop's declared type.
func convert(pd *catalog.PropDef, v ir.Value) ir.Value {
	if !pd.IsArray {
		return catalog.Convert(pd.Type, v)
	}
	arr, ok := v.(ir.Array)
	if !ok {
		return ir.Array{catalog.Convert(pd.Type, v)}
	}
	out := make(ir.Array, len(arr))
	for i, x := range arr {
		out[i] = catalog.Convert(pd.Type, x)
	}
	return out
}

// track records the cells s read, marks them seen and updates the inverse index.
func (e *Engine) track(s *slot, g *gathered) {
	for _, old := range s.reads {
		if set := e.dependents[old]; set != nil {
			delete(set, s.key)
		}
	}
	views := make(map[*cell.Cell]*cell.View, len(g.cells))
	for _, c := range g.cells {
		v, ok := s.views[c]
		if !ok {
			v = c.View()
		}
		v.MarkSeen()
		views[c] = v

		set := e.dependents[c]
		if set == nil {
			set = make(map[deps.SlotKey]struct{})
			e.dependents[c] = set
		}
		set[s.key] = struct{}{}
	}
	s.views = views
	s.reads = g.cells
}

func sameCells(a, b []*cell.Cell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Flush drops compiled dependencies and marks every fresh slot stale. Call
// after structural edits. It starts a new generation.
func (e *Engine) Flush() {
	e.compiler.Flush()
	e.MarkAllStale()
	e.clock.Advance()
}

// MarkAllStale marks every fresh slot stale.
func (e *Engine) MarkAllStale() {
	for _, s := range e.slots {
		if s.cell.Freshness() == cell.Fresh {
			s.cell.MarkStale()
		}
	}
}

// ResolveFloat resolves a numeric slot.
func (e *Engine) ResolveFloat(key deps.SlotKey) (float64, error) {
	v, ok, err := e.Resolve(key)
	if err != nil {
		return math.NaN(), err
	}
	if !ok {
		return math.NaN(), errors.New("no value")
	}
	f, isNum := ir.AsFloat(v)
	if !isNum {
		return math.NaN(), fmt.Errorf("%s is %s, not a number", key, ir.KindOf(v))
	}
	return f, nil
}
