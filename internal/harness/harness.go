package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/catalog/std"
	"github.com/roach88/doccore/internal/compiler"
	"github.com/roach88/doccore/internal/document"
	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/store"
	"github.com/roach88/doccore/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	scenario *Scenario
	loader   *compiler.Loader
	catalog  *catalog.Catalog
	store    *store.Store

	flat  *ir.FlatDocument
	docID string
	doc   *document.Document
}

// Run executes a scenario with the standard catalog.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the document and store it
// 2. Build it, seeding the scenario's essential state
// 3. Execute steps, recording outcomes and render updates
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithCatalog(scenario, std.New())
}

// RunWithCatalog executes a scenario against cat.
func RunWithCatalog(scenario *Scenario, cat *catalog.Catalog) (*Result, error) {
	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDs("row")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: scenario,
		loader:   compiler.NewLoader(),
		catalog:  cat,
		store:    st,
	}
	ctx := context.Background()

	if err := h.load(ctx); err != nil {
		return nil, err
	}
	seed, err := ir.FromGo(scenario.State)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	var opts []document.Option
	if obj, ok := seed.(ir.Object); ok && len(obj) > 0 {
		opts = append(opts, document.WithEssentialState(obj))
	}
	if err := h.build(opts...); err != nil {
		return nil, err
	}

	result := NewResult()
	if result.Initial, err = h.render(); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		event := h.execute(ctx, i, step)
		result.Trace = append(result.Trace, event)
		want := step.Expect
		if want == "" {
			want = OutcomeApplied
		}
		if event.Outcome != want {
			msg := fmt.Sprintf("steps[%d] %s %s: expected %s, got %s", i, event.Kind, event.Target, want, event.Outcome)
			if event.Detail != "" {
				msg += ": " + event.Detail
			}
			result.AddError(msg)
		}
	}

	if result.Final, err = h.render(); err != nil {
		return nil, err
	}
	result.State = h.doc.EssentialState()
	for _, be := range h.doc.Errors() {
		result.BuildErrors = append(result.BuildErrors, be.Error())
	}

	for _, msg := range EvaluateAssertions(h.doc, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// load compiles the scenario's document and stores it.
func (h *Harness) load(ctx context.Context) error {
	s := h.scenario
	var err error
	if s.Document != "" {
		h.flat, err = h.loader.LoadFile(s.path(s.Document))
	} else {
		h.flat, err = h.loader.Document(&s.Source, s.path("scenario.yaml"))
	}
	if err != nil {
		return fmt.Errorf("compile document: %w", err)
	}
	doc, err := h.store.SaveDocument(ctx, s.Name, h.flat)
	if err != nil {
		return err
	}
	h.docID = doc.ID
	return nil
}

func (h *Harness) build(opts ...document.Option) error {
	doc, err := document.Build(h.flat, h.catalog, opts...)
	if err != nil {
		return fmt.Errorf("build document: %w", err)
	}
	h.doc = doc
	return nil
}

// render renders the full tree. Prop failures are already rendered as
// null and reported through build errors, so only the tree is kept.
func (h *Harness) render() (ir.Object, error) {
	tree, err := h.doc.Render()
	if err != nil {
		slog.Debug("render reported errors", "scenario", h.scenario.Name, "error", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}
	return tree, nil
}

func (h *Harness) execute(ctx context.Context, i int, step Step) TraceEvent {
	event := TraceEvent{Step: i + 1, Kind: step.Kind(), Target: step.Target()}
	applied, err := h.apply(ctx, i, step)
	switch {
	case err != nil:
		event.Outcome = OutcomeError
		event.Detail = err.Error()
	case !applied:
		event.Outcome = OutcomeDeclined
	default:
		event.Outcome = OutcomeApplied
	}

	updates, err := h.doc.RenderUpdates()
	if err != nil {
		slog.Debug("render updates reported errors", "step", i+1, "error", err)
	}
	if len(updates) > 0 {
		event.Updates = updates
	}
	event.Generation = h.doc.Generation()
	slog.Debug("scenario step", "step", i+1, "kind", event.Kind, "outcome", event.Outcome, "generation", event.Generation)
	return event
}

func (h *Harness) apply(ctx context.Context, i int, step Step) (bool, error) {
	switch step.Kind() {
	case StepDispatch:
		args, err := toObject(step.Args)
		if err != nil {
			return false, err
		}
		return h.doc.Dispatch(step.Dispatch, step.Action, args)

	case StepUpdate:
		v, err := ir.FromGo(step.Value)
		if err != nil {
			return false, err
		}
		return h.doc.RequestUpdate(step.Update, step.Prop, v)

	case StepAdd:
		frag, err := h.loader.Fragment(&step.Content, h.scenario.path("scenario.yaml"))
		if err != nil {
			return false, err
		}
		_, err = h.doc.AddNodes(step.Add, frag)
		return err == nil, err

	case StepDelete:
		err := h.doc.DeleteNodes(step.Delete...)
		return err == nil, err

	case StepRebuild:
		return true, h.rebuild(ctx, i)

	default:
		return false, errors.New("step has no single kind")
	}
}

// rebuild round-trips essential state through the store and builds the
// authored document again. Structural edits made by earlier steps are
// not part of the authored source and are dropped.
func (h *Harness) rebuild(ctx context.Context, i int) error {
	if _, err := h.store.SaveState(ctx, h.docID, "step "+strconv.Itoa(i+1), h.doc.EssentialState()); err != nil {
		return err
	}
	snap, err := h.store.LoadState(ctx, h.docID)
	if err != nil {
		return err
	}
	if err := h.build(document.WithEssentialState(snap.State)); err != nil {
		return err
	}
	_, err = h.render()
	return err
}

func toObject(args map[string]any) (ir.Object, error) {
	if args == nil {
		return ir.Object{}, nil
	}
	v, err := ir.FromGo(args)
	if err != nil {
		return nil, fmt.Errorf("args: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("args: expected an object, got %s", ir.KindOf(v))
	}
	return obj, nil
}
