package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/doccore/internal/catalog/std"
	"github.com/roach88/doccore/internal/compiler"
	"github.com/roach88/doccore/internal/document"
	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/store"
)

// loadedDocument is a compiled and built document, plus the stored record
// when a database is in use.
type loadedDocument struct {
	Path   string
	Flat   *ir.FlatDocument
	Doc    *document.Document
	Record *store.Document
	// Seq is the snapshot the state was resumed from, 0 when none.
	Seq int64
}

// compileDocument compiles the document at path. It returns an ExitError
// carrying the CLI error code on failure.
func compileDocument(f *OutputFormatter, path string) (*ir.FlatDocument, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fail(f, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("document not found: %s", path), nil)
	}
	f.VerboseLog("Compiling %s", path)
	flat, err := compiler.LoadFile(path)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeCompile, "document did not compile", err)
	}
	return flat, nil
}

// buildDocument builds flat with the standard catalog, resuming state.
func buildDocument(f *OutputFormatter, cfg Config, flat *ir.FlatDocument, state ir.Object) (*document.Document, error) {
	var opts []document.Option
	if cfg.MaxDepth > 0 {
		opts = append(opts, document.WithMaxDepth(cfg.MaxDepth))
	}
	if len(state) > 0 {
		opts = append(opts, document.WithEssentialState(state))
	}
	doc, err := document.Build(flat, std.New(), opts...)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeBuildFailed, "document could not be built", err)
	}
	for _, be := range doc.Errors() {
		slog.Warn("build error", "code", be.Code, "component", doc.Alias(be.Component), "message", be.Message)
	}
	return doc, nil
}

// openDocument compiles and builds the document at path. State comes from
// stateFile when given, else from the latest snapshot in st when st is
// not nil.
func openDocument(ctx context.Context, f *OutputFormatter, cfg Config, path, stateFile string, st *store.Store) (*loadedDocument, error) {
	flat, err := compileDocument(f, path)
	if err != nil {
		return nil, err
	}
	out := &loadedDocument{Path: path, Flat: flat}

	var state ir.Object
	if stateFile != "" {
		if state, err = readStateFile(stateFile); err != nil {
			return nil, fail(f, ExitCommandError, ErrCodeBadArgument, "unreadable state file", err)
		}
	}
	if st != nil {
		rec, err := st.SaveDocument(ctx, documentName(path), flat)
		if err != nil {
			return nil, fail(f, ExitCommandError, ErrCodeStore, "failed to store document", err)
		}
		out.Record = &rec
		if stateFile == "" {
			snap, err := st.LoadState(ctx, rec.ID)
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				return nil, fail(f, ExitCommandError, ErrCodeStore, "failed to load state", err)
			default:
				state = snap.State
				out.Seq = snap.Seq
				f.VerboseLog("Resuming snapshot %d of %s", snap.Seq, rec.Name)
			}
		}
	}

	if out.Doc, err = buildDocument(f, cfg, flat, state); err != nil {
		return nil, err
	}
	return out, nil
}

func openStore(f *OutputFormatter, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// documentName names a stored document after its file.
func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// readStateFile reads essential state records written by state load or
// EssentialState: a JSON object keyed "alias/origin".
func readStateFile(path string) (ir.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := ir.UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("%s: expected a JSON object, got %s", path, ir.KindOf(v))
	}
	return obj, nil
}

// parseArg parses a key=value flag. The value is read as JSON when it
// parses, else taken as a string.
func parseArg(s string) (string, ir.Value, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", nil, fmt.Errorf("argument %q: expected key=value", s)
	}
	if v, err := ir.UnmarshalValue([]byte(raw)); err == nil {
		return key, v, nil
	}
	return key, ir.String(raw), nil
}

// showValue formats a value for text output.
func showValue(v ir.Value) string {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func sortedKeys(obj ir.Object) []string {
	return slices.Sorted(maps.Keys(obj))
}
