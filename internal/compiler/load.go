package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	"github.com/roach88/doccore/internal/ir"
)

// Format is an authoring syntax.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch filepath.Ext(path) {
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported document format %q", filepath.Ext(path))
	}
}

// Loader compiles documents from files and resolves their imports.
// Imported paths are relative to the importing file.
type Loader struct {
	ctx   *cue.Context
	stack []string
}

// NewLoader creates a loader with a fresh CUE context.
func NewLoader() *Loader {
	return &Loader{ctx: cuecontext.New()}
}

// LoadFile compiles the document at path. A directory is loaded as one
// CUE package, the way the CUE tool loads instances.
func LoadFile(path string) (*ir.FlatDocument, error) {
	return NewLoader().LoadFile(path)
}

// LoadFile compiles the document at path.
func (l *Loader) LoadFile(path string) (*ir.FlatDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if slices.Contains(l.stack, abs) {
		return nil, &CompileError{Field: "import", Message: fmt.Sprintf("import cycle through %s", path)}
	}
	l.stack = append(l.stack, abs)
	defer func() { l.stack = l.stack[:len(l.stack)-1] }()

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if info.IsDir() {
		return l.loadPackage(abs)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	format, err := FormatOf(abs)
	if err != nil {
		return nil, err
	}
	flat, err := l.Compile(data, format, abs)
	if err != nil {
		return nil, err
	}
	slog.Debug("document loaded", "path", path, "nodes", len(flat.Nodes))
	return flat, nil
}

// Compile compiles document source. filename labels positions and anchors
// relative imports; it may be empty when the source has none.
func (l *Loader) Compile(data []byte, format Format, filename string) (*ir.FlatDocument, error) {
	switch format {
	case FormatCUE:
		v := l.ctx.CompileBytes(data, cue.Filename(filename))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		return compileTop(cueSource{v: v}, l.importer(filename))
	case FormatYAML, FormatJSON:
		var n yaml.Node
		if err := yaml.Unmarshal(data, &n); err != nil {
			return nil, &CompileError{File: filename, Message: err.Error()}
		}
		return compileTop(yamlSource{n: &n, file: filename}, l.importer(filename))
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

// CompileValue compiles an already-built CUE value holding a document.
func (l *Loader) CompileValue(v cue.Value) (*ir.FlatDocument, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileTop(cueSource{v: v}, l.importer(v.Pos().Filename()))
}

// Fragment compiles a YAML list of children for Document.AddNodes.
// file anchors relative imports.
func (l *Loader) Fragment(n *yaml.Node, file string) (*ir.FlatDocument, error) {
	return compileFragment(yamlSource{n: n, p: "content", file: file}, l.importer(file))
}

// Document compiles a YAML node holding {document: ...} or {nodes: [...]}.
func (l *Loader) Document(n *yaml.Node, file string) (*ir.FlatDocument, error) {
	return compileTop(yamlSource{n: n, file: file}, l.importer(file))
}

func (l *Loader) loadPackage(dir string) (*ir.FlatDocument, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	v := l.ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileTop(cueSource{v: v}, l.importer(filepath.Join(dir, "package.cue")))
}

func (l *Loader) importer(from string) importer {
	return func(ref string, at source) (*ir.FlatDocument, error) {
		if from == "" && !filepath.IsAbs(ref) {
			return nil, at.errorf("relative import %q needs a file location", ref)
		}
		path := ref
		if !filepath.IsAbs(ref) {
			path = filepath.Join(filepath.Dir(from), ref)
		}
		flat, err := l.LoadFile(path)
		if err != nil {
			var ce *CompileError
			if errors.As(err, &ce) && ce.Field == "import" {
				return nil, at.errorf("%s", ce.Message)
			}
			return nil, fmt.Errorf("%s: import %q: %w", at.path(), ref, err)
		}
		return flat, nil
	}
}
