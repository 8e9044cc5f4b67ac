package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/doccore/internal/ir"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	State  string
	Resume bool
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <document>",
		Short: "Print the renderer tree of a document",
		Long: `Build a document and print the tree a renderer would receive: each
component's alias, renderer type, renderer props and children.

Examples:
  doccore render doc.yaml
  doccore render doc.yaml --state state.json
  doccore render doc.yaml --resume --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.State, "state", "", "essential state file (JSON) to resume")
	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "resume the latest snapshot from the database")

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg := opts.config()

	var loaded *loadedDocument
	var err error
	if opts.Resume {
		st, openErr := openStore(f, cfg.Database)
		if openErr != nil {
			return openErr
		}
		defer closeStore(st)
		loaded, err = openDocument(cmd.Context(), f, cfg, path, opts.State, st)
	} else {
		loaded, err = openDocument(cmd.Context(), f, cfg, path, opts.State, nil)
	}
	if err != nil {
		return err
	}

	tree, renderErr := loaded.Doc.Render()
	if renderErr != nil {
		f.VerboseLog("Render incomplete: %v", renderErr)
	}

	if opts.Format == "json" {
		return f.Success(tree)
	}
	writeTree(cmd.OutOrStdout(), tree, 0)
	return nil
}

// writeTree prints a rendered node as an indented outline:
//
//	type alias {props}
func writeTree(w io.Writer, node ir.Object, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s %s %s\n", indent, ir.Text(node["type"]), ir.Text(node["alias"]), showValue(node["props"]))
	children, _ := node["children"].(ir.Array)
	for _, ch := range children {
		switch c := ch.(type) {
		case ir.Object:
			writeTree(w, c, depth+1)
		case ir.String:
			fmt.Fprintf(w, "%s  %q\n", indent, string(c))
		}
	}
}
