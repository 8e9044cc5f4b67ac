package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/doccore/internal/ir"
)

// ResolveResult is one resolved reference.
type ResolveResult struct {
	Ref   string   `json:"ref"`
	Alias string   `json:"alias,omitempty"`
	Prop  string   `json:"prop,omitempty"`
	Value ir.Value `json:"value,omitempty"`
	Error string   `json:"error,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var stateFile string

	cmd := &cobra.Command{
		Use:   "resolve <document> <ref>...",
		Short: "Resolve references against a document",
		Long: `Resolve references from the document root, the way a copy written at
the top level would. A reference naming a prop ($n.value) also prints the
prop's value.

Examples:
  doccore resolve doc.yaml '$n' '$m[2].v' '$total.value'`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], args[1:], stateFile, cmd)
		},
	}

	cmd.Flags().StringVar(&stateFile, "state", "", "essential state file (JSON) to resume")

	return cmd
}

func runResolve(opts *RootOptions, path string, refs []string, stateFile string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	loaded, err := openDocument(cmd.Context(), f, opts.config(), path, stateFile, nil)
	if err != nil {
		return err
	}
	doc := loaded.Doc

	results := make([]ResolveResult, 0, len(refs))
	failed := 0
	for _, ref := range refs {
		r := ResolveResult{Ref: ref}
		r.Alias, r.Prop, err = doc.Reference(ref)
		if err == nil && r.Prop != "" {
			var ok bool
			r.Value, ok, err = doc.Value(r.Alias, r.Prop)
			if err == nil && !ok {
				err = fmt.Errorf("%s has no prop %q", r.Alias, r.Prop)
			}
		}
		if err != nil {
			r.Error = err.Error()
			failed++
		}
		results = append(results, r)
	}

	if opts.Format == "json" {
		if err := f.Success(results); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range results {
			switch {
			case r.Error != "":
				fmt.Fprintf(w, "✗ %s: %s\n", r.Ref, r.Error)
			case r.Prop != "":
				fmt.Fprintf(w, "%s -> %s.%s = %s\n", r.Ref, r.Alias, r.Prop, showValue(r.Value))
			default:
				fmt.Fprintf(w, "%s -> %s\n", r.Ref, r.Alias)
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d reference(s) did not resolve", failed))
	}
	return nil
}
