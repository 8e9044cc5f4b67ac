package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/doccore/internal/document"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool             `json:"valid"`
	Components int              `json:"components"`
	Errors     []BuildErrorInfo `json:"errors,omitempty"`
}

// BuildErrorInfo describes one component replaced by an error placeholder.
type BuildErrorInfo struct {
	Code      string `json:"code"`
	Component string `json:"component"`
	Tag       string `json:"tag,omitempty"`
	Name      string `json:"name,omitempty"`
	Message   string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Compile and build a document, reporting build errors",
		Long: `Compile a document and build it against the standard catalog.

Components that cannot be built (unresolved or ambiguous references,
incompatible copies, dependency cycles, unknown tags) are reported with
their error codes. Exits 1 when any component failed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg := opts.config()

	flat, err := compileDocument(f, path)
	if err != nil {
		return err
	}
	doc, err := buildDocument(f, cfg, flat, nil)
	if err != nil {
		return err
	}

	result := ValidationResult{
		Valid:      len(doc.Errors()) == 0,
		Components: len(doc.Components()),
		Errors:     buildErrorInfos(doc),
	}

	if opts.Format == "json" {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, e := range result.Errors {
			fmt.Fprintf(w, "✗ %s [%s] %s\n", e.Component, e.Code, e.Message)
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ Document valid (%d components)\n", result.Components)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d component(s) failed to build", len(result.Errors)))
	}
	return nil
}

func buildErrorInfos(doc *document.Document) []BuildErrorInfo {
	var out []BuildErrorInfo
	for _, be := range doc.Errors() {
		out = append(out, BuildErrorInfo{
			Code:      be.Code,
			Component: doc.Alias(be.Component),
			Tag:       be.Tag,
			Name:      be.Name,
			Message:   be.Message,
		})
	}
	return out
}
