package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/store"
)

// ActOptions holds flags for the act command.
type ActOptions struct {
	*RootOptions
	Args     []string
	Database string
	Label    string
	NoSave   bool
}

// ActResult reports an applied or declined action.
type ActResult struct {
	Alias    string    `json:"alias"`
	Action   string    `json:"action"`
	Applied  bool      `json:"applied"`
	Updates  ir.Object `json:"updates,omitempty"`
	Snapshot int64     `json:"snapshot,omitempty"`
}

// NewActCommand creates the act command.
func NewActCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "act <document> <alias> <action>",
		Short: "Dispatch an action and save the resulting state",
		Long: `Dispatch a component action against the stored state of a document.

The document is stored in the database (content-addressed), its latest
snapshot is resumed, the action runs, and the new essential state is saved
as the next snapshot. Prints the renderer props that changed.

A declined action (its result cannot be written back to essential state)
changes nothing and exits 1.

Examples:
  doccore act doc.yaml n updateValue --arg value=5
  doccore act doc.yaml name updateValue --arg text=Ada --label "set name"
  doccore act doc.yaml flag toggle --db /tmp/doc.db`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAct(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "action argument key=value (value parsed as JSON when possible)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label for the saved snapshot")
	cmd.Flags().BoolVar(&opts.NoSave, "no-save", false, "do not save the resulting state")

	return cmd
}

func runAct(opts *ActOptions, path, alias, action string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg := opts.config()
	ctx := cmd.Context()

	args := ir.Object{}
	for _, a := range opts.Args {
		k, v, err := parseArg(a)
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeBadArgument, "malformed --arg", err)
		}
		args[k] = v
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Database
	}
	st, err := openStore(f, dbPath)
	if err != nil {
		return err
	}
	defer closeStore(st)

	loaded, err := openDocument(ctx, f, cfg, path, "", st)
	if err != nil {
		return err
	}
	doc := loaded.Doc
	if _, err := doc.Render(); err != nil {
		f.VerboseLog("Render incomplete: %v", err)
	}

	applied, err := doc.Dispatch(alias, action, args)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeAction, fmt.Sprintf("%s on %s failed", action, alias), err)
	}
	result := ActResult{Alias: alias, Action: action, Applied: applied}

	if applied {
		if result.Updates, err = doc.RenderUpdates(); err != nil {
			f.VerboseLog("Render updates incomplete: %v", err)
		}
		if !opts.NoSave {
			snap, err := saveState(ctx, st, loaded, opts.Label, fmt.Sprintf("%s %s", alias, action))
			if err != nil {
				return fail(f, ExitCommandError, ErrCodeStore, "failed to save state", err)
			}
			result.Snapshot = snap.Seq
		}
	}

	if opts.Format == "json" {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		writeActText(cmd, result)
	}

	if !applied {
		return NewExitError(ExitFailure, fmt.Sprintf("%s on %s declined", action, alias))
	}
	return nil
}

func saveState(ctx context.Context, st *store.Store, loaded *loadedDocument, label, fallback string) (store.Snapshot, error) {
	if label == "" {
		label = fallback
	}
	snap, err := st.SaveState(ctx, loaded.Record.ID, label, loaded.Doc.EssentialState())
	if err != nil {
		return store.Snapshot{}, err
	}
	slog.Debug("state saved", "document", loaded.Record.Name, "seq", snap.Seq)
	return snap, nil
}

func writeActText(cmd *cobra.Command, result ActResult) {
	w := cmd.OutOrStdout()
	if !result.Applied {
		fmt.Fprintf(w, "✗ %s on %s declined\n", result.Action, result.Alias)
		return
	}
	fmt.Fprintf(w, "✓ %s on %s applied", result.Action, result.Alias)
	if result.Snapshot > 0 {
		fmt.Fprintf(w, " (snapshot %d)", result.Snapshot)
	}
	fmt.Fprintln(w)
	for _, alias := range sortedKeys(result.Updates) {
		fmt.Fprintf(w, "  %s %s\n", alias, showValue(result.Updates[alias]))
	}
}
