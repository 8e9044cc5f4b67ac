package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/store"
)

// StateOptions holds flags shared by the state subcommands.
type StateOptions struct {
	*RootOptions
	Database string
}

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	Seq   int64     `json:"seq"`
	Label string    `json:"label,omitempty"`
	Hash  string    `json:"hash"`
	State ir.Object `json:"state,omitempty"`
}

// NewStateCommand creates the state command and its subcommands.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Save, load and list essential state snapshots",
		Long: `Manage the essential state snapshots stored for a document.

Snapshots are numbered per document. A document is identified by the hash
of its compiled form, so editing the source starts a new history.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	cmd.AddCommand(newStateSaveCommand(opts))
	cmd.AddCommand(newStateLoadCommand(opts))
	cmd.AddCommand(newStateListCommand(opts))
	return cmd
}

func (o *StateOptions) database() string {
	if o.Database != "" {
		return o.Database
	}
	return o.config().Database
}

func newStateSaveCommand(opts *StateOptions) *cobra.Command {
	var from, label string
	cmd := &cobra.Command{
		Use:   "save <document>",
		Short: "Save essential state as the next snapshot",
		Long: `Save essential state for a document. The state is read from --from
(a JSON object keyed "alias/origin"); it is checked by building the
document with it, and only records the document accepts are saved.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if from == "" {
				return fail(f, ExitCommandError, ErrCodeBadArgument, "--from is required", nil)
			}
			st, err := openStore(f, opts.database())
			if err != nil {
				return err
			}
			defer closeStore(st)

			loaded, err := openDocument(cmd.Context(), f, opts.config(), args[0], from, st)
			if err != nil {
				return err
			}
			snap, err := saveState(cmd.Context(), st, loaded, label, "save "+from)
			if err != nil {
				return fail(f, ExitCommandError, ErrCodeStore, "failed to save state", err)
			}
			info := SnapshotInfo{Seq: snap.Seq, Label: snap.Label, Hash: snap.Hash}
			if opts.Format == "json" {
				return f.Success(info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved snapshot %d of %s\n", snap.Seq, loaded.Record.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "essential state file (JSON)")
	cmd.Flags().StringVar(&label, "label", "", "snapshot label")
	return cmd
}

func newStateLoadCommand(opts *StateOptions) *cobra.Command {
	var seq int64
	var out string
	cmd := &cobra.Command{
		Use:   "load <document>",
		Short: "Print a snapshot's essential state",
		Long: `Print the essential state of the latest snapshot, or of --seq. With
--output the state is written to a file that render --state and
state save --from accept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			st, rec, err := storedDocument(cmd, opts, args[0])
			if err != nil {
				return err
			}
			defer closeStore(st)

			var snap store.Snapshot
			if seq > 0 {
				snap, err = st.LoadSnapshot(cmd.Context(), rec.ID, seq)
			} else {
				snap, err = st.LoadState(cmd.Context(), rec.ID)
			}
			if errors.Is(err, store.ErrNotFound) {
				return fail(f, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no snapshot for %s", rec.Name), nil)
			}
			if err != nil {
				return fail(f, ExitCommandError, ErrCodeStore, "failed to load state", err)
			}

			if out != "" {
				data, err := ir.MarshalCanonical(snap.State)
				if err != nil {
					return fail(f, ExitCommandError, ErrCodeGeneric, "state has no canonical form", err)
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fail(f, ExitCommandError, ErrCodeGeneric, "failed to write state file", err)
				}
			}
			info := SnapshotInfo{Seq: snap.Seq, Label: snap.Label, Hash: snap.Hash, State: snap.State}
			if opts.Format == "json" {
				return f.Success(info)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "snapshot %d %q\n", snap.Seq, snap.Label)
			for _, key := range sortedKeys(snap.State) {
				fmt.Fprintf(w, "  %s = %s\n", key, showValue(snap.State[key]))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&seq, "seq", 0, "snapshot number (default latest)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "also write the state to this file")
	return cmd
}

func newStateListCommand(opts *StateOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <document>",
		Short:         "List a document's snapshots",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			st, rec, err := storedDocument(cmd, opts, args[0])
			if err != nil {
				return err
			}
			defer closeStore(st)

			snaps, err := st.ListSnapshots(cmd.Context(), rec.ID)
			if err != nil {
				return fail(f, ExitCommandError, ErrCodeStore, "failed to list snapshots", err)
			}
			infos := make([]SnapshotInfo, len(snaps))
			for i, s := range snaps {
				infos[i] = SnapshotInfo{Seq: s.Seq, Label: s.Label, Hash: s.Hash}
			}
			if opts.Format == "json" {
				return f.Success(infos)
			}
			w := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintf(w, "No snapshots for %s.\n", rec.Name)
			}
			for _, s := range infos {
				fmt.Fprintf(w, "%4d  %s  %s\n", s.Seq, s.Hash[:12], s.Label)
			}
			return nil
		},
	}
}

// storedDocument opens the database and finds the stored record of the
// document at path, which must have been stored by act or state save.
func storedDocument(cmd *cobra.Command, opts *StateOptions, path string) (*store.Store, store.Document, error) {
	f := opts.formatter(cmd)
	flat, err := compileDocument(f, path)
	if err != nil {
		return nil, store.Document{}, err
	}
	st, err := openStore(f, opts.database())
	if err != nil {
		return nil, store.Document{}, err
	}
	rec, err := st.FindDocument(cmd.Context(), flat)
	if err != nil {
		closeStore(st)
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.Document{}, fail(f, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("%s is not stored in %s", path, opts.database()), nil)
		}
		return nil, store.Document{}, fail(f, ExitCommandError, ErrCodeStore, "failed to find document", err)
	}
	return st, rec, nil
}
