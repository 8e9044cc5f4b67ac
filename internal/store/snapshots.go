package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/doccore/internal/ir"
)

// Snapshot is one saved set of essential-state records.
type Snapshot struct {
	ID         string
	DocumentID string
	Seq        int64
	Label      string
	Hash       string
	State      ir.Object
}

// SaveState appends a snapshot of records for the document. When the
// latest snapshot already holds the same records it is returned instead
// and nothing is written.
func (s *Store) SaveState(ctx context.Context, documentID, label string, records ir.Object) (Snapshot, error) {
	if records == nil {
		records = ir.Object{}
	}
	hash, err := ir.StateHash(records)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save state: %w", err)
	}
	data, err := ir.MarshalCanonical(records)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save state: begin: %w", err)
	}
	defer tx.Rollback()

	var latest Snapshot
	err = tx.QueryRowContext(ctx, `
		SELECT id, seq, label, state_hash FROM snapshots
		WHERE document_id = ?
		ORDER BY seq DESC LIMIT 1
	`, documentID).Scan(&latest.ID, &latest.Seq, &latest.Label, &latest.Hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Snapshot{}, fmt.Errorf("save state: %w", err)
	case latest.Hash == hash:
		slog.Debug("state unchanged, snapshot reused", "document", documentID, "seq", latest.Seq)
		latest.DocumentID = documentID
		latest.State = records
		return latest, nil
	}

	snap := Snapshot{
		ID:         s.ids.Generate(),
		DocumentID: documentID,
		Seq:        latest.Seq + 1,
		Label:      label,
		Hash:       hash,
		State:      records,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, document_id, seq, label, state, state_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.DocumentID, snap.Seq, snap.Label, string(data), snap.Hash)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("save state: commit: %w", err)
	}
	return snap, nil
}

// LoadState returns the latest snapshot of the document.
func (s *Store) LoadState(ctx context.Context, documentID string) (Snapshot, error) {
	snap, err := s.scanSnapshot(s.db.QueryRowContext(ctx, `
		SELECT id, document_id, seq, label, state_hash, state FROM snapshots
		WHERE document_id = ?
		ORDER BY seq DESC LIMIT 1
	`, documentID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("load state of %s: %w", documentID, err)
	}
	return snap, nil
}

// LoadSnapshot returns the snapshot with the given seq.
func (s *Store) LoadSnapshot(ctx context.Context, documentID string, seq int64) (Snapshot, error) {
	snap, err := s.scanSnapshot(s.db.QueryRowContext(ctx, `
		SELECT id, document_id, seq, label, state_hash, state FROM snapshots
		WHERE document_id = ? AND seq = ?
	`, documentID, seq))
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %d of %s: %w", seq, documentID, err)
	}
	return snap, nil
}

// ListSnapshots returns the document's snapshots in seq order, without
// their records.
func (s *Store) ListSnapshots(ctx context.Context, documentID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, label, state_hash FROM snapshots
		WHERE document_id = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap := Snapshot{DocumentID: documentID}
		if err := rows.Scan(&snap.ID, &snap.Seq, &snap.Label, &snap.Hash); err != nil {
			return nil, fmt.Errorf("list snapshots: scan: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

// scanSnapshot decodes a full snapshot row and checks its hash.
func (s *Store) scanSnapshot(row *sql.Row) (Snapshot, error) {
	var (
		snap Snapshot
		data string
	)
	err := row.Scan(&snap.ID, &snap.DocumentID, &snap.Seq, &snap.Label, &snap.Hash, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(data), &snap.State); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
	}
	hash, err := ir.StateHash(snap.State)
	if err != nil {
		return Snapshot{}, err
	}
	if hash != snap.Hash {
		return Snapshot{}, &IntegrityError{SnapshotID: snap.ID, Stored: snap.Hash, Computed: hash}
	}
	return snap, nil
}

// IntegrityError reports a snapshot whose records no longer match the
// hash recorded when it was saved.
type IntegrityError struct {
	SnapshotID string
	Stored     string
	Computed   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("snapshot %s: state hash mismatch (stored %s, computed %s)", e.SnapshotID, e.Stored, e.Computed)
}
