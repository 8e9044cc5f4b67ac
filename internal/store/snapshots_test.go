package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/doccore/internal/ir"
)

func saveTestDocument(t *testing.T, s *Store) Document {
	t.Helper()
	doc, err := s.SaveDocument(context.Background(), "calc", sampleFlat("1"))
	require.NoError(t, err)
	return doc
}

func TestSaveState_LoadLatest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := saveTestDocument(t, s)

	first, err := s.SaveState(ctx, doc.ID, "start", ir.Object{"x/value": ir.Int(1)})
	require.NoError(t, err)
	second, err := s.SaveState(ctx, doc.ID, "edited", ir.Object{"x/value": ir.Int(7)})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, ir.MustStateHash(ir.Object{"x/value": ir.Int(7)}), second.Hash)

	latest, err := s.LoadState(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, "edited", latest.Label)
	assert.Equal(t, ir.Object{"x/value": ir.Int(7)}, latest.State)

	older, err := s.LoadSnapshot(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"x/value": ir.Int(1)}, older.State)
}

// TestSaveState_Unchanged tests that saving identical records reuses the
// latest snapshot.
func TestSaveState_Unchanged(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := saveTestDocument(t, s)
	records := ir.Object{"x/value": ir.String("a"), "y/checked": ir.Bool(true)}

	first, err := s.SaveState(ctx, doc.ID, "", records)
	require.NoError(t, err)
	again, err := s.SaveState(ctx, doc.ID, "", ir.Object{"y/checked": ir.Bool(true), "x/value": ir.String("a")})
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	snaps, err := s.ListSnapshots(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestSaveState_EmptyRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := saveTestDocument(t, s)

	_, err := s.SaveState(ctx, doc.ID, "", nil)
	require.NoError(t, err)

	latest, err := s.LoadState(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, latest.State)
}

func TestSaveState_UnknownDocument(t *testing.T) {
	s := createTestStore(t)

	_, err := s.SaveState(context.Background(), "missing", "", ir.Object{})
	assert.Error(t, err, "foreign key should reject unknown document")
}

func TestLoadState_NotFound(t *testing.T) {
	s := createTestStore(t)
	doc := saveTestDocument(t, s)

	_, err := s.LoadState(context.Background(), doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSnapshots_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := saveTestDocument(t, s)

	for i := 1; i <= 3; i++ {
		_, err := s.SaveState(ctx, doc.ID, "", ir.Object{"x/value": ir.Int(int64(i))})
		require.NoError(t, err)
	}

	snaps, err := s.ListSnapshots(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	for i, snap := range snaps {
		assert.Equal(t, int64(i+1), snap.Seq)
		assert.Nil(t, snap.State)
	}
}

// TestLoadState_Tampered tests that altered records fail the hash check.
func TestLoadState_Tampered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := saveTestDocument(t, s)

	snap, err := s.SaveState(ctx, doc.ID, "", ir.Object{"x/value": ir.Int(1)})
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE snapshots SET state = '{"x/value":2}' WHERE id = ?`, snap.ID)
	require.NoError(t, err)

	_, err = s.LoadState(ctx, doc.ID)
	var ierr *IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, snap.ID, ierr.SnapshotID)
}
