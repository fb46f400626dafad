package merge

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLogDocumentSnapshotRoundTrip(t *testing.T) {
	engine := NewLogEngine()
	doc, err := engine.NewDocument(nil)
	require.NoError(t, err)

	require.NoError(t, doc.ApplyUpdate([]byte("first"), "a"))
	require.NoError(t, doc.ApplyUpdate([]byte("second"), "b"))
	require.NoError(t, doc.ApplyUpdate(nil, "c")) // empty delta is legal

	snap := doc.Snapshot()
	restored, err := engine.NewDocument(snap)
	require.NoError(t, err)
	assert.Equal(t, snap, restored.Snapshot())
}

func TestLogDocumentCorruptSnapshot(t *testing.T) {
	engine := NewLogEngine()
	_, err := engine.NewDocument([]byte{0xFF}) // length prefix with no body
	assert.Error(t, err)
}

func TestLogDocumentOnUpdateCarriesOrigin(t *testing.T) {
	engine := NewLogEngine()
	doc, err := engine.NewDocument(nil)
	require.NoError(t, err)

	var gotUpdate []byte
	var gotOrigin string
	doc.OnUpdate(func(update []byte, origin string) {
		gotUpdate = update
		gotOrigin = origin
	})

	require.NoError(t, doc.ApplyUpdate([]byte("delta"), "c42"))
	assert.Equal(t, []byte("delta"), gotUpdate)
	assert.Equal(t, "c42", gotOrigin)
}

func TestLogAwarenessKeepsLatestPerOrigin(t *testing.T) {
	aw := NewLogEngine().NewAwareness()
	require.NoError(t, aw.Apply([]byte("a1"), "a"))
	require.NoError(t, aw.Apply([]byte("b1"), "b"))
	require.NoError(t, aw.Apply([]byte("a2"), "a")) // replaces a1, keeps order

	snap := aw.Snapshot()
	assert.Equal(t, []byte{2, 'a', '2', 2, 'b', '1'}, snap)

	aw.Remove("a")
	assert.Equal(t, []byte{2, 'b', '1'}, aw.Snapshot())

	aw.Remove("a") // idempotent
	aw.Remove("never-seen")
}

// faultyEngine rejects every update, standing in for a CRDT binding that
// refuses a malformed delta.
type faultyEngine struct{ *LogEngine }

type faultyDocument struct{ Document }

func (faultyEngine) NewDocument(snapshot []byte) (Document, error) {
	doc, err := NewLogEngine().NewDocument(snapshot)
	return faultyDocument{doc}, err
}

func (faultyDocument) ApplyUpdate(update []byte, origin string) error {
	return errors.New("malformed delta")
}

func TestHolderSurvivesEngineRejection(t *testing.T) {
	h := NewHolder(faultyEngine{NewLogEngine()}, nil, testLogger())

	err := h.ApplyUpdate([]byte("bad"), "a")
	assert.Error(t, err)

	// The holder keeps serving: snapshot and awareness still work.
	assert.NotNil(t, h)
	assert.Empty(t, h.Snapshot())
	require.NoError(t, h.ApplyAwareness([]byte("p"), "a"))
	assert.NotEmpty(t, h.AwarenessSnapshot())
}

func TestHolderUnreadableSnapshotStartsEmpty(t *testing.T) {
	h := NewHolder(NewLogEngine(), []byte{0xFF, 0xFF}, testLogger())
	assert.Empty(t, h.Snapshot())

	// The holder is usable after the fallback.
	require.NoError(t, h.ApplyUpdate([]byte("x"), "a"))
	assert.NotEmpty(t, h.Snapshot())
}

func TestHolderConvergenceAcrossArrivalOrders(t *testing.T) {
	// With the relay engine the snapshot is the log itself, so identical
	// delta sequences yield identical snapshots; order-independence of the
	// merged result is the client engine's contract.
	deltas := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	first := NewHolder(NewLogEngine(), nil, testLogger())
	second := NewHolder(NewLogEngine(), nil, testLogger())
	for _, d := range deltas {
		require.NoError(t, first.ApplyUpdate(d, "x"))
		require.NoError(t, second.ApplyUpdate(d, "y"))
	}
	assert.Equal(t, first.Snapshot(), second.Snapshot())
}
