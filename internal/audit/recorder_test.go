package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceWriter struct {
	entries []Entry
	err     error
}

func (w *sliceWriter) InsertAuditEntry(_ context.Context, e Entry) error {
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, e)
	return nil
}

func TestRecorder_Record(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	r := &Recorder{Now: func() time.Time { return fixed }}
	w := &sliceWriter{}
	ctx := WithActor(context.Background(), Actor{UserID: "u-42", Role: "admin"})

	e, err := r.Record(ctx, w, ActionCreate, "order", "o-1", map[string]int{"items": 2})
	require.NoError(t, err)
	require.Len(t, w.entries, 1)

	assert.Equal(t, e, w.entries[0])
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "u-42", e.ActorUserID)
	assert.Equal(t, "admin", e.ActorRole)
	assert.Equal(t, ActionCreate, e.Action)
	assert.Equal(t, "order", e.EntityType)
	assert.Equal(t, "o-1", e.EntityID)
	assert.Equal(t, time.UTC, e.CreatedAt.Location())
	assert.True(t, fixed.Equal(e.CreatedAt))

	var details map[string]int
	require.NoError(t, json.Unmarshal(e.Details, &details))
	assert.Equal(t, 2, details["items"])
}

func TestRecorder_Record_SystemActorWhenAnonymous(t *testing.T) {
	w := &sliceWriter{}
	e, err := NewRecorder().Record(context.Background(), w, ActionDelete, "order", "o-2", nil)
	require.NoError(t, err)
	assert.Equal(t, SystemActor.UserID, e.ActorUserID)
	assert.Nil(t, e.Details)
}

func TestRecorder_Record_WriterFailure(t *testing.T) {
	w := &sliceWriter{err: errors.New("disk full")}
	_, err := NewRecorder().Record(context.Background(), w, ActionUpdate, "order", "o-3", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, w.err)
}

func TestRecorder_Record_UnmarshalableDetails(t *testing.T) {
	w := &sliceWriter{}
	_, err := NewRecorder().Record(context.Background(), w, ActionUpdate, "order", "o-4", make(chan int))
	require.Error(t, err)
	assert.Empty(t, w.entries)
}
