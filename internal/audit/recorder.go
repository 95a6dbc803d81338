// Package audit records who changed which entity. Entries are written through
// the caller's transaction so a mutation and its trail commit or fail together.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionCancel Action = "cancel"
)

type Entry struct {
	ID          string          `json:"id"`
	ActorUserID string          `json:"actorUserId"`
	ActorRole   string          `json:"actorRole,omitempty"`
	Action      Action          `json:"action"`
	EntityType  string          `json:"entityType"`
	EntityID    string          `json:"entityId"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Writer appends an entry. Implementations are transaction scoped.
type Writer interface {
	InsertAuditEntry(ctx context.Context, e Entry) error
}

type Recorder struct {
	Now func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{Now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, w Writer, action Action, entityType, entityID string, details any) (Entry, error) {
	var raw json.RawMessage
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return Entry{}, fmt.Errorf("audit details: %w", err)
		}
		raw = b
	}

	actor := ActorFrom(ctx)
	e := Entry{
		ID:          uuid.NewString(),
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Details:     raw,
		CreatedAt:   r.Now().UTC(),
	}
	if err := w.InsertAuditEntry(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("write audit entry: %w", err)
	}
	return e, nil
}
