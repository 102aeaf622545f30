package store

import (
	"context"
	"encoding/json"
	"time"

	"clinicq/dispatch-service/internal/models"
)

type CheckInInput struct {
	RequestID     string
	PatientID     string
	AppointmentID string
	Priority      models.Priority
	Notes         string
	ActorID       string
	ServiceDay    string
	CheckInTime   time.Time
}

type CallNextInput struct {
	RequestID  string
	ActorID    string
	ServiceDay string
	CalledAt   time.Time
}

type EntryActionInput struct {
	RequestID  string
	EntryID    string
	ActorID    string
	OccurredAt time.Time
}

// EntryStore is the persisted-record collaborator. The database is the only
// serialization point: every mutation is a conditional write and a losing
// concurrent CallNext reports ErrConflict instead of corrupting state.
type EntryStore interface {
	CheckIn(ctx context.Context, input CheckInInput) (models.QueueEntry, bool, error)
	GetEntry(ctx context.Context, entryID string) (models.QueueEntry, bool, error)
	CallNext(ctx context.Context, input CallNextInput) (models.QueueEntry, bool, error)
	CompleteEntry(ctx context.Context, input EntryActionInput) (models.QueueEntry, bool, error)
	SkipEntry(ctx context.Context, input EntryActionInput) (models.QueueEntry, bool, error)
	ListDay(ctx context.Context, serviceDay string) ([]models.QueueEntry, error)
	AppendAudit(ctx context.Context, event AuditEvent) error
	ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]OutboxEvent, error)
}

// AuditEvent is append-only; failures to record one never fail the
// operation that produced it.
type AuditEvent struct {
	Action     string    `json:"action"`
	EntryID    string    `json:"entry_id"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
