package dispatch

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"clinicq/dispatch-service/internal/announce"
	"clinicq/dispatch-service/internal/models"
	"clinicq/dispatch-service/internal/store"
)

// Dispatcher owns the daily counter queue. Persistence goes through the
// entry store, announcements and audit records go to their collaborators;
// neither collaborator failure fails the primary operation.
type Dispatcher struct {
	store     store.EntryStore
	announcer announce.Provider
	location  *time.Location
	now       func() time.Time
}

type Options struct {
	Announcer announce.Provider
	Location  *time.Location
	Now       func() time.Time
}

func New(entryStore store.EntryStore, options Options) *Dispatcher {
	announcer := options.Announcer
	if announcer == nil {
		announcer = announce.NoopProvider{}
	}
	location := options.Location
	if location == nil {
		location = time.Local
	}
	now := options.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{
		store:     entryStore,
		announcer: announcer,
		location:  location,
		now:       now,
	}
}

type CheckInInput struct {
	RequestID     string
	PatientID     string
	AppointmentID string
	Priority      models.Priority
	Notes         string
	ActorID       string
}

type CallNextInput struct {
	RequestID string
	ActorID   string
}

type ActionInput struct {
	RequestID string
	EntryID   string
	ActorID   string
}

// Snapshot partitions today's entries by status. Waiting is in dispatch
// order, completed in reverse chronological end-time order.
type Snapshot struct {
	Waiting    []models.QueueEntry `json:"waiting"`
	InProgress *models.QueueEntry  `json:"in_progress"`
	Completed  []models.QueueEntry `json:"completed"`
}

func (d *Dispatcher) CheckIn(ctx context.Context, input CheckInInput) (models.QueueEntry, error) {
	if input.PatientID == "" {
		return models.QueueEntry{}, store.ErrValidation
	}
	priority := input.Priority
	if priority == 0 {
		priority = models.PriorityNormal
	}
	if !priority.Valid() {
		return models.QueueEntry{}, store.ErrValidation
	}

	now := d.now()
	entry, applied, err := d.store.CheckIn(ctx, store.CheckInInput{
		RequestID:     input.RequestID,
		PatientID:     input.PatientID,
		AppointmentID: input.AppointmentID,
		Priority:      priority,
		Notes:         input.Notes,
		ActorID:       input.ActorID,
		ServiceDay:    d.serviceDay(now),
		CheckInTime:   now,
	})
	if err != nil {
		return models.QueueEntry{}, err
	}
	if applied {
		d.audit(ctx, "check_in", entry.EntryID, input.ActorID, now)
	}
	return entry, nil
}

func (d *Dispatcher) CallNext(ctx context.Context, input CallNextInput) (models.QueueEntry, error) {
	now := d.now()
	entry, applied, err := d.store.CallNext(ctx, store.CallNextInput{
		RequestID:  input.RequestID,
		ActorID:    input.ActorID,
		ServiceDay: d.serviceDay(now),
		CalledAt:   now,
	})
	if err != nil {
		return models.QueueEntry{}, err
	}
	if applied {
		d.audit(ctx, "call_next", entry.EntryID, input.ActorID, now)
		d.announce(ctx, entry.QueueNumber)
	}
	return entry, nil
}

func (d *Dispatcher) MarkComplete(ctx context.Context, input ActionInput) (models.QueueEntry, error) {
	now := d.now()
	entry, applied, err := d.store.CompleteEntry(ctx, store.EntryActionInput{
		RequestID:  input.RequestID,
		EntryID:    input.EntryID,
		ActorID:    input.ActorID,
		OccurredAt: now,
	})
	if err != nil {
		return models.QueueEntry{}, err
	}
	if applied {
		d.audit(ctx, "complete", entry.EntryID, input.ActorID, now)
	}
	return entry, nil
}

func (d *Dispatcher) Skip(ctx context.Context, input ActionInput) (models.QueueEntry, error) {
	now := d.now()
	entry, applied, err := d.store.SkipEntry(ctx, store.EntryActionInput{
		RequestID:  input.RequestID,
		EntryID:    input.EntryID,
		ActorID:    input.ActorID,
		OccurredAt: now,
	})
	if err != nil {
		return models.QueueEntry{}, err
	}
	if applied {
		d.audit(ctx, "skip", entry.EntryID, input.ActorID, now)
	}
	return entry, nil
}

func (d *Dispatcher) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error) {
	entry, _, err := d.store.GetEntry(ctx, entryID)
	return entry, err
}

func (d *Dispatcher) Snapshot(ctx context.Context) (Snapshot, error) {
	entries, err := d.store.ListDay(ctx, d.serviceDay(d.now()))
	if err != nil {
		return Snapshot{}, err
	}
	return BuildSnapshot(entries), nil
}

// BuildSnapshot partitions a day's entries. Cancelled entries are kept out of
// the projection; they remain in the store for historical reporting.
func BuildSnapshot(entries []models.QueueEntry) Snapshot {
	snapshot := Snapshot{
		Waiting:   []models.QueueEntry{},
		Completed: []models.QueueEntry{},
	}
	for _, entry := range entries {
		switch entry.Status {
		case models.StatusWaiting:
			snapshot.Waiting = append(snapshot.Waiting, entry)
		case models.StatusInProgress:
			current := entry
			snapshot.InProgress = &current
		case models.StatusCompleted:
			snapshot.Completed = append(snapshot.Completed, entry)
		}
	}
	sort.SliceStable(snapshot.Waiting, func(i, j int) bool {
		a, b := snapshot.Waiting[i], snapshot.Waiting[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.QueueNumber < b.QueueNumber
	})
	sort.SliceStable(snapshot.Completed, func(i, j int) bool {
		a, b := snapshot.Completed[i], snapshot.Completed[j]
		if a.EndTime == nil || b.EndTime == nil {
			return b.EndTime == nil && a.EndTime != nil
		}
		return a.EndTime.After(*b.EndTime)
	})
	return snapshot
}

func (d *Dispatcher) serviceDay(now time.Time) string {
	return now.In(d.location).Format("2006-01-02")
}

func (d *Dispatcher) audit(ctx context.Context, action, entryID, actorID string, occurredAt time.Time) {
	err := d.store.AppendAudit(ctx, store.AuditEvent{
		Action:     action,
		EntryID:    entryID,
		ActorID:    actorID,
		OccurredAt: occurredAt,
	})
	if err != nil {
		log.Printf("audit append failed action=%s entry=%s: %v", action, entryID, err)
	}
}

func (d *Dispatcher) announce(ctx context.Context, queueNumber int) {
	message := fmt.Sprintf("Number %d, please proceed to the counter", queueNumber)
	if err := d.announcer.Announce(ctx, message); err != nil {
		log.Printf("announce failed number=%d: %v", queueNumber, err)
	}
}
