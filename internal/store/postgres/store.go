package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"clinicq/dispatch-service/internal/models"
	"clinicq/dispatch-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const entryColumns = `entry_id, patient_id, appointment_id, queue_number, service_day::text, status, priority, check_in_time, start_time, end_time, notes`

func (s *Store) CheckIn(ctx context.Context, input store.CheckInInput) (models.QueueEntry, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findEntryByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.QueueEntry{}, false, err
		}
		return existing, false, nil
	}

	number, err := nextQueueNumber(ctx, tx, input.ServiceDay)
	if err != nil {
		return models.QueueEntry{}, false, err
	}

	entryID := uuid.NewString()
	checkInTime := input.CheckInTime
	if checkInTime.IsZero() {
		checkInTime = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO queue_entries (
			entry_id, request_id, patient_id, appointment_id, queue_number,
			service_day, status, priority, check_in_time, notes, checked_in_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING `+entryColumns,
		entryID, input.RequestID, input.PatientID, nullIfEmpty(input.AppointmentID), number,
		input.ServiceDay, models.StatusWaiting, int(input.Priority), checkInTime, input.Notes, input.ActorID)

	entry, err := scanEntry(row)
	if err != nil {
		return models.QueueEntry{}, false, err
	}

	if err = insertOutboxEvent(ctx, tx, "entry.checked_in", entry); err != nil {
		return models.QueueEntry{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, false, err
	}

	return entry, true, nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE entry_id = $1
	`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, false, store.ErrEntryNotFound
		}
		return models.QueueEntry{}, false, err
	}
	return entry, true, nil
}

// CallNext completes the current in-progress entry (if any) and promotes the
// head of the waiting order in a single transaction. When no waiting entry is
// visible the completion still commits and the counter goes idle. When the
// waiting head is locked or taken by a concurrent caller the whole
// transaction rolls back and the caller gets ErrConflict to retry.
func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (models.QueueEntry, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "call_next", input.RequestID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.QueueEntry{}, false, err
		}
		if empty {
			return models.QueueEntry{}, false, store.ErrQueueEmpty
		}
		return existing, false, nil
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	completed, err := completeCurrent(ctx, tx, input.ServiceDay, calledAt)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	for i := range completed {
		if err = insertOutboxEvent(ctx, tx, "entry.completed", completed[i]); err != nil {
			return models.QueueEntry{}, false, err
		}
	}

	entry, err := promoteNextWaiting(ctx, tx, input.ServiceDay, calledAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Another station promoted a different waiting entry first; the
			// one-in-progress index rejected ours. Retryable.
			return models.QueueEntry{}, false, store.ErrConflict
		}
		if errors.Is(err, pgx.ErrNoRows) {
			var waiting int
			waiting, err = countWaiting(ctx, tx, input.ServiceDay)
			if err != nil {
				return models.QueueEntry{}, false, err
			}
			if waiting > 0 {
				// Head is locked by a concurrent caller. Roll back so the
				// completion above is not applied twice across stations.
				err = store.ErrConflict
				return models.QueueEntry{}, false, store.ErrConflict
			}
			if err = insertActionRequest(ctx, tx, "call_next", input.RequestID, "", input.ActorID); err != nil {
				return models.QueueEntry{}, false, err
			}
			if err = tx.Commit(ctx); err != nil {
				return models.QueueEntry{}, false, err
			}
			return models.QueueEntry{}, false, store.ErrQueueEmpty
		}
		return models.QueueEntry{}, false, err
	}

	if err = insertActionRequest(ctx, tx, "call_next", input.RequestID, entry.EntryID, input.ActorID); err != nil {
		return models.QueueEntry{}, false, err
	}

	if err = insertOutboxEvent(ctx, tx, "entry.called", entry); err != nil {
		return models.QueueEntry{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return models.QueueEntry{}, false, store.ErrConflict
		}
		return models.QueueEntry{}, false, err
	}

	return entry, true, nil
}

func (s *Store) CompleteEntry(ctx context.Context, input store.EntryActionInput) (models.QueueEntry, bool, error) {
	return s.updateEntryStatus(ctx, input, "complete", models.StatusInProgress, models.StatusCompleted, "entry.completed", "end_time")
}

func (s *Store) SkipEntry(ctx context.Context, input store.EntryActionInput) (models.QueueEntry, bool, error) {
	return s.updateEntryStatus(ctx, input, "skip", models.StatusWaiting, models.StatusCancelled, "entry.skipped", "")
}

func (s *Store) ListDay(ctx context.Context, serviceDay string) ([]models.QueueEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE service_day = $1::date
		ORDER BY queue_number ASC
	`, serviceDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) AppendAudit(ctx context.Context, event store.AuditEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (audit_id, action, entry_id, actor_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), event.Action, nullIfEmpty(event.EntryID), event.ActorID, event.OccurredAt)
	return err
}

func (s *Store) ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id, type, payload_json, created_at
		FROM outbox_events
	`
	args := []interface{}{}
	if !after.IsZero() {
		query += " WHERE created_at > $1 ORDER BY created_at ASC LIMIT $2"
		args = append(args, after, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) updateEntryStatus(ctx context.Context, input store.EntryActionInput, action, fromStatus, toStatus, eventType, timestampColumn string) (models.QueueEntry, bool, error) {
	if !store.ValidTransition(action, fromStatus) {
		return models.QueueEntry{}, false, store.ErrInvalidTransition
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, action, input.RequestID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.QueueEntry{}, false, err
		}
		if empty {
			return models.QueueEntry{}, false, store.ErrInvalidTransition
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	query := `
		UPDATE queue_entries
		SET status = $1
	`
	args := []interface{}{toStatus}
	if timestampColumn != "" {
		query += ", " + timestampColumn + " = $2 WHERE entry_id = $3 AND status = $4"
		args = append(args, occurredAt, input.EntryID, fromStatus)
	} else {
		query += " WHERE entry_id = $2 AND status = $3"
		args = append(args, input.EntryID, fromStatus)
	}
	query += " RETURNING " + entryColumns

	row := tx.QueryRow(ctx, query, args...)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_, exists, loadErr := loadEntryStatus(ctx, tx, input.EntryID)
			if loadErr != nil {
				return models.QueueEntry{}, false, loadErr
			}
			if !exists {
				return models.QueueEntry{}, false, store.ErrEntryNotFound
			}
			return models.QueueEntry{}, false, store.ErrInvalidTransition
		}
		return models.QueueEntry{}, false, err
	}

	if err = insertActionRequest(ctx, tx, action, input.RequestID, entry.EntryID, input.ActorID); err != nil {
		return models.QueueEntry{}, false, err
	}

	if err = insertOutboxEvent(ctx, tx, eventType, entry); err != nil {
		return models.QueueEntry{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, false, err
	}

	return entry, true, nil
}

func completeCurrent(ctx context.Context, tx pgx.Tx, serviceDay string, endTime time.Time) ([]models.QueueEntry, error) {
	rows, err := tx.Query(ctx, `
		UPDATE queue_entries
		SET status = $1,
			end_time = $2
		WHERE service_day = $3::date AND status = $4
		RETURNING `+entryColumns,
		models.StatusCompleted, endTime, serviceDay, models.StatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var completed []models.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		completed = append(completed, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return completed, nil
}

func promoteNextWaiting(ctx context.Context, tx pgx.Tx, serviceDay string, startTime time.Time) (models.QueueEntry, error) {
	row := tx.QueryRow(ctx, `
		WITH next_entry AS (
			SELECT entry_id
			FROM queue_entries
			WHERE service_day = $1::date AND status = $2
			ORDER BY priority DESC, queue_number ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE queue_entries
		SET status = $3,
			start_time = $4
		FROM next_entry
		WHERE queue_entries.entry_id = next_entry.entry_id
			AND NOT EXISTS (
				SELECT 1 FROM queue_entries g
				WHERE g.service_day = $1::date AND g.status = $3
			)
		RETURNING queue_entries.entry_id, queue_entries.patient_id, queue_entries.appointment_id,
			queue_entries.queue_number, queue_entries.service_day::text, queue_entries.status,
			queue_entries.priority, queue_entries.check_in_time, queue_entries.start_time,
			queue_entries.end_time, queue_entries.notes
	`, serviceDay, models.StatusWaiting, models.StatusInProgress, startTime)
	return scanEntry(row)
}

func countWaiting(ctx context.Context, tx pgx.Tx, serviceDay string) (int, error) {
	var count int
	row := tx.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM queue_entries
		WHERE service_day = $1::date AND status = $2
	`, serviceDay, models.StatusWaiting)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func nextQueueNumber(ctx context.Context, tx pgx.Tx, serviceDay string) (int, error) {
	var next int
	row := tx.QueryRow(ctx, `
		INSERT INTO queue_day_sequences (service_day, next_number)
		VALUES ($1::date, 1)
		ON CONFLICT (service_day)
		DO UPDATE SET next_number = queue_day_sequences.next_number + 1
		RETURNING next_number
	`, serviceDay)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func findEntryByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.QueueEntry, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE request_id = $1
	`, requestID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, false, nil
		}
		return models.QueueEntry{}, false, err
	}
	return entry, true, nil
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (models.QueueEntry, bool, bool, error) {
	var entryID sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT entry_id
		FROM entry_action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&entryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, false, false, nil
		}
		return models.QueueEntry{}, false, false, err
	}

	if !entryID.Valid {
		return models.QueueEntry{}, true, true, nil
	}

	row = tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE entry_id = $1
	`, entryID.String)
	entry, err := scanEntry(row)
	if err != nil {
		return models.QueueEntry{}, false, false, err
	}
	return entry, true, false, nil
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, entryID, actorID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO entry_action_requests (request_id, action, entry_id, actor_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, action, nullIfEmpty(entryID), actorID)
	return err
}

func loadEntryStatus(ctx context.Context, tx pgx.Tx, entryID string) (string, bool, error) {
	var status string
	row := tx.QueryRow(ctx, `
		SELECT status
		FROM queue_entries
		WHERE entry_id = $1
	`, entryID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return status, true, nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, entry models.QueueEntry) error {
	payload := map[string]interface{}{
		"entry_id":      entry.EntryID,
		"patient_id":    entry.PatientID,
		"queue_number":  entry.QueueNumber,
		"service_day":   entry.ServiceDay,
		"status":        entry.Status,
		"priority":      int(entry.Priority),
		"check_in_time": entry.CheckInTime,
		"start_time":    entry.StartTime,
		"end_time":      entry.EndTime,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, payloadJSON, time.Now().UTC())
	return err
}

func scanEntry(row pgx.Row) (models.QueueEntry, error) {
	var entry models.QueueEntry
	var appointmentIDNull sql.NullString
	var startTimeNull sql.NullTime
	var endTimeNull sql.NullTime
	var priority int
	if err := row.Scan(&entry.EntryID, &entry.PatientID, &appointmentIDNull, &entry.QueueNumber,
		&entry.ServiceDay, &entry.Status, &priority, &entry.CheckInTime,
		&startTimeNull, &endTimeNull, &entry.Notes); err != nil {
		return models.QueueEntry{}, err
	}
	entry.Priority = models.Priority(priority)
	entry.AppointmentID = nullStringPtr(appointmentIDNull)
	entry.StartTime = nullTimePtr(startTimeNull)
	entry.EndTime = nullTimePtr(endTimeNull)
	return entry, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
