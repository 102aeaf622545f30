package dispatch

import (
	"testing"
	"time"

	"clinicq/dispatch-service/internal/models"
)

func entry(number int, status string, priority models.Priority, end *time.Time) models.QueueEntry {
	return models.QueueEntry{
		EntryID:     "entry",
		QueueNumber: number,
		Status:      status,
		Priority:    priority,
		EndTime:     end,
	}
}

func TestBuildSnapshotWaitingDispatchOrder(t *testing.T) {
	entries := []models.QueueEntry{
		entry(1, models.StatusWaiting, models.PriorityNormal, nil),
		entry(2, models.StatusWaiting, models.PriorityEmergency, nil),
		entry(3, models.StatusWaiting, models.PriorityNormal, nil),
		entry(4, models.StatusWaiting, models.PriorityUrgent, nil),
	}

	snapshot := BuildSnapshot(entries)

	var numbers []int
	for _, e := range snapshot.Waiting {
		numbers = append(numbers, e.QueueNumber)
	}
	want := []int{2, 4, 1, 3}
	if len(numbers) != len(want) {
		t.Fatalf("expected %d waiting entries, got %d", len(want), len(numbers))
	}
	for i := range want {
		if numbers[i] != want[i] {
			t.Fatalf("dispatch order %v, want %v", numbers, want)
		}
	}
}

func TestBuildSnapshotTiesBreakByArrival(t *testing.T) {
	entries := []models.QueueEntry{
		entry(5, models.StatusWaiting, models.PriorityUrgent, nil),
		entry(2, models.StatusWaiting, models.PriorityUrgent, nil),
		entry(9, models.StatusWaiting, models.PriorityUrgent, nil),
	}

	snapshot := BuildSnapshot(entries)

	if snapshot.Waiting[0].QueueNumber != 2 || snapshot.Waiting[1].QueueNumber != 5 || snapshot.Waiting[2].QueueNumber != 9 {
		t.Fatalf("expected arrival order within priority, got %+v", snapshot.Waiting)
	}
}

func TestBuildSnapshotCompletedReverseChronological(t *testing.T) {
	early := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	late := time.Date(2026, 1, 12, 11, 0, 0, 0, time.UTC)
	entries := []models.QueueEntry{
		entry(1, models.StatusCompleted, models.PriorityNormal, &early),
		entry(2, models.StatusCompleted, models.PriorityNormal, &late),
	}

	snapshot := BuildSnapshot(entries)

	if snapshot.Completed[0].QueueNumber != 2 {
		t.Fatalf("expected most recent completion first, got %+v", snapshot.Completed)
	}
}

func TestBuildSnapshotPartitions(t *testing.T) {
	entries := []models.QueueEntry{
		entry(1, models.StatusCompleted, models.PriorityNormal, nil),
		entry(2, models.StatusInProgress, models.PriorityNormal, nil),
		entry(3, models.StatusWaiting, models.PriorityNormal, nil),
		entry(4, models.StatusCancelled, models.PriorityNormal, nil),
	}

	snapshot := BuildSnapshot(entries)

	if snapshot.InProgress == nil || snapshot.InProgress.QueueNumber != 2 {
		t.Fatalf("expected entry 2 in progress, got %+v", snapshot.InProgress)
	}
	if len(snapshot.Waiting) != 1 || snapshot.Waiting[0].QueueNumber != 3 {
		t.Fatalf("unexpected waiting partition: %+v", snapshot.Waiting)
	}
	if len(snapshot.Completed) != 1 || snapshot.Completed[0].QueueNumber != 1 {
		t.Fatalf("unexpected completed partition: %+v", snapshot.Completed)
	}
}

func TestBuildSnapshotEmptyDay(t *testing.T) {
	snapshot := BuildSnapshot(nil)

	if snapshot.InProgress != nil {
		t.Fatalf("expected idle counter, got %+v", snapshot.InProgress)
	}
	if len(snapshot.Waiting) != 0 || len(snapshot.Completed) != 0 {
		t.Fatalf("expected empty partitions, got %+v", snapshot)
	}
}
