package models

import "time"

type QueueEntry struct {
	EntryID       string     `json:"entry_id"`
	PatientID     string     `json:"patient_id"`
	AppointmentID *string    `json:"appointment_id,omitempty"`
	QueueNumber   int        `json:"queue_number"`
	ServiceDay    string     `json:"service_day"`
	Status        string     `json:"status"`
	Priority      Priority   `json:"priority"`
	CheckInTime   time.Time  `json:"check_in_time"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// IsTerminal reports whether no further transitions exist for the status.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}
