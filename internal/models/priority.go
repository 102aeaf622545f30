package models

// Priority orders waiting entries ahead of arrival order. Higher wins.
type Priority int

const (
	PriorityNormal    Priority = 1
	PriorityUrgent    Priority = 2
	PriorityEmergency Priority = 3
)

func (p Priority) Valid() bool {
	return p >= PriorityNormal && p <= PriorityEmergency
}

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityUrgent:
		return "urgent"
	case PriorityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}
