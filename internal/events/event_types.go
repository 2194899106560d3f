package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDepartmentCreated EventType = "department_created"
	EventDepartmentUpdated EventType = "department_updated"
	EventDepartmentDeleted EventType = "department_deleted"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []EventType{EventDepartmentCreated, EventDepartmentUpdated, EventDepartmentDeleted}

// Actor identifies the authenticated caller behind an event.
type Actor struct {
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	DepartmentID int64       `json:"department_id"`
	Actor        Actor       `json:"actor"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// NewEvent stamps a fresh id and timestamp.
func NewEvent(eventType EventType, departmentID int64, actor Actor, payload interface{}) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		DepartmentID: departmentID,
		Actor:        actor,
		Timestamp:    time.Now().UTC(),
		Payload:      payload,
	}
}

// DepartmentCreatedPayload payload. ManagerSurname is empty when the
// department has no manager.
type DepartmentCreatedPayload struct {
	OfficeNumber   string `json:"office_number"`
	ManagerSurname string `json:"manager_surname,omitempty"`
}

// DepartmentUpdatedPayload payload.
type DepartmentUpdatedPayload struct {
	OldVersion int `json:"old_version"`
	NewVersion int `json:"new_version"`
}

// DepartmentDeletedPayload payload.
type DepartmentDeletedPayload struct {
	EmployeeCount int `json:"employee_count"`
}
