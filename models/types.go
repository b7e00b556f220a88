// ABOUTME: Data models for sales CRM entities served by the remote API
// ABOUTME: Defines Meeting, Lead, Call, and Task records plus their create/update payloads
package models

import (
	"time"
)

// Entity is any record with a canonical identifier.
type Entity interface {
	EntityID() string
	Matches(id string) bool
}

// Identity holds the canonical id of a record. AliasIDs keeps the raw
// alternate ids (_id, <resource>Id) seen at ingestion; they are only
// consulted by Matches.
type Identity struct {
	ID       string   `json:"id"`
	AliasIDs []string `json:"aliasIds,omitempty"`
}

func (i Identity) EntityID() string {
	return i.ID
}

// Matches reports whether id names this record under any of its ids.
func (i Identity) Matches(id string) bool {
	if id == "" {
		return false
	}
	if i.ID == id {
		return true
	}
	for _, alias := range i.AliasIDs {
		if alias == id {
			return true
		}
	}
	return false
}

type Attachment struct {
	Name       string    `json:"name"`
	URL        string    `json:"url,omitempty"`
	Size       int64     `json:"size,omitempty"`
	UploadedAt time.Time `json:"uploadedAt,omitempty"`
}

type Meeting struct {
	Identity
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	CompanyID   string       `json:"companyId,omitempty"`
	LeadID      string       `json:"leadId,omitempty"`
	StartTime   *time.Time   `json:"startTime,omitempty"`
	EndTime     *time.Time   `json:"endTime,omitempty"`
	Location    string       `json:"location,omitempty"`
	Status      string       `json:"status,omitempty"`
	Attendees   []string     `json:"attendees,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type Lead struct {
	Identity
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	CompanyID   string    `json:"companyId,omitempty"`
	CompanyName string    `json:"companyName,omitempty"`
	Status      string    `json:"status,omitempty"`
	Source      string    `json:"source,omitempty"`
	OwnerID     string    `json:"ownerId,omitempty"`
	Value       int64     `json:"value,omitempty"` // in cents
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Call struct {
	Identity
	Subject         string     `json:"subject"`
	CompanyID       string     `json:"companyId,omitempty"`
	LeadID          string     `json:"leadId,omitempty"`
	Direction       string     `json:"direction,omitempty"`
	DurationSeconds int        `json:"durationSeconds,omitempty"`
	Outcome         string     `json:"outcome,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CalledAt        *time.Time `json:"calledAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type Task struct {
	Identity
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CompanyID   string     `json:"companyId,omitempty"`
	LeadID      string     `json:"leadId,omitempty"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Status      string     `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Meeting status constants.
const (
	MeetingScheduled = "scheduled"
	MeetingCompleted = "completed"
	MeetingCancelled = "cancelled"
)

// Lead status constants.
const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadQualified = "qualified"
	LeadLost      = "lost"
	LeadConverted = "converted"
)

// Call direction constants.
const (
	CallInbound  = "inbound"
	CallOutbound = "outbound"
)

// Task priority and status constants.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	TaskOpen       = "open"
	TaskInProgress = "in_progress"
	TaskDone       = "done"
)

// MeetingInput is the create payload for a meeting.
type MeetingInput struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description,omitempty"`
	CompanyID   string     `json:"companyId" validate:"required"`
	LeadID      string     `json:"leadId,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty" validate:"omitempty,gtfield=StartTime"`
	Location    string     `json:"location,omitempty"`
	Status      string     `json:"status,omitempty" validate:"omitempty,oneof=scheduled completed cancelled"`
	Attendees   []string   `json:"attendees,omitempty" validate:"omitempty,dive,email"`
}

// MeetingPatch is the partial update payload for a meeting.
type MeetingPatch struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1"`
	Description *string    `json:"description,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=scheduled completed cancelled"`
	Attendees   []string   `json:"attendees,omitempty" validate:"omitempty,dive,email"`
}

type LeadInput struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string `json:"phone,omitempty"`
	CompanyID   string `json:"companyId" validate:"required"`
	CompanyName string `json:"companyName,omitempty"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=new contacted qualified lost converted"`
	Source      string `json:"source,omitempty"`
	OwnerID     string `json:"ownerId,omitempty"`
	Value       int64  `json:"value,omitempty" validate:"gte=0"`
}

type LeadPatch struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   *string `json:"phone,omitempty"`
	Status  *string `json:"status,omitempty" validate:"omitempty,oneof=new contacted qualified lost converted"`
	Source  *string `json:"source,omitempty"`
	OwnerID *string `json:"ownerId,omitempty"`
	Value   *int64  `json:"value,omitempty" validate:"omitempty,gte=0"`
}

type CallInput struct {
	Subject         string     `json:"subject" validate:"required"`
	CompanyID       string     `json:"companyId" validate:"required"`
	LeadID          string     `json:"leadId,omitempty"`
	Direction       string     `json:"direction,omitempty" validate:"omitempty,oneof=inbound outbound"`
	DurationSeconds int        `json:"durationSeconds,omitempty" validate:"gte=0"`
	Outcome         string     `json:"outcome,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CalledAt        *time.Time `json:"calledAt,omitempty"`
}

type CallPatch struct {
	Subject         *string `json:"subject,omitempty" validate:"omitempty,min=1"`
	Direction       *string `json:"direction,omitempty" validate:"omitempty,oneof=inbound outbound"`
	DurationSeconds *int    `json:"durationSeconds,omitempty" validate:"omitempty,gte=0"`
	Outcome         *string `json:"outcome,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type TaskInput struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description,omitempty"`
	CompanyID   string     `json:"companyId" validate:"required"`
	LeadID      string     `json:"leadId,omitempty"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Status      string     `json:"status,omitempty" validate:"omitempty,oneof=open in_progress done"`
}

type TaskPatch struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1"`
	Description *string    `json:"description,omitempty"`
	AssigneeID  *string    `json:"assigneeId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    *string    `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=open in_progress done"`
}
