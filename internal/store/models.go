package store

import (
	"time"

	"intakeflow/api/internal/workflow"
)

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Record is the client intake entity. The ~60 domain fields live in the
// Fields sub-document (a JSONB column); client name and workflow state
// are denormalized to top-level columns for indexing and search.
type Record struct {
	ID               string
	ClientName       string
	Fields           map[string]any
	Status           workflow.State
	ReviewerComments string
	CreatedBy        string
	LastModifiedBy   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SubmittedAt      *time.Time
	ReviewedAt       *time.Time
	StatusHistory    []StatusHistoryEntry
}

// StatusHistoryEntry is an immutable audit entry: created once per
// transition, never mutated or deleted.
type StatusHistoryEntry struct {
	ID        string
	RecordID  string
	Status    workflow.State
	Timestamp time.Time
	UserID    string
	UserName  string
	Comments  string
}

// AuditLogEntry records a section finalize against a record.
type AuditLogEntry struct {
	ID        int64
	RecordID  string
	UserID    string
	Action    string
	Section   string
	Changes   map[string]any
	CreatedAt time.Time
}

// DropdownOption is one admin-configurable select option.
type DropdownOption struct {
	Category  string
	Value     string
	Label     string
	SortOrder int
}

// RecordFilter narrows ListRecords. Zero values mean "no restriction";
// CreatedBy scopes intake users to their own records.
type RecordFilter struct {
	CreatedBy string
	Statuses  []workflow.State
	Query     string
}
