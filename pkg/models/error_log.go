package models

import (
	"time"

	"github.com/google/uuid"
)

// ErrorReport is an incoming error event. Only Title and Message are required.
type ErrorReport struct {
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	ErrorCode  string         `json:"error_code,omitempty"`
	StackTrace string         `json:"stack_trace,omitempty"`
	URL        string         `json:"url,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	UserID     *uuid.UUID     `json:"user_id,omitempty"`
	CategoryID string         `json:"category_id,omitempty"`
	RiskLevel  RiskLevel      `json:"risk_level,omitempty"`
	Priority   int            `json:"priority,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ErrorLog is one distinct error condition, possibly representing many
// occurrences. At most one open row exists per (Title, ErrorCode).
type ErrorLog struct {
	ID              uuid.UUID      `db:"id"               json:"id"`
	Title           string         `db:"title"            json:"title"`
	Message         string         `db:"message"          json:"message"`
	ErrorCode       string         `db:"error_code"       json:"error_code"`
	StackTrace      string         `db:"stack_trace"      json:"stack_trace,omitempty"`
	URL             string         `db:"url"              json:"url,omitempty"`
	UserAgent       string         `db:"user_agent"       json:"user_agent,omitempty"`
	UserID          *uuid.UUID     `db:"user_id"          json:"user_id,omitempty"`
	CategoryID      string         `db:"category_id"      json:"category_id,omitempty"`
	RiskLevel       RiskLevel      `db:"risk_level"       json:"risk_level"`
	Status          ErrorStatus    `db:"status"           json:"status"`
	Priority        int            `db:"priority"         json:"priority"`
	Tags            []string       `db:"tags"             json:"tags"`
	Metadata        map[string]any `db:"metadata"         json:"metadata"`
	OccurrenceCount int            `db:"occurrence_count" json:"occurrence_count"`
	FirstOccurred   time.Time      `db:"first_occurred"   json:"first_occurred"`
	LastOccurred    time.Time      `db:"last_occurred"    json:"last_occurred"`
	AssignedTo      *uuid.UUID     `db:"assigned_to"      json:"assigned_to,omitempty"`
	CreatedAt       time.Time      `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"       json:"updated_at"`
}

// ErrorStats are the dashboard counters over all stored errors.
type ErrorStats struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Open     int `json:"open"`
	Resolved int `json:"resolved"`
}
