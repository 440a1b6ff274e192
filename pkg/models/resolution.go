package models

import (
	"time"

	"github.com/google/uuid"
)

// ErrorResolution is the audit record written when an error is resolved.
type ErrorResolution struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	ErrorLogID      uuid.UUID  `db:"error_log_id"     json:"error_log_id"`
	ResolvedBy      *uuid.UUID `db:"resolved_by"      json:"resolved_by,omitempty"`
	ResolutionNotes string     `db:"resolution_notes" json:"resolution_notes"`
	ResolutionType  string     `db:"resolution_type"  json:"resolution_type,omitempty"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
}
