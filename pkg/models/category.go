package models

import "time"

// ErrorCategory is a named grouping of errors, e.g. "UI/UX" or "Database".
// The id is kept as text because reports may reference categories that
// were never registered.
type ErrorCategory struct {
	ID               string    `db:"id"                 json:"id"                 yaml:"-"`
	Name             string    `db:"name"               json:"name"               yaml:"name"`
	Description      string    `db:"description"        json:"description"        yaml:"description"`
	DefaultRiskLevel RiskLevel `db:"default_risk_level" json:"default_risk_level" yaml:"default_risk_level"`
	Color            string    `db:"color"              json:"color"              yaml:"color"`
	CreatedAt        time.Time `db:"created_at"         json:"created_at"         yaml:"-"`
	UpdatedAt        time.Time `db:"updated_at"         json:"updated_at"         yaml:"-"`
}
