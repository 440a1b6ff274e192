// Package models contains shared data models used across the errdesk codebase.
package models

// RiskLevel is a severity classification used for triage ordering.
// It is independent of an error's status.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
)

// Valid reports whether r is one of the known risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskCritical, RiskHigh, RiskMedium, RiskLow:
		return true
	}
	return false
}

// ErrorStatus is the lifecycle state of an ErrorLog.
type ErrorStatus string

const (
	StatusOpen       ErrorStatus = "open"
	StatusInProgress ErrorStatus = "in_progress"
	StatusResolved   ErrorStatus = "resolved"
	StatusIgnored    ErrorStatus = "ignored"
)

// Valid reports whether s is one of the known statuses.
func (s ErrorStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusIgnored:
		return true
	}
	return false
}
