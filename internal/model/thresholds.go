package model

import "fmt"

// Threshold bounds accepted at the configuration boundary
const (
	MinThresholdHours      = 1
	MaxCheckInHours        = 168
	MaxReconHours          = 168
	MaxPendingCommandHours = 72
	DefaultCheckInHours    = 24
	DefaultReconHours      = 24
	DefaultPendingCmdHours = 6
	DefaultComplianceGroup = "Compliance"
)

// HealthThresholds are the staleness bounds read by every classification
type HealthThresholds struct {
	CheckInHours        int `json:"check_in_hours"`
	ReconHours          int `json:"recon_hours"`
	PendingCommandHours int `json:"pending_command_hours"`
}

// DefaultThresholds returns the thresholds used when none are configured
func DefaultThresholds() HealthThresholds {
	return HealthThresholds{
		CheckInHours:        DefaultCheckInHours,
		ReconHours:          DefaultReconHours,
		PendingCommandHours: DefaultPendingCmdHours,
	}
}

// Validate rejects out-of-range threshold values
func (t HealthThresholds) Validate() error {
	if t.CheckInHours < MinThresholdHours || t.CheckInHours > MaxCheckInHours {
		return &InvalidThresholdError{Field: "check_in_hours", Value: t.CheckInHours, Min: MinThresholdHours, Max: MaxCheckInHours}
	}
	if t.ReconHours < MinThresholdHours || t.ReconHours > MaxReconHours {
		return &InvalidThresholdError{Field: "recon_hours", Value: t.ReconHours, Min: MinThresholdHours, Max: MaxReconHours}
	}
	if t.PendingCommandHours < MinThresholdHours || t.PendingCommandHours > MaxPendingCommandHours {
		return &InvalidThresholdError{Field: "pending_command_hours", Value: t.PendingCommandHours, Min: MinThresholdHours, Max: MaxPendingCommandHours}
	}
	return nil
}

// InvalidThresholdError reports an out-of-range configuration value.
// Rejected at the configuration boundary, never inside classification.
type InvalidThresholdError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("%s must be between %d and %d, got %d", e.Field, e.Min, e.Max, e.Value)
}
