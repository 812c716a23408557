package model

import "time"

// HealthStatus is the tri-state classification of a device
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusCaution   HealthStatus = "caution"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// IsValid reports whether the status is one of the known values
func (s HealthStatus) IsValid() bool {
	switch s {
	case StatusHealthy, StatusCaution, StatusUnhealthy:
		return true
	default:
		return false
	}
}

// DeviceRef identifies a device in the upstream inventory listing
type DeviceRef struct {
	ID int `json:"id"`
}

// DeviceIdentity holds the identifying fields of a managed device.
// Immutable once observed.
type DeviceIdentity struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
	Model        string `json:"model"`
	OSVersion    string `json:"os_version"`
}

// DeviceDetail is the parsed upstream detail payload for one device.
// Timestamps are nil when the upstream record omits them.
type DeviceDetail struct {
	Identity            DeviceIdentity
	LastContactTime     *time.Time
	LastInventoryUpdate *time.Time
}

// FailedPolicy is a policy execution that the upstream reports as failed
type FailedPolicy struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MDMCommand is a management command issued to a device
type MDMCommand struct {
	UUID       string     `json:"uuid"`
	Status     string     `json:"status"`
	DateIssued *time.Time `json:"date_issued,omitempty"`
}

// CommandSplit partitions a device's MDM commands by outcome
type CommandSplit struct {
	Failed  []MDMCommand `json:"failed"`
	Pending []MDMCommand `json:"pending"`
}

// SmartGroup is a dynamically-evaluated device cohort defined upstream
type SmartGroup struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RawDeviceSignals carries the unclassified inputs to a health evaluation.
// Produced fresh per evaluation unless the record is served from cache.
type RawDeviceSignals struct {
	LastContactTime     *time.Time
	LastInventoryUpdate *time.Time
	FailedPolicyCount   int
	FailedCommandCount  int
	PendingCommands     []MDMCommand
	GroupMemberships    []string
}

// SignalSummary records how each signal resolved during classification.
// Every boolean is evaluated even when an earlier one already decides
// the status, so callers can see the full picture.
type SignalSummary struct {
	CheckInOK             bool     `json:"check_in_ok"`
	ReconOK               bool     `json:"recon_ok"`
	HasFailedPolicies     bool     `json:"has_failed_policies"`
	HasFailedMDMCommands  bool     `json:"has_failed_mdm_commands"`
	HasPendingMDMCommands bool     `json:"has_pending_mdm_commands"`
	IsCompliant           bool     `json:"is_compliant"`
	MonitoredGroupMatches []string `json:"monitored_group_matches"`
}

// DeviceHealthRecord is the unit of caching and the unit returned to callers
type DeviceHealthRecord struct {
	Identity    DeviceIdentity `json:"device"`
	Signals     SignalSummary  `json:"signals"`
	Status      HealthStatus   `json:"status"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}
