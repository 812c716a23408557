package service

import (
	"time"

	"github.com/david-crosby/Jamf-Monitor/internal/model"
)

// Classify derives a device's health status from its raw signals. Pure: the
// evaluation time is passed in explicitly and the same inputs always yield
// the same result.
//
// Every signal boolean is computed even when an earlier one already decides
// the status, so the summary stays complete for observability.
//
// Precedence, first match wins:
//  1. unhealthy — stale check-in, stale recon, failed policies, failed MDM
//     commands, or stale pending MDM commands
//  2. caution — not in the compliance group, or member of a monitored group
//  3. healthy
//
// Staleness and failure signals dominate compliance signals: a device that
// stopped checking in is unhealthy no matter what groups it belongs to.
func Classify(
	now time.Time,
	signals model.RawDeviceSignals,
	thresholds model.HealthThresholds,
	complianceGroup string,
	monitoredGroups []string,
) (model.HealthStatus, model.SignalSummary) {
	summary := model.SignalSummary{
		CheckInOK:             withinThreshold(now, signals.LastContactTime, thresholds.CheckInHours),
		ReconOK:               withinThreshold(now, signals.LastInventoryUpdate, thresholds.ReconHours),
		HasFailedPolicies:     signals.FailedPolicyCount > 0,
		HasFailedMDMCommands:  signals.FailedCommandCount > 0,
		HasPendingMDMCommands: hasStalePendingCommand(now, signals.PendingCommands, thresholds.PendingCommandHours),
		IsCompliant:           containsGroup(signals.GroupMemberships, complianceGroup),
		MonitoredGroupMatches: monitoredMatches(signals.GroupMemberships, monitoredGroups, complianceGroup),
	}

	status := model.StatusHealthy
	switch {
	case !summary.CheckInOK,
		!summary.ReconOK,
		summary.HasFailedPolicies,
		summary.HasFailedMDMCommands,
		summary.HasPendingMDMCommands:
		status = model.StatusUnhealthy
	case !summary.IsCompliant, len(summary.MonitoredGroupMatches) > 0:
		status = model.StatusCaution
	}

	return status, summary
}

// withinThreshold reports whether the event happened and is newer than the
// threshold. A missing timestamp reads as "never happened" and fails the
// check.
func withinThreshold(now time.Time, event *time.Time, thresholdHours int) bool {
	if event == nil {
		return false
	}
	cutoff := now.Add(-time.Duration(thresholdHours) * time.Hour)
	return event.After(cutoff)
}

// hasStalePendingCommand reports whether any pending command was issued
// earlier than the threshold. A pending command younger than the threshold
// does not count: only stale ones indicate trouble.
func hasStalePendingCommand(now time.Time, pending []model.MDMCommand, thresholdHours int) bool {
	cutoff := now.Add(-time.Duration(thresholdHours) * time.Hour)
	for _, cmd := range pending {
		if cmd.DateIssued != nil && cmd.DateIssued.Before(cutoff) {
			return true
		}
	}
	return false
}

func containsGroup(memberships []string, name string) bool {
	for _, g := range memberships {
		if g == name {
			return true
		}
	}
	return false
}

// monitoredMatches returns the memberships that are also monitored groups,
// excluding the compliance group itself
func monitoredMatches(memberships, monitored []string, complianceGroup string) []string {
	matches := make([]string, 0)
	for _, g := range memberships {
		if g == complianceGroup {
			continue
		}
		if containsGroup(monitored, g) {
			matches = append(matches, g)
		}
	}
	return matches
}
