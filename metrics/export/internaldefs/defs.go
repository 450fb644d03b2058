package internaldefs

import (
	authvault "github.com/vportela/authvault"
)

// CounterDef binds a counter ID to its exported name and help text.
type CounterDef struct {
	ID   authvault.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: authvault.MetricIngestSuccess, Name: "authvault_ingest_success_total", Help: "Messages materialized into new notifications."},
	{ID: authvault.MetricIngestDuplicate, Name: "authvault_ingest_duplicate_total", Help: "Redelivered message IDs short-circuited by dedup."},
	{ID: authvault.MetricIngestInvalid, Name: "authvault_ingest_invalid_total", Help: "Payloads rejected as invalid notifications."},
	{ID: authvault.MetricDecisionApproved, Name: "authvault_decision_approved_total", Help: "Approvals accepted by the verifier."},
	{ID: authvault.MetricDecisionDenied, Name: "authvault_decision_denied_total", Help: "Submitted denials."},
	{ID: authvault.MetricDecisionFailed, Name: "authvault_decision_failed_total", Help: "Decisions that failed at the verifier and stayed pending."},
	{ID: authvault.MetricDecisionReplayed, Name: "authvault_decision_replayed_total", Help: "Decisions short-circuited by a terminal state."},
	{ID: authvault.MetricEnrollSuccess, Name: "authvault_enroll_success_total", Help: "Successful mechanism enrollments."},
	{ID: authvault.MetricEnrollDuplicate, Name: "authvault_enroll_duplicate_total", Help: "Enrollments rejected for a conflicting mechanism."},
	{ID: authvault.MetricEnrollPolicyRejected, Name: "authvault_enroll_policy_rejected_total", Help: "Enrollments rejected by policy."},
	{ID: authvault.MetricTokenRegistered, Name: "authvault_token_registered_total", Help: "Successful device token registrations."},
	{ID: authvault.MetricTokenRegistrationFailed, Name: "authvault_token_registration_failed_total", Help: "Failed device token registrations."},
	{ID: authvault.MetricStorageFailure, Name: "authvault_storage_failure_total", Help: "Key-value store operations that failed."},
	{ID: authvault.MetricRecordCorrupt, Name: "authvault_record_corrupt_total", Help: "Stored records skipped as undeserializable."},
	{ID: authvault.MetricNotificationEvicted, Name: "authvault_notification_evicted_total", Help: "Notifications evicted by the history cap."},
}
