package logging

import (
	"fmt"
	"strings"
)

// AuditEvent describes a security relevant state transition.
type AuditEvent struct {
	// Action is what happened, e.g. "sign_in", "sign_out", "csrf_rejected".
	Action string
	// Outcome is "success", "failure" or "rejected".
	Outcome string
	// Subject identifies the user involved, if known. Never a token.
	Subject string
	// Details is optional free text (no secrets).
	Details string
}

// Audit logs a security audit event at INFO level with an [AUDIT] prefix.
func Audit(event AuditEvent) {
	Info("Audit", "%s", formatAudit(event))
}

func formatAudit(event AuditEvent) string {
	parts := []string{"[AUDIT]", "action=" + event.Action, "outcome=" + event.Outcome}
	if event.Subject != "" {
		parts = append(parts, "subject="+event.Subject)
	}
	if event.Details != "" {
		parts = append(parts, fmt.Sprintf("details=%q", event.Details))
	}
	return strings.Join(parts, " ")
}
