// Package logging provides the structured, subsystem-tagged logging used
// throughout vitals.
//
// The package is a thin layer over log/slog. Every entry carries a subsystem
// identifier so that output from the vault, the OAuth flow, the session, the
// gate and the metrics client can be told apart and filtered.
//
// # Modes
//
//   - CLI mode writes text records to an io.Writer (stderr by default).
//   - Channel mode delivers LogEntry values on a buffered channel so that an
//     embedding host (for example an editor output panel) can render them.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Session", "Signed in as %s", user.Login)
//	logging.Warn("Metrics", "Attempt %d failed, retrying in %s", n, delay)
//	logging.Error("Vault", err, "Failed to store credential")
//
// # Subsystems
//
//   - Vault: credential and key/value storage
//   - OAuth: authorization flow and loopback callback server
//   - Session: access token, profile cache and completion flag
//   - Gate: authentication gating policy
//   - Metrics: monitoring backend client
//   - Telemetry: backend event sink
//   - Dashboard: message dispatch
//
// # Audit Logging
//
// Security relevant transitions (sign-in, sign-out, CSRF rejections) are logged
// through Audit with an [AUDIT] prefix:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:  "sign_in",
//	    Outcome: "success",
//	    Subject: user.Login,
//	})
//
// Secret material (client secrets, access tokens, CSRF state, authorization
// codes) must never be passed to any logging function.
package logging
