// Package app wires the vitals components together.
//
// NewApplication performs the bootstrap sequence:
//
//  1. Configure logging from the --debug flag and the configured log level.
//  2. Load the layered configuration (defaults, config.yaml, VITALS_* env).
//  3. Open the persistent stores and build the vault, the sign-in flow, the
//     session, the auth gate, the metrics client, the telemetry client and
//     the dashboard dispatcher (InitializeServices).
//
// Commands reach the components through Application.Services. The serve
// command additionally runs the dashboard bridge with Application.Serve,
// which admits the activation through the gate before listening.
//
// Close flushes pending telemetry and releases the stores; it must be called
// once the command is done.
package app
