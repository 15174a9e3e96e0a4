// Package metrics is a small client for a Prometheus-compatible HTTP API.
//
// Every call goes through one retry policy: each attempt is bounded by its
// own timeout, transient failures (transport errors, timeouts, 5xx) are
// retried with exponential backoff up to the attempt budget, and everything
// else (4xx, an "error" envelope, a malformed body) is returned after the
// first attempt. The envelope's status field is authoritative even on 200.
package metrics
