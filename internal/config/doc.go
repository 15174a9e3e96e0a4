// Package config loads the vitals configuration.
//
// Configuration is resolved in three layers, later layers winning:
//
//  1. Built-in defaults (GetDefaultConfig), which point at GitHub as the
//     identity provider and at a local Prometheus on :9090.
//  2. An optional YAML file, ~/.config/vitals/config.yaml by default.
//  3. VITALS_* environment variables, for example VITALS_PROMETHEUS_URL or
//     VITALS_OAUTH_CALLBACK_PORT.
//
// A missing configuration file is not an error. A malformed one is, and so is
// a configuration that fails Validate.
//
// OAuth client credentials are intentionally not part of this package: they
// live in the credential vault (see internal/vault), with the client secret in
// the encrypted secret store.
package config
