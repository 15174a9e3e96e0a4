// Package vault stores OAuth client credentials and session secrets.
//
// Two stores back the vault:
//
//   - a general key/value store for non-sensitive state (the OAuth client ID,
//     the cached user profile, the auth completion flag);
//   - a secret store with at-rest encryption for the client secret and the
//     access token.
//
// Both implement Store. BadgerStore persists to disk through badgerhold; when
// opened with an encryption key the underlying badger database encrypts every
// value at rest. MemoryStore is an in-process implementation for tests and
// for hosts that supply their own persistence.
//
// Vault layers the Credential contract on top: Get only returns a credential
// when both halves are present, and Clear is idempotent.
package vault
