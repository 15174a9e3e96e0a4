package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"vitals/pkg/logging"
)

// Storage keys for the OAuth client credential.
const (
	ClientIDKey     = "vitals.github.clientId"
	ClientSecretKey = "vitals.github.clientSecret"
)

// ErrInvalidCredential is returned by Store for an empty client ID or secret.
var ErrInvalidCredential = errors.New("client ID and client secret are required")

// Credential is an OAuth client credential.
type Credential struct {
	ClientID     string
	ClientSecret string
}

// String never includes the secret.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{ClientID: %q, ClientSecret: [REDACTED]}", c.ClientID)
}

// Vault stores the OAuth client credential: the client ID in the general state
// store and the client secret in the secret store.
type Vault struct {
	mu      sync.Mutex
	state   Store
	secrets Store
}

// New creates a Vault over the given stores.
func New(state, secrets Store) *Vault {
	return &Vault{state: state, secrets: secrets}
}

// Store saves cred, replacing any previous credential. If the second write
// fails the first is rolled back, so a reader never observes the new secret
// paired with the old client ID.
func (v *Vault) Store(ctx context.Context, cred Credential) error {
	cred.ClientID = strings.TrimSpace(cred.ClientID)
	cred.ClientSecret = strings.TrimSpace(cred.ClientSecret)
	if cred.ClientID == "" || cred.ClientSecret == "" {
		return ErrInvalidCredential
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prevSecret, hadSecret, err := v.secrets.Get(ctx, ClientSecretKey)
	if err != nil {
		return fmt.Errorf("failed to read current client secret: %w", err)
	}

	if err := v.secrets.Set(ctx, ClientSecretKey, cred.ClientSecret); err != nil {
		return fmt.Errorf("failed to store client secret: %w", err)
	}

	if err := v.state.Set(ctx, ClientIDKey, cred.ClientID); err != nil {
		var rollbackErr error
		if hadSecret {
			rollbackErr = v.secrets.Set(ctx, ClientSecretKey, prevSecret)
		} else {
			rollbackErr = v.secrets.Delete(ctx, ClientSecretKey)
		}
		if rollbackErr != nil {
			logging.Error("Vault", rollbackErr, "Failed to roll back client secret after client ID write failure")
		}
		return fmt.Errorf("failed to store client ID: %w", err)
	}

	logging.Info("Vault", "Stored OAuth client credential for client %s", cred.ClientID)
	return nil
}

// Get returns the stored credential. found is false when either half is
// missing; a partial credential is treated as no credential.
func (v *Vault) Get(ctx context.Context) (cred Credential, found bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	clientID, idFound, err := v.state.Get(ctx, ClientIDKey)
	if err != nil {
		return Credential{}, false, fmt.Errorf("failed to read client ID: %w", err)
	}
	secret, secretFound, err := v.secrets.Get(ctx, ClientSecretKey)
	if err != nil {
		return Credential{}, false, fmt.Errorf("failed to read client secret: %w", err)
	}

	if !idFound || !secretFound || clientID == "" || secret == "" {
		return Credential{}, false, nil
	}
	return Credential{ClientID: clientID, ClientSecret: secret}, true, nil
}

// Clear removes both halves of the credential. Clearing an absent credential succeeds.
func (v *Vault) Clear(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	err := errors.Join(
		v.state.Delete(ctx, ClientIDKey),
		v.secrets.Delete(ctx, ClientSecretKey),
	)
	if err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}

	logging.Info("Vault", "Cleared OAuth client credential")
	return nil
}
