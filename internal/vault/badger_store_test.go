package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timshannon/badgerhold/v4"
)

func TestBadgerStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBadgerStore(t.TempDir(), nil)
	require.NoError(t, err)
	defer store.Close()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k", "v1"))
	require.NoError(t, store.Set(ctx, "k", "v2"))

	v, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", v)

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"), "deleting a missing key is a no-op")

	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBadgerStore_EncryptedPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key, err := LoadOrCreateKey(filepath.Join(t.TempDir(), "secret.key"))
	require.NoError(t, err)

	store, err := OpenBadgerStore(dir, key)
	require.NoError(t, err)
	assert.True(t, store.Encrypted())
	require.NoError(t, store.Set(ctx, ClientSecretKey, "s3cret"))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "close is idempotent")

	_, _, err = store.Get(ctx, ClientSecretKey)
	assert.ErrorIs(t, err, ErrStoreClosed)

	reopened, err := OpenBadgerStore(dir, key)
	require.NoError(t, err)
	defer reopened.Close()

	v, found, err := reopened.Get(ctx, ClientSecretKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "s3cret", v)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secret.key")

	key, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, key, secretKeyBytes)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	require.NoError(t, os.WriteFile(path, []byte("not-hex"), 0o600))
	_, err = LoadOrCreateKey(path)
	assert.Error(t, err)
}

func TestVault_WithBadgerStores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stores, err := OpenStores(filepath.Join(dir, "data"), filepath.Join(dir, "secret.key"))
	require.NoError(t, err)
	defer stores.Close()

	v := New(stores.State, stores.Secrets)
	require.NoError(t, v.Store(ctx, Credential{ClientID: "id", ClientSecret: "secret"}))

	cred, found, err := v.Get(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "id", cred.ClientID)

	require.NoError(t, v.Clear(ctx))
	require.NoError(t, v.Clear(ctx))
	_, found, err = v.Get(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStores_SharedAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dataDir, keyFile := filepath.Join(dir, "data"), filepath.Join(dir, "secret.key")

	first, err := OpenStores(dataDir, keyFile)
	require.NoError(t, err)
	defer first.Close()

	second, err := OpenStores(dataDir, keyFile)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Secrets.Set(ctx, "token", "gho_shared"))

	v, found, err := second.Secrets.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "gho_shared", v)
}

func TestBadgerStore_HeldLockReportsBusy(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBadgerStore(t.TempDir(), nil)
	require.NoError(t, err)
	defer store.Close()
	store.lockWait = 100 * time.Millisecond

	held, err := badgerhold.Open(store.options)
	require.NoError(t, err)

	_, _, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreBusy)
	assert.Contains(t, err.Error(), "another vitals process")

	require.NoError(t, held.Close())
	require.NoError(t, store.Set(ctx, "k", "v"))
}
