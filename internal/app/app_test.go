package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgermemory "github.com/Anjan854/filesure-devops-starter/internal/ledger/memory"
)

func TestNewWithDefaultsBuildsMemoryProviders(t *testing.T) {
	a, err := New(context.Background(), "")
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &ledgermemory.Ledger{}, a.Ledger)
	assert.NotNil(t, a.Sink)
	assert.Nil(t, a.Publisher, "publisher defaults to none")
	assert.NotNil(t, a.Hasher)
	assert.NotNil(t, a.Clock)
	assert.NotNil(t, a.IDGen)
	assert.NotNil(t, a.Logger)
}

func TestNewRejectsUnknownLedgerProvider(t *testing.T) {
	t.Setenv("FILESURE_LEDGER_PROVIDER", "mongodb")

	_, err := New(context.Background(), "")
	require.Error(t, err)
}

func TestNewRejectsUnknownStorageProvider(t *testing.T) {
	t.Setenv("FILESURE_STORAGE_PROVIDER", "s3")

	_, err := New(context.Background(), "")
	require.Error(t, err)
}

func TestNewMemoryPublisher(t *testing.T) {
	t.Setenv("FILESURE_PUBLISHER_PROVIDER", "memory")

	a, err := New(context.Background(), "")
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.Publisher)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), "")
	require.NoError(t, err)

	a.Close()
	a.Close()
}
