package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anjan854/filesure-devops-starter/internal/app"
	"github.com/Anjan854/filesure-devops-starter/internal/filesure"
)

// withTestApp swaps the application factory for one returning in-memory
// providers and restores it when the test finishes.
func withTestApp(t *testing.T) *app.App {
	t.Helper()

	testApp, err := app.New(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(testApp.Close)

	orig := newApp
	newApp = func(context.Context) (*app.App, error) { return testApp, nil }
	t.Cleanup(func() { newApp = orig })

	return testApp
}

func executeCommand(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestWorkCommandNoPendingJobs(t *testing.T) {
	withTestApp(t)

	require.NoError(t, executeCommand("work"))
}

func TestWorkCommandProcessesPendingJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("document body"))
	}))
	defer srv.Close()

	testApp := withTestApp(t)
	job, err := testApp.Ledger.Create(context.Background(), srv.URL)
	require.NoError(t, err)

	require.NoError(t, executeCommand("work"))

	got, err := testApp.Ledger.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, filesure.StateSucceeded, got.State)
	assert.NotEmpty(t, got.OutputRef)
	assert.Equal(t, 1, got.AttemptCount)
}

func TestWorkCommandExplicitJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("document body"))
	}))
	defer srv.Close()

	testApp := withTestApp(t)
	job, err := testApp.Ledger.Create(context.Background(), srv.URL)
	require.NoError(t, err)

	require.NoError(t, executeCommand("work", "--job-id", job.ID))

	got, err := testApp.Ledger.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, filesure.StateSucceeded, got.State)
}

func TestWorkCommandFailedFetchExitsNonZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	testApp := withTestApp(t)
	job, err := testApp.Ledger.Create(context.Background(), srv.URL)
	require.NoError(t, err)

	require.Error(t, executeCommand("work", "--job-id", job.ID))

	got, err := testApp.Ledger.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, filesure.StateFailed, got.State)
	assert.Contains(t, got.ErrorText, "FetchFailure")
}

func TestWorkCommandUnknownJobIsNoOp(t *testing.T) {
	withTestApp(t)

	require.NoError(t, executeCommand("work", "--job-id", "does-not-exist"))
}
