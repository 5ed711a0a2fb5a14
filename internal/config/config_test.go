package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func initFresh(t *testing.T) {
	t.Helper()
	ResetForTesting()
	t.Cleanup(ResetForTesting)
	require.NoError(t, Initialize())
}

func TestDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	initFresh(t)

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, s.Jira.APIVersion)
	assert.Equal(t, 30*time.Second, s.Jira.Timeout)
	assert.Equal(t, 50, s.Fetch.PageSize)
	assert.Equal(t, 1, s.Fetch.Concurrency)
	assert.Equal(t, "include.json", s.Tags.IncludePath)
	assert.Equal(t, "", s.Tags.ExcludePath, "missing default exclude file is dropped")
	assert.Equal(t, "dolt-server", s.Store.Backend)
	assert.Equal(t, "127.0.0.1", s.Store.Host)
	assert.Equal(t, 3307, s.Store.Port)
	assert.Equal(t, "root", s.Store.User)
	assert.Equal(t, "issuetag", s.Store.Database)
	assert.Equal(t, filepath.Join(".issuetag", "db"), s.Store.Path)
	assert.False(t, s.Store.BatchTransaction)
	assert.Equal(t, 30*time.Second, s.Store.ConnectTimeout)
	assert.Empty(t, ConfigFileUsed())

	assert.Error(t, s.RequireJira())
}

func TestDefaultExcludeKeptWhenPresent(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exclude.json"), []byte(`{}`), 0o600))
	initFresh(t)

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "exclude.json", s.Tags.ExcludePath)
}

func TestConfigFileFoundFromSubdirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, DirName), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, DirName, "config.yaml"), []byte(`
jira:
  url: https://issues.example.org
  query: project = PROJ
  api_version: 3
fetch:
  page_size: 25
store:
  backend: SQLite
  path: data/issues.db
`), 0o600))
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	chdir(t, sub)
	initFresh(t)

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://issues.example.org", s.Jira.URL)
	assert.Equal(t, "project = PROJ", s.Jira.Query)
	assert.Equal(t, 3, s.Jira.APIVersion)
	assert.Equal(t, 25, s.Fetch.PageSize)
	assert.Equal(t, "sqlite", s.Store.Backend)
	assert.Equal(t, "data/issues.db", s.Store.Path)
	assert.NoError(t, s.RequireJira())
	assert.Contains(t, ConfigFileUsed(), filepath.Join(DirName, "config.yaml"))
}

func TestEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ISSUETAG_FETCH_PAGE_SIZE", "7")
	t.Setenv("ISSUETAG_STORE_BATCH_TRANSACTION", "true")
	t.Setenv("JIRA_USERNAME", "me@example.org")
	t.Setenv("JIRA_API_TOKEN", "secret")
	initFresh(t)

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, s.Fetch.PageSize)
	assert.True(t, s.Store.BatchTransaction)
	assert.Equal(t, "me@example.org", s.Jira.Username)
	assert.Equal(t, "secret", s.Jira.APIToken)
}

func TestFlagsTakePrecedence(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ISSUETAG_FETCH_PAGE_SIZE", "7")
	initFresh(t)

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.Int("page-size", 50, "")
	require.NoError(t, BindFlag("fetch.page_size", fs.Lookup("page-size")))
	require.NoError(t, fs.Parse([]string{"--page-size", "12"}))

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, s.Fetch.PageSize)

	assert.Error(t, BindFlag("fetch.page_size", nil))
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		env, value, want string
	}{
		{"ISSUETAG_JIRA_API_VERSION", "4", "jira.api_version"},
		{"ISSUETAG_FETCH_PAGE_SIZE", "0", "fetch.page_size"},
		{"ISSUETAG_JIRA_TIMEOUT", "soon", "jira.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tt.env, tt.value)
			initFresh(t)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBeforeInitialize(t *testing.T) {
	ResetForTesting()
	_, err := Load()
	assert.Error(t, err)
	assert.Equal(t, "", GetString("jira.url"))
}
