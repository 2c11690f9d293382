package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"postwatch/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	return out.String(), err
}

func writeStateFile(t *testing.T, path string, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestStateImportAndShow(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "twitter_users.json")
	dbPath := filepath.Join(dir, "db.sqlite")

	writeStateFile(t, statePath, `{"users":["alice","bob"],"last_ids":{"alice":"100"}}`)

	t.Setenv("STATE_PATH", statePath)
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("STORE_DRIVER", "sqlite")

	out, err := execute(t, "state", "import")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 accounts and 1 cursors")

	out, err = execute(t, "state", "show")
	require.NoError(t, err)

	var state domain.WatchState
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, []string{"alice", "bob"}, state.Users)
	assert.Equal(t, map[string]string{"alice": "100"}, state.LastIDs)
}

func TestStateImportRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "twitter_users.json")

	writeStateFile(t, statePath, `{"users":["alice"],"last_ids":{}}`)

	t.Setenv("STATE_PATH", statePath)
	t.Setenv("DB_PATH", filepath.Join(dir, "db.sqlite"))

	_, err := execute(t, "state", "import")
	require.NoError(t, err)

	writeStateFile(t, statePath, `{"users":["carol"],"last_ids":{}}`)

	_, err = execute(t, "state", "import")
	require.Error(t, err)

	_, err = execute(t, "state", "import", "--force")
	require.NoError(t, err)
}

func TestStateShowJSONMissingFile(t *testing.T) {
	t.Setenv("STATE_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("STORE_DRIVER", "json")

	out, err := execute(t, "state", "show")
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":[],"last_ids":{}}`, out)
}

func TestStateShowCorruptFile(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	writeStateFile(t, statePath, `{"users":`)

	t.Setenv("STATE_PATH", statePath)
	t.Setenv("STORE_DRIVER", "json")

	_, err := execute(t, "state", "show")

	var corrupt *domain.StorageCorruptError
	require.ErrorAs(t, err, &corrupt)
}
