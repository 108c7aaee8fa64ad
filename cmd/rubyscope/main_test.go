package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeWorkspace(t *testing.T) string {
	t.Helper()
	workspace := t.TempDir()
	dir := filepath.Join(workspace, "lib")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	source := "class User\n  def greet\n  end\nend\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.rb"), []byte(source), 0o644))
	return workspace
}

func TestIndexCommandSummary(t *testing.T) {
	workspace := writeWorkspace(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"index", workspace})
	require.NoError(t, cmd.Execute())

	require.Contains(t, out.String(), "class")
	require.Contains(t, out.String(), "method")
}

func TestIndexCommandJSON(t *testing.T) {
	workspace := writeWorkspace(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"index", "--json", workspace})
	require.NoError(t, cmd.Execute())

	dec := json.NewDecoder(&out)
	seen := map[string]string{}
	for dec.More() {
		var rec declarationRecord
		require.NoError(t, dec.Decode(&rec))
		seen[rec.Name] = rec.Kind
	}
	require.Equal(t, "class", seen["User"])
	require.Equal(t, "method", seen["greet"])
}
