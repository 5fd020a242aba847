package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxygencrate/internal/config"
)

func writeConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Import.Root = filepath.Join(dir, "sdcard")
	cfg.Storage.Path = filepath.Join(dir, "data", "imports.db")
	cfg.Logging.Output = "discard"
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path, cfg
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestImportAndHistory(t *testing.T) {
	cfgPath, cfg := writeConfig(t)
	src := t.TempDir()
	a := filepath.Join(src, "a.txt")
	b := filepath.Join(src, "b.md")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("# beta"), 0o644))

	out, _, err := execute(t, "--config", cfgPath, "import", a, b)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, filepath.Join(cfg.ImportDir(), "a.txt"), lines[0])
	assert.Equal(t, filepath.Join(cfg.ImportDir(), "b.md"), lines[1])

	data, err := os.ReadFile(lines[1])
	require.NoError(t, err)
	assert.Equal(t, "# beta", string(data))

	out, _, err = execute(t, "--config", cfgPath, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "OUTCOME")
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "b.md")

	out, _, err = execute(t, "--config", cfgPath, "history", "--json", "--outcome", "imported", "-n", "1")
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "imported", entries[0]["Outcome"])

	out, _, err = execute(t, "--config", cfgPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Requests:  2")
	assert.Contains(t, out, "Imported:  11 bytes")
}

func TestImportMissingFile(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	_, stderr, err := execute(t, "--config", cfgPath, "import", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, stderr, "not imported")

	out, _, err := execute(t, "--config", cfgPath, "history", "--outcome", "failed")
	require.NoError(t, err)
	assert.Contains(t, out, "failed")
}

func TestImportRootOverride(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "x.bin")
	require.NoError(t, os.WriteFile(src, []byte{1, 2, 3}, 0o644))

	out, _, err := execute(t, "--config", cfgPath, "--root", root, "import", src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Beisent", "OxygenCrate", "x.bin"), strings.TrimSpace(out))
}

func TestHistoryWithoutLedger(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, _, err := execute(t, "--config", cfgPath, "history")
	assert.ErrorContains(t, err, "no import ledger")
}

func TestConfigCommands(t *testing.T) {
	cfgPath, cfg := writeConfig(t)

	out, _, err := execute(t, "--config", cfgPath, "config", "show", "--format", "json")
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, cfg.Import.Root, shown["import"].(map[string]any)["root"])

	out, _, err = execute(t, "config", "validate", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[import]\nrequest_code = -4\n"), 0o644))
	_, _, err = execute(t, "config", "validate", bad)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	typo := filepath.Join(t.TempDir(), "typo.toml")
	require.NoError(t, os.WriteFile(typo, []byte("[import]\ndirectroy = \"Elsewhere\"\n"), 0o644))
	_, _, err = execute(t, "config", "validate", typo)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	_, _, err = execute(t, "--config", typo, "import", typo)
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "commands must refuse a config the validator rejects")

	fresh := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = execute(t, "--config", fresh, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "created")
	out, _, err = execute(t, "--config", fresh, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, _, err = execute(t, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"$schema"`)
}
