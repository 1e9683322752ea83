package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/and161185/fedicache/internal/identity"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("FEDICACHE_KDF_TIME", "1")
	t.Setenv("FEDICACHE_KDF_MEMORY_KIB", "8192")
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStats_CreatesAndReportsStore(t *testing.T) {
	root := t.TempDir()
	out, err := run(t, "--root", root, "--secret", "s3cret", "stats", "alice@example.social")
	require.NoError(t, err)

	var report statsReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Equal(t, identity.Label("alice@example.social"), report.Identity)
	require.Zero(t, report.Tables.Statuses)

	_, err = os.Stat(filepath.Join(report.Dir, "content.sqlite"))
	require.NoError(t, err)
}

func TestStats_EphemeralModeFromEnv(t *testing.T) {
	t.Setenv("FEDICACHE_MODE", "ephemeral")
	root := t.TempDir()
	out, err := run(t, "--root", root, "--secret", "", "stats", "alice")
	require.NoError(t, err)

	var report statsReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Equal(t, "ephemeral", report.Mode)
	require.Empty(t, report.Dir)

	_, err = os.Stat(filepath.Join(root, "identities"))
	require.True(t, os.IsNotExist(err))
}

func TestStats_RequiresSecret(t *testing.T) {
	_, err := run(t, "--root", t.TempDir(), "--secret", "", "stats", "alice")
	require.ErrorContains(t, err, "secret")
}

func TestGC_RemovesInactive(t *testing.T) {
	root := t.TempDir()
	_, err := run(t, "--root", root, "--secret", "s", "stats", "old")
	require.NoError(t, err)
	_, err = run(t, "--root", root, "--secret", "s", "stats", "current")
	require.NoError(t, err)

	out, err := run(t, "--root", root, "gc", "--active", "current")
	require.NoError(t, err)

	var report map[string][]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Equal(t, []string{identity.Label("old")}, report["removed"])
}

func TestDestroy(t *testing.T) {
	root := t.TempDir()
	_, err := run(t, "--root", root, "--secret", "s", "stats", "bye")
	require.NoError(t, err)

	out, err := run(t, "--root", root, "destroy", "bye")
	require.NoError(t, err)
	require.Contains(t, out, identity.Label("bye"))

	_, err = os.Stat(filepath.Join(root, "identities", identity.Label("bye")))
	require.True(t, os.IsNotExist(err))
}
