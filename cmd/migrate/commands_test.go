package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMigrate(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestMigrateCommands(t *testing.T) {
	t.Setenv("GIN_MODE", "test")
	dsn := filepath.Join(t.TempDir(), "cli.db")
	flags := []string{"--driver", "sqlite", "--dsn", dsn}

	out := runMigrate(t, append([]string{"status"}, flags...)...)
	assert.Contains(t, out, "create_users")
	assert.Contains(t, out, "Pending")
	assert.NotContains(t, out, "Applied")

	out = runMigrate(t, append([]string{"up"}, flags...)...)
	assert.Contains(t, out, "Applied 3 migration(s).")

	out = runMigrate(t, append([]string{"up"}, flags...)...)
	assert.Contains(t, out, "No pending migrations.")

	out = runMigrate(t, append([]string{"seed"}, flags...)...)
	assert.Contains(t, out, "Seeded 2 users, 2 posts, 1 comments")

	out = runMigrate(t, append([]string{"seed"}, flags...)...)
	assert.Contains(t, out, "skipping seed")

	out = runMigrate(t, append([]string{"down"}, flags...)...)
	assert.Contains(t, out, "create_comments")
}
