package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{
		{"migrate"},
		{"export", "analytics"},
		{"export", "payments"},
		{"packages", "reset"},
		{"admin", "create"},
		{"jobs", "dlq"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestExportRequiresClient(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"export", "analytics"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--client is required")

	root = newRootCommand()
	root.SetArgs([]string{"export", "payments", "--client", "nope"})
	err = root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --client")
}

func TestAdminCreateValidatesInput(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"admin", "create", "--email", "ops@agency.test", "--password", "short"})
	err := root.Execute()
	require.Error(t, err)

	root = newRootCommand()
	root.SetArgs([]string{"admin", "create", "--email", "ops@agency.test", "--password", "long-enough", "--role", "client"})
	err = root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--role must be")
}
