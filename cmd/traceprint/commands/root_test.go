package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommandRegistersSubcommands(t *testing.T) {
	cmd := NewCommand()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["analyze"])
	assert.True(t, names["stats"])
	assert.True(t, names["version"])
}

func TestRootFlags(t *testing.T) {
	cmd := NewCommand()
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log.level"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("storage.path"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))
}

func TestVersionCommandRuns(t *testing.T) {
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"version", "--short"})

	require.NoError(t, cmd.Execute())
}

func TestAnalyzeRequiresCaptureArg(t *testing.T) {
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"analyze"})

	assert.Error(t, cmd.Execute())
}
