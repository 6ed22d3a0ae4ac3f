package send

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendCommand(t *testing.T) {
	cmd := NewSendCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "send <message>", cmd.Use)
	assert.Nil(t, cmd.Run)
	assert.NotNil(t, cmd.RunE)

	assert.NotNil(t, cmd.Flags().Lookup("channel"))
	assert.NotNil(t, cmd.Flags().Lookup("chat"))

	// Requires exactly one positional argument.
	assert.Error(t, cmd.Args(cmd, []string{}))
	assert.NoError(t, cmd.Args(cmd, []string{"hello"}))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}
