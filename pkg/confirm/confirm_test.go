package confirm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticConfirmers(t *testing.T) {
	ok, err := Always{}.Confirm(context.Background(), "Remove user?", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Never{}.Confirm(context.Background(), "Remove user?", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestForTerminal_Force(t *testing.T) {
	assert.IsType(t, Always{}, ForTerminal(true))
}

func TestForTerminal_NoTTY(t *testing.T) {
	// go test runs with stdin detached from a terminal
	c := ForTerminal(false)
	if _, ok := c.(Interactive); ok {
		t.Skip("stdin is a terminal")
	}
	assert.IsType(t, Never{}, c)
}
