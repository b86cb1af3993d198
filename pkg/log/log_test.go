package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesConsoleAndFile(t *testing.T) {
	defer ResetSecrets()

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "bootstrap-controller.log")

	closer, err := Init(Config{Level: InfoLevel, Output: &console, FilePath: path})
	require.NoError(t, err)

	Info("probing host")
	Success("stack.sh finished")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, console.String(), "probing host")
	assert.Contains(t, string(data), "probing host")
	assert.Contains(t, string(data), "outcome=success")
	assert.Contains(t, string(data), "INF")
}

func TestInit_FiltersBelowLevel(t *testing.T) {
	var console bytes.Buffer
	_, err := Init(Config{Level: WarnLevel, Output: &console})
	require.NoError(t, err)
	defer Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}})

	Info("hidden")
	Warn("shown")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestRedaction(t *testing.T) {
	defer ResetSecrets()

	var console bytes.Buffer
	_, err := Init(Config{Level: InfoLevel, JSONOutput: true, Output: &console})
	require.NoError(t, err)

	RegisterSecret("s3cr3t-pass")
	RegisterSecret("")

	Logger.Info().Str("cmd", "mysql -ps3cr3t-pass").Msg("ADMIN_PASSWORD=s3cr3t-pass")

	out := console.String()
	assert.NotContains(t, out, "s3cr3t-pass")
	assert.Equal(t, 2, strings.Count(out, Mask))
	assert.Equal(t, "x="+Mask, Redact("x=s3cr3t-pass"))
}

func TestRedactingWriter(t *testing.T) {
	defer ResetSecrets()
	RegisterSecret("hunter2")

	var buf bytes.Buffer
	w := NewRedactingWriter(&buf)
	n, err := w.Write([]byte("password hunter2\n"))
	require.NoError(t, err)
	assert.Equal(t, len("password hunter2\n"), n)
	assert.Equal(t, "password ******\n", buf.String())
}

func TestRedaction_EscapedSecret(t *testing.T) {
	const secret = `pa"ss\word`

	tests := []struct {
		name string
		json bool
	}{
		{name: "json", json: true},
		{name: "console", json: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer ResetSecrets()

			var console bytes.Buffer
			_, err := Init(Config{Level: InfoLevel, JSONOutput: tt.json, Output: &console})
			require.NoError(t, err)
			RegisterSecret(secret)

			Logger.Info().Str("cmd", "mysql -p"+secret).Msg("connecting")

			out := console.String()
			assert.NotContains(t, out, secret)
			assert.NotContains(t, out, `pa\"ss\\word`)
			assert.NotContains(t, out, "word")
			assert.Contains(t, out, Mask)
		})
	}
}

func TestJSONEscape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "plain", want: "plain"},
		{in: `a"b`, want: `a\"b`},
		{in: `a\b`, want: `a\\b`},
		{in: "tab\there", want: `tab\there`},
		{in: "bell\x07", want: `bell\u0007`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, jsonEscape(tt.in), tt.in)
	}
}
