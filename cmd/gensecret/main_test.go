package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_run(t *testing.T) {
	t.Run("default length", func(t *testing.T) {
		var out bytes.Buffer

		err := run(nil, &out)

		require.NoError(t, err)
		require.Len(t, strings.TrimSpace(out.String()), 64, "32 bytes in hex")
	})

	t.Run("env line", func(t *testing.T) {
		var out bytes.Buffer

		err := run([]string{"--env", "-n", "16"}, &out)

		require.NoError(t, err)
		line := strings.TrimSpace(out.String())
		require.True(t, strings.HasPrefix(line, "SECRET_KEY="))
		require.Len(t, strings.TrimPrefix(line, "SECRET_KEY="), 32)
	})

	t.Run("too short", func(t *testing.T) {
		err := run([]string{"-n", "8"}, &bytes.Buffer{})

		require.Error(t, err)
	})
}
