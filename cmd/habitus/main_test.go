package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/habitus/internal/testutil"
)

func Test_run(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	port, err := testutil.RandomPort()
	require.NoError(t, err, "failed to get random port to start server")
	listenAddr := fmt.Sprintf("localhost:%d", port)

	noenv := func(string) string { return "" }
	tmpwd := func() (string, error) { return t.TempDir(), nil }

	t.Run("stop with signal", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		t.Cleanup(cancel)

		err := run(ctx, noenv, tmpwd, []string{
			"--address", listenAddr,
			"--log-level", "debug",
			"--database", pg.DSN,
			"--secret-key", "secret",
		})

		require.NoError(t, err, "on correct stop should not return error")
	})

	t.Run("with redis throttling", func(t *testing.T) {
		rd := testutil.StartRedisContainer(t)
		t.Cleanup(rd.Terminate)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		t.Cleanup(cancel)

		err := run(ctx, noenv, tmpwd, []string{
			"--address", listenAddr,
			"--database", pg.DSN,
			"--secret-key", "secret",
			"--redis", rd.Addr,
		})

		require.NoError(t, err, "on correct stop should not return error")
	})

	t.Run("stop with srv error", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		t.Cleanup(cancel)

		// Try to run without secret key. Must fail
		err := run(ctx, noenv, tmpwd, []string{
			"--address", listenAddr,
			"--log-level", "debug",
			"--database", pg.DSN,
		})

		require.Error(t, err, "on incorrect stop should return error")
	})

	t.Run("unknown password hasher", func(t *testing.T) {
		err := run(t.Context(), noenv, tmpwd, []string{
			"--address", listenAddr,
			"--database", pg.DSN,
			"--secret-key", "secret",
			"--password-hasher", "md5",
		})

		require.Error(t, err)
	})
}
