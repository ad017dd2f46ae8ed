package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBench_InMemory(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("POPCACHE_METRICS_NAMESPACE", "popcache_test")

	err := run([]string{"popcache", "--log-level", "error", "bench",
		"--duration", "200ms", "--refresh-every", "50ms",
		"--workers", "4", "--subjects", "100", "--items", "50",
		"--seed", "1"})
	require.NoError(t, err)
}

// Each run serves metrics on its own mux, so repeated runs in one process
// do not collide on "/metrics".
func TestBench_MetricsTwice(t *testing.T) {
	chdir(t, t.TempDir())

	for i := 0; i < 2; i++ {
		err := run([]string{"popcache", "--log-level", "error", "bench",
			"--http", "127.0.0.1:0", "--duration", "50ms", "--refresh-every", "20ms",
			"--workers", "2", "--subjects", "10", "--items", "10", "--seed", "1"})
		require.NoError(t, err, "run %d", i)
	}
}

func TestBench_RejectsBadMix(t *testing.T) {
	chdir(t, t.TempDir())

	err := run([]string{"popcache", "bench", "--reads", "90", "--top", "20"})
	assert.ErrorContains(t, err, "reads+top")

	err = run([]string{"popcache", "bench", "--backend", "etcd", "--duration", "1ms"})
	assert.ErrorContains(t, err, "unknown backend")
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "redis://:xxxxx@cache:6379/0", redactURL("redis://:secret@cache:6379/0"))
	assert.Equal(t, "redis://localhost:6379/0", redactURL("redis://localhost:6379/0"))
}

// chdir changes the working directory for the test and restores it on cleanup
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(old)) })
}
