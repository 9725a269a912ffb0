//go:build integration

// Package containers starts throwaway databases for integration tests. Tests are skipped
// when no Docker daemon is reachable.
package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// dockerAvailable reports whether the testcontainers Docker provider can reach a daemon.
func dockerAvailable(ctx context.Context) bool {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

// skipWithoutDocker skips t when Docker is unavailable.
func skipWithoutDocker(ctx context.Context, t *testing.T) {
	t.Helper()
	if !dockerAvailable(ctx) {
		t.Skip("Docker is not available - skipping integration test")
	}
}
