//go:build integration
// +build integration

package integration

import (
	"context"
	"os/exec"
	"testing"
)

// restartMockContainer bounces the compose service; the store is in memory,
// so uploads must be gone afterwards.
func restartMockContainer(t *testing.T, ctx context.Context) {
	t.Helper()

	svc := getenv("E2E_COMPOSE_SERVICE", "templatemock")
	cmd := exec.CommandContext(ctx, "docker", "compose", "restart", svc)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("docker compose restart %s failed: %v\n%s", svc, err, string(out))
	}
}
