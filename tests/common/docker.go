// Package common provides shared test infrastructure
package common

import (
	"os"
	"strings"
	"testing"
)

// DockerEnv enables container-backed tests when set to "true".
const DockerEnv = "SIMTRADE_TEST_DOCKER"

// RequireDocker skips the test unless container tests are enabled.
func RequireDocker(t *testing.T) {
	t.Helper()
	if !strings.EqualFold(os.Getenv(DockerEnv), "true") {
		t.Skipf("set %s=true to run container-backed tests", DockerEnv)
	}
}

// sanitizeName turns a test name into a database identifier.
func sanitizeName(name string) string {
	r := strings.NewReplacer("/", "_", " ", "_", "-", "_", ".", "_")
	return strings.ToLower(r.Replace(name))
}
