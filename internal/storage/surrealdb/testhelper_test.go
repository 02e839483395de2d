package surrealdb

import (
	"context"
	"testing"

	"github.com/bobmcallan/simtrade/internal/common"
	tcommon "github.com/bobmcallan/simtrade/tests/common"
)

// testManager starts the shared SurrealDB container and returns a Manager
// bound to a database unique to the test.
func testManager(t *testing.T) *Manager {
	t.Helper()
	tcommon.RequireDocker(t)

	db := tcommon.StartSurrealDB(t).Connect(t)
	m, err := newManager(context.Background(), db, testLogger())
	if err != nil {
		t.Fatalf("define tables: %v", err)
	}
	return m
}

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
