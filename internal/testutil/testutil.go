// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"testing"
)

// PostgresConnString returns the test database connection string, skipping
// the test when TEST_DATABASE is not set.
func PostgresConnString(t testing.TB) string {
	t.Helper()
	conn := os.Getenv("TEST_DATABASE")
	if conn == "" {
		t.Skip("TEST_DATABASE not set; skipping PostgreSQL-backed test")
	}
	return conn
}
