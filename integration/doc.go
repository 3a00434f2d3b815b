//go:build integration

// Package integration provides integration tests for rangefetch.
//
// These tests require Docker and spin up a MinIO server using testcontainers.
// Run with: go test -tags=integration ./integration/...
package integration
