package db

import (
	"context"
	"errors"
	"testing"
)

func TestRunChecks_AllHealthy(t *testing.T) {
	checks := []Check{
		{Name: "redis", Ping: func(context.Context) error { return nil }},
		{Name: "storage", Ping: func(context.Context) error { return nil }},
	}

	results, healthy := RunChecks(context.Background(), checks)
	if !healthy {
		t.Fatal("expected healthy")
	}
	if results["redis"] != "ok" || results["storage"] != "ok" {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestRunChecks_OneFailing(t *testing.T) {
	checks := []Check{
		{Name: "redis", Ping: func(context.Context) error { return nil }},
		{Name: "storage", Ping: func(context.Context) error { return errors.New("bucket missing") }},
	}

	results, healthy := RunChecks(context.Background(), checks)
	if healthy {
		t.Fatal("expected unhealthy when a check fails")
	}
	if results["storage"] != "bucket missing" {
		t.Errorf("expected failure message, got %q", results["storage"])
	}
	if results["redis"] != "ok" {
		t.Errorf("expected redis ok, got %q", results["redis"])
	}
}

func TestPoolStats_UnhealthyState(t *testing.T) {
	stats := &PoolStats{MaxConns: 20, AcquireDuration: "0s"}
	if stats.Healthy {
		t.Error("expected zero-value stats to be unhealthy")
	}
}
