package server

import (
	"testing"
	"time"
)

func TestIsDue(t *testing.T) {
	t.Parallel()
	recent := time.Now().Add(-10 * time.Minute)
	old := time.Now().Add(-25 * time.Hour)

	if isDue("", nil) {
		t.Fatalf("empty spec must never be due")
	}
	if !isDue("@hourly", nil) {
		t.Fatalf("@hourly with no prior run must be due")
	}
	if isDue("@hourly", &recent) {
		t.Fatalf("@hourly ran 10 minutes ago, must not be due")
	}
	if !isDue("@daily", &old) {
		t.Fatalf("@daily ran 25 hours ago, must be due")
	}
	if isDue("@daily", &recent) {
		t.Fatalf("@daily ran 10 minutes ago, must not be due")
	}
	// Every-minute cron expression with an old last run.
	if !isDue("* * * * *", &recent) {
		t.Fatalf("every-minute cron must be due after 10 minutes")
	}
}
