package health

import (
	"context"
	"strings"
	"testing"
	"time"

	"db-auditor/internal/alerts"
	"db-auditor/internal/config"
	"db-auditor/internal/discovery"
)

func TestIsJobOverdue(t *testing.T) {
	now := time.Now()
	// threshold for 60min expected with 50% buffer is 90min
	if !isJobOverdueAt(now, now.Add(-100*time.Minute), 60, 50) {
		t.Fatalf("100min late on a 60min interval should be overdue")
	}
	if isJobOverdueAt(now, now.Add(-50*time.Minute), 60, 50) {
		t.Fatalf("50min on a 60min interval should not be overdue")
	}
	if isJobOverdueAt(now, now.Add(-89*time.Minute), 60, 50) {
		t.Fatalf("inside the jitter buffer should not be overdue")
	}
}

func TestCheckJobStatus(t *testing.T) {
	now := time.Now()
	sixty := 60

	// failure takes precedence over staleness
	if got := checkJobStatusAt(now, "failed", now.Add(-5*time.Minute), &sixty, 50); got != StatusFailed {
		t.Fatalf("fresh failure: got %s", got)
	}
	if got := checkJobStatusAt(now, "failed", now.Add(-300*time.Minute), &sixty, 50); got != StatusFailed {
		t.Fatalf("stale failure must stay failed, got %s", got)
	}
	if got := checkJobStatusAt(now, "succeeded", now.Add(-120*time.Minute), &sixty, 50); got != StatusMissed {
		t.Fatalf("overdue success should be missed, got %s", got)
	}
	if got := checkJobStatusAt(now, "succeeded", now.Add(-10*time.Minute), &sixty, 50); got != StatusSuccess {
		t.Fatalf("fresh success: got %s", got)
	}
	if got := checkJobStatusAt(now, "succeeded", now.Add(-999*time.Minute), nil, 50); got != StatusSuccess {
		t.Fatalf("no expected interval means never missed, got %s", got)
	}
	if got := checkJobStatusAt(now, "", time.Time{}, &sixty, 50); got != StatusUnknown {
		t.Fatalf("no history: got %s", got)
	}
}

// catalogQuerier serves canned catalog and history rows keyed by query text.
type catalogQuerier struct {
	jobs    []map[string]any
	history []map[string]any
}

func (c *catalogQuerier) Query(_ context.Context, sql string) ([]map[string]any, error) {
	if strings.Contains(sql, "job_run_details") {
		return c.history, nil
	}
	return c.jobs, nil
}

type countingAlerter struct {
	sent []alerts.Alert
}

func (c *countingAlerter) Send(_ context.Context, a alerts.Alert) bool {
	c.sent = append(c.sent, a)
	return true
}

func singleProjectConfig() config.Config {
	cfg := config.Load()
	cfg.KnownProjects = []string{"primary"}
	cfg.BufferPercent = 50
	return cfg
}

func newTestChecker(q *catalogQuerier, al Alerter) *Checker {
	cfg := singleProjectConfig()
	disc := discovery.New(cfg, func(context.Context, string) (discovery.Querier, error) { return q, nil })
	return NewChecker(cfg, disc, NewMemoryStatusStore(), al)
}

func TestCheckProjectJobsJoinsLatestHistory(t *testing.T) {
	now := time.Now().UTC()
	q := &catalogQuerier{
		jobs: []map[string]any{
			{"jobid": int64(1), "jobname": "sync", "schedule": "0 * * * *", "database": "app", "active": true},
			{"jobid": int64(2), "jobname": "paused", "schedule": "0 * * * *", "database": "app", "active": false},
		},
		history: []map[string]any{
			// most-recent-first: the succeeded run must win over the older failure
			{"runid": int64(12), "jobid": int64(1), "status": "succeeded", "start_time": now.Add(-10 * time.Minute)},
			{"runid": int64(11), "jobid": int64(1), "status": "failed", "start_time": now.Add(-70 * time.Minute), "return_message": "old failure"},
		},
	}
	checker := newTestChecker(q, &countingAlerter{})

	results := checker.CheckProjectJobs(context.Background(), "primary")
	if len(results) != 1 {
		t.Fatalf("inactive job not skipped: %d results", len(results))
	}
	rec := results[0]
	if rec.Status != string(StatusSuccess) || rec.LastStatus != "succeeded" {
		t.Fatalf("latest history row not selected: %+v", rec)
	}
	if rec.ExpectedIntervalMinutes == nil || *rec.ExpectedIntervalMinutes != 60 {
		t.Fatalf("expected interval lost: %+v", rec)
	}
}

func TestCheckAllAndAlertIsEdgeTriggered(t *testing.T) {
	now := time.Now().UTC()
	q := &catalogQuerier{
		jobs: []map[string]any{
			{"jobid": int64(1), "jobname": "sync", "schedule": "0 * * * *", "database": "app", "active": true},
		},
		history: []map[string]any{
			// succeeded 120min ago on a 60min interval: missed
			{"runid": int64(5), "jobid": int64(1), "status": "succeeded", "start_time": now.Add(-120 * time.Minute)},
		},
	}
	al := &countingAlerter{}
	checker := newTestChecker(q, al)

	checker.CheckAllAndAlert(context.Background())
	checker.CheckAllAndAlert(context.Background())

	if len(al.sent) != 1 {
		t.Fatalf("expected exactly one alert across two checks, got %d", len(al.sent))
	}
	if al.sent[0].Status != "missed" || al.sent[0].Criticality != alerts.CriticalityImportant {
		t.Fatalf("unexpected alert: %+v", al.sent[0])
	}
}

func TestCheckAllAndAlertFailedIsCritical(t *testing.T) {
	now := time.Now().UTC()
	errMsg := "timeout"
	q := &catalogQuerier{
		jobs: []map[string]any{
			{"jobid": int64(1), "jobname": "sync", "schedule": "0 * * * *", "database": "app", "active": true},
		},
		history: []map[string]any{
			{"runid": int64(5), "jobid": int64(1), "status": "failed", "start_time": now.Add(-5 * time.Minute), "return_message": errMsg},
		},
	}
	al := &countingAlerter{}
	checker := newTestChecker(q, al)

	checker.CheckAllAndAlert(context.Background())
	if len(al.sent) != 1 {
		t.Fatalf("expected one alert, got %d", len(al.sent))
	}
	a := al.sent[0]
	if a.Status != "failed" || a.Criticality != alerts.CriticalityCritical {
		t.Fatalf("failed job should alert critically: %+v", a)
	}
	if a.Error == nil || *a.Error != errMsg {
		t.Fatalf("error message lost: %+v", a)
	}
}

func TestRecoveryTransitionAlertsOnce(t *testing.T) {
	now := time.Now().UTC()
	q := &catalogQuerier{
		jobs: []map[string]any{
			{"jobid": int64(1), "jobname": "sync", "schedule": "0 * * * *", "database": "app", "active": true},
		},
		history: []map[string]any{
			{"runid": int64(5), "jobid": int64(1), "status": "failed", "start_time": now.Add(-5 * time.Minute)},
		},
	}
	al := &countingAlerter{}
	checker := newTestChecker(q, al)

	checker.CheckAllAndAlert(context.Background()) // failed
	q.history = []map[string]any{
		{"runid": int64(6), "jobid": int64(1), "status": "succeeded", "start_time": now},
	}
	checker.CheckAllAndAlert(context.Background()) // recovered
	checker.CheckAllAndAlert(context.Background()) // steady state, no alert

	if len(al.sent) != 2 {
		t.Fatalf("expected failed + recovered alerts, got %d", len(al.sent))
	}
	if al.sent[1].Status != "recovered" {
		t.Fatalf("second alert should be recovery: %+v", al.sent[1])
	}
}
