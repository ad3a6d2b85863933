package models

import (
	"time"
)

// Execution statuses recorded by pg_cron in the run-details table.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusRunning   = "running"
)

// ScheduledJob is one cron job discovered from a project's scheduler catalog.
// It is an immutable snapshot taken at discovery time; identity across audits
// is by JobID only.
type ScheduledJob struct {
	JobID                   int64     `json:"job_id"`
	JobName                 string    `json:"job_name"`
	Schedule                string    `json:"schedule"`
	Database                string    `json:"database"`
	Active                  bool      `json:"active"`
	Project                 string    `json:"project"`
	Frequency               string    `json:"frequency"`
	ScheduleDescription     string    `json:"schedule_description"`
	ExpectedIntervalMinutes *int      `json:"expected_interval_minutes,omitempty"`
	DiscoveredAt            time.Time `json:"discovered_at"`
}

// JobExecutionRecord is one row of execution history. Append-only facts,
// never mutated after discovery.
type JobExecutionRecord struct {
	RunID        int64      `json:"run_id"`
	JobID        int64      `json:"job_id"`
	Status       string     `json:"status"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// JobHealth is the per-job result of one health check cycle.
type JobHealth struct {
	JobName                 string     `json:"job_name"`
	JobID                   int64      `json:"job_id"`
	Project                 string     `json:"project"`
	Status                  string     `json:"status"`
	LastStatus              string     `json:"last_status,omitempty"`
	LastRun                 *time.Time `json:"last_run,omitempty"`
	ErrorMessage            *string    `json:"error_message,omitempty"`
	ExpectedIntervalMinutes *int       `json:"expected_interval_minutes,omitempty"`
}
