// Package health computes per-job status from discovery output and fires
// edge-triggered alerts on status transitions.
package health

import (
	"context"
	"log"
	"time"

	"db-auditor/internal/alerts"
	"db-auditor/internal/config"
	"db-auditor/internal/discovery"
	"db-auditor/internal/models"
	"db-auditor/internal/telemetry"
)

// Status is the derived health of one scheduled job, recomputed fresh on
// every check.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusMissed  Status = "missed"
	StatusUnknown Status = "unknown"
)

// DefaultBufferPercent pads the expected interval before a job counts as
// missed, absorbing scheduler jitter.
const DefaultBufferPercent = 50

// IsJobOverdue reports whether lastRun is older than the expected interval
// plus the jitter buffer.
func IsJobOverdue(lastRun time.Time, expectedIntervalMinutes, bufferPercent int) bool {
	return isJobOverdueAt(time.Now(), lastRun, expectedIntervalMinutes, bufferPercent)
}

func isJobOverdueAt(now, lastRun time.Time, expectedIntervalMinutes, bufferPercent int) bool {
	threshold := float64(expectedIntervalMinutes) * (1 + float64(bufferPercent)/100)
	return now.Sub(lastRun).Minutes() > threshold
}

// CheckJobStatus derives a job's status from its most recent execution and
// expected interval. An explicit failure takes precedence over staleness:
// a job that failed recently reports failed, not missed.
func CheckJobStatus(lastStatus string, lastRun time.Time, expectedIntervalMinutes *int, bufferPercent int) Status {
	return checkJobStatusAt(time.Now(), lastStatus, lastRun, expectedIntervalMinutes, bufferPercent)
}

func checkJobStatusAt(now time.Time, lastStatus string, lastRun time.Time, expectedIntervalMinutes *int, bufferPercent int) Status {
	if lastStatus == models.StatusFailed {
		return StatusFailed
	}
	if expectedIntervalMinutes != nil && !lastRun.IsZero() &&
		isJobOverdueAt(now, lastRun, *expectedIntervalMinutes, bufferPercent) {
		return StatusMissed
	}
	if lastStatus == models.StatusSucceeded {
		return StatusSuccess
	}
	return StatusUnknown
}

// Alerter is the sink for status-change notifications; alerts.Dispatcher
// satisfies it.
type Alerter interface {
	Send(ctx context.Context, a alerts.Alert) bool
}

// Checker joins discovered jobs with their latest execution record and
// tracks previous statuses for transition detection. Callers must serialize
// access; a Checker holds no internal locks beyond its store's.
type Checker struct {
	cfg   config.Config
	disc  *discovery.Discoverer
	store StatusStore
	alert Alerter
	now   func() time.Time
}

func NewChecker(cfg config.Config, disc *discovery.Discoverer, store StatusStore, alert Alerter) *Checker {
	return &Checker{cfg: cfg, disc: disc, store: store, alert: alert, now: time.Now}
}

// CheckProjectJobs computes health for every active job in one project.
func (c *Checker) CheckProjectJobs(ctx context.Context, project string) []models.JobHealth {
	jobs := c.disc.CronJobs(ctx, project)
	history := c.disc.CronHistory(ctx, project)

	// history is most-recent-first; the first record seen per job wins
	latest := make(map[int64]models.JobExecutionRecord, len(jobs))
	for _, rec := range history {
		if _, seen := latest[rec.JobID]; !seen {
			latest[rec.JobID] = rec
		}
	}

	results := make([]models.JobHealth, 0, len(jobs))
	for _, job := range jobs {
		if !job.Active {
			continue
		}
		telemetry.JobsChecked.Inc()
		h := models.JobHealth{
			JobName:                 job.JobName,
			JobID:                   job.JobID,
			Project:                 project,
			ExpectedIntervalMinutes: job.ExpectedIntervalMinutes,
		}
		var lastStatus string
		var lastRun time.Time
		if rec, ok := latest[job.JobID]; ok {
			lastStatus = rec.Status
			lastRun = rec.StartTime
			h.LastStatus = rec.Status
			h.LastRun = &rec.StartTime
			h.ErrorMessage = rec.ErrorMessage
		}
		h.Status = string(checkJobStatusAt(c.now(), lastStatus, lastRun, job.ExpectedIntervalMinutes, c.cfg.BufferPercent))
		results = append(results, h)
	}
	return results
}

// CheckAllAndAlert runs health checks across all known projects and fires
// one alert per status transition into failed or missed, plus one recovery
// alert when a previously failed or missed job succeeds again. Alerting is
// edge-triggered: a job stuck in failed across ten checks alerts once.
func (c *Checker) CheckAllAndAlert(ctx context.Context) map[string][]models.JobHealth {
	out := make(map[string][]models.JobHealth, len(c.cfg.KnownProjects))
	unhealthy := 0
	for _, project := range c.cfg.KnownProjects {
		records := c.CheckProjectJobs(ctx, project)
		out[project] = records
		for _, rec := range records {
			cur := Status(rec.Status)
			if cur == StatusFailed || cur == StatusMissed {
				unhealthy++
			}
			prev, found, err := c.store.Get(ctx, project, rec.JobName)
			if err != nil {
				log.Printf("health: status store get %s/%s: %v", project, rec.JobName, err)
				continue
			}
			if found && prev == cur {
				continue
			}
			switch {
			case cur == StatusFailed:
				c.alert.Send(ctx, alertFor(rec, "failed", alerts.CriticalityCritical))
			case cur == StatusMissed:
				c.alert.Send(ctx, alertFor(rec, "missed", alerts.CriticalityImportant))
			case cur == StatusSuccess && found && (prev == StatusFailed || prev == StatusMissed):
				c.alert.Send(ctx, alertFor(rec, "recovered", alerts.CriticalityImportant))
			}
			if err := c.store.Set(ctx, project, rec.JobName, cur); err != nil {
				log.Printf("health: status store set %s/%s: %v", project, rec.JobName, err)
			}
		}
	}
	telemetry.JobsUnhealthy.Set(float64(unhealthy))
	return out
}

func alertFor(rec models.JobHealth, status, criticality string) alerts.Alert {
	return alerts.Alert{
		JobName:     rec.JobName,
		Project:     rec.Project,
		Status:      status,
		Criticality: criticality,
		Error:       rec.ErrorMessage,
		LastRun:     rec.LastRun,
	}
}
