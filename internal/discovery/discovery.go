// Package discovery enumerates scheduled jobs and their execution history
// from each project's pg_cron catalog.
package discovery

import (
	"context"
	"log"
	"time"

	"db-auditor/internal/config"
	"db-auditor/internal/models"
)

// Querier is the read-only query capability discovery needs. The db
// package's Session satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string) ([]map[string]any, error)
}

// QuerierFactory yields a querier for a project alias.
type QuerierFactory func(ctx context.Context, project string) (Querier, error)

// Discoverer reads scheduler metadata per project. Failures are downgraded
// to empty results so one unreachable project cannot abort a fleet audit.
type Discoverer struct {
	cfg     config.Config
	querier QuerierFactory
}

func New(cfg config.Config, querier QuerierFactory) *Discoverer {
	return &Discoverer{cfg: cfg, querier: querier}
}

// CronJobs returns the scheduled jobs of one project, enriched with parsed
// schedules. Best effort: connection or query failure logs and returns nil.
func (d *Discoverer) CronJobs(ctx context.Context, project string) []models.ScheduledJob {
	q, err := d.querier(ctx, project)
	if err != nil {
		log.Printf("discovery: project %s unreachable: %v", project, err)
		return nil
	}
	rows, err := q.Query(ctx, jobCatalogQuery)
	if err != nil {
		log.Printf("discovery: project %s job catalog query failed: %v", project, err)
		return nil
	}
	now := time.Now().UTC()
	jobs := make([]models.ScheduledJob, 0, len(rows))
	for _, row := range rows {
		schedule := asString(row["schedule"])
		parsed := ParseCronSchedule(schedule)
		jobs = append(jobs, models.ScheduledJob{
			JobID:                   asInt64(row["jobid"]),
			JobName:                 asString(row["jobname"]),
			Schedule:                schedule,
			Database:                asString(row["database"]),
			Active:                  asBool(row["active"]),
			Project:                 project,
			Frequency:               parsed.Frequency,
			ScheduleDescription:     parsed.Description,
			ExpectedIntervalMinutes: parsed.IntervalMinutes,
			DiscoveredAt:            now,
		})
	}
	return jobs
}

// CronHistory returns recent execution records for one project,
// most-recent-first. Best effort, same as CronJobs.
func (d *Discoverer) CronHistory(ctx context.Context, project string) []models.JobExecutionRecord {
	q, err := d.querier(ctx, project)
	if err != nil {
		log.Printf("discovery: project %s unreachable: %v", project, err)
		return nil
	}
	rows, err := q.Query(ctx, jobHistoryQuery(d.cfg.HistoryDays))
	if err != nil {
		log.Printf("discovery: project %s history query failed: %v", project, err)
		return nil
	}
	records := make([]models.JobExecutionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.JobExecutionRecord{
			RunID:        asInt64(row["runid"]),
			JobID:        asInt64(row["jobid"]),
			Status:       asString(row["status"]),
			StartTime:    asTime(row["start_time"]),
			EndTime:      asTimePtr(row["end_time"]),
			ErrorMessage: asStringPtr(row["return_message"]),
		})
	}
	return records
}

// AllProjects discovers jobs across every known project. Partial failures
// surface as empty per-project lists, never as an aborted audit.
func (d *Discoverer) AllProjects(ctx context.Context) map[string][]models.ScheduledJob {
	out := make(map[string][]models.ScheduledJob, len(d.cfg.KnownProjects))
	for _, project := range d.cfg.KnownProjects {
		out[project] = d.CronJobs(ctx, project)
	}
	return out
}

// Driver row values arrive as any; pg_cron's jobid is bigint, active is
// bool, timestamps are timestamptz. The coercions below keep callers on
// named fields without caring about exact driver types.

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asStringPtr(v any) *string {
	if s, ok := v.(string); ok && s != "" {
		return &s
	}
	return nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asTime(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}

func asTimePtr(v any) *time.Time {
	if t, ok := v.(time.Time); ok && !t.IsZero() {
		return &t
	}
	return nil
}
