package discovery

import "fmt"

// The scheduler catalog is pg_cron's: job definitions live in cron.job and
// execution history in cron.job_run_details. Only the columns named here
// are required; the rest of the schema belongs to the scheduler.
const jobCatalogQuery = `SELECT jobid, jobname, schedule, database, active FROM cron.job ORDER BY jobname`

func jobHistoryQuery(days int) string {
	if days <= 0 {
		days = 7
	}
	return fmt.Sprintf(
		`SELECT runid, jobid, status, return_message, start_time, end_time
		 FROM cron.job_run_details
		 WHERE start_time > now() - interval '%d days'
		 ORDER BY start_time DESC`, days)
}
