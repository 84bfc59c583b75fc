package scheduler

import (
	"github.com/delaneyj/tickwatch/diag"
)

// countMap counts executions per job for one flush, across all of its passes.
type countMap map[*Job]int

// checkRecursiveUpdates reports whether job has run more often than the limit in
// this flush. Once over the limit a job stays skipped until the flush ends and the
// alert is logged only for the first skip.
func (s *Scheduler) checkRecursiveUpdates(seen countMap, job *Job) bool {
	count, ok := seen[job]
	if !ok {
		seen[job] = 1
		return false
	}
	if count > s.limit {
		s.stats.Skipped++
		s.emit(EventSkipRecursion, job)
		if count > s.limit+1 {
			return true
		}
		seen[job] = count + 1

		fields := []diag.Field{diag.Int("limit", s.limit)}
		if name := diag.OwnerName(job.owner); name != "" {
			fields = append(fields, diag.Str("component", name))
		}
		if job.name != "" {
			fields = append(fields, diag.Str("job", job.name))
		}
		s.report.Alert(
			"maximum recursive updates exceeded: a reactive effect is mutating its own dependencies and recursively triggering itself",
			fields...,
		)
		return true
	}
	seen[job] = count + 1
	return false
}
