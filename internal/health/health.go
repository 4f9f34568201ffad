package health

// Status is the verdict of a single check.
type Status string

const (
	StatusOK   Status = "OK"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

// Overall summarizes a whole report.
type Overall string

const (
	OverallHealthy Overall = "HEALTHY"
	OverallFair    Overall = "FAIR"
	OverallPoor    Overall = "POOR"
)

// Mode selects which checks run.
type Mode string

const (
	// ModeBrief runs services, disk, memory and cpu load only.
	ModeBrief Mode = "brief"
	// ModeFull additionally runs containers, antivirus definitions and
	// pending updates.
	ModeFull Mode = "full"
)

// Result is one evaluated check. Immutable once produced.
type Result struct {
	Name    string
	Status  Status
	Message string
}

// Report aggregates the results of one run. Result order matches check
// registration order, so repeated runs against unchanged state produce
// identical reports.
type Report struct {
	Results []Result
}

// IssueCount is the number of results with a non-OK status.
func (r Report) IssueCount() int {
	count := 0
	for _, res := range r.Results {
		if res.Status != StatusOK {
			count++
		}
	}
	return count
}

// Overall maps the issue count onto a summary verdict:
// 0 issues is HEALTHY, 1-3 is FAIR, more than 3 is POOR.
func (r Report) Overall() Overall {
	switch n := r.IssueCount(); {
	case n == 0:
		return OverallHealthy
	case n <= 3:
		return OverallFair
	default:
		return OverallPoor
	}
}
