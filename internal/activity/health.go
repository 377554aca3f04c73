package activity

import (
	"time"

	"fork-harvester/internal/model"
)

// Health is the secondary classification of an already bucketed fork.
type Health struct {
	// Active forks resolved and have at least one commit month.
	Active bool
	// Healthy forks are active and have more than the threshold commits in
	// the fork month and the two months after it.
	Healthy bool
	// FirstQuarter is the commit count those three months add up to.
	FirstQuarter int
}

// FirstQuarterCommits sums the series over the fork month and the next two.
func FirstQuarterCommits(series model.MonthlyTimeseries, forkTime time.Time) int {
	start := FloorToMonth(forkTime)
	total := 0
	for i := 0; i < 3; i++ {
		total += series[start.AddDate(0, i, 0).Format("2006-01")]
	}
	return total
}

// Classify applies the "more than minCommits in the first three months" rule
// to a bucketed series. It works from the series alone and makes no remote
// calls, unlike the primary qualification filter.
func Classify(series model.MonthlyTimeseries, forkTime time.Time, minCommits int) Health {
	if len(series) == 0 {
		return Health{}
	}
	n := FirstQuarterCommits(series, forkTime)
	return Health{
		Active:       true,
		Healthy:      n > minCommits,
		FirstQuarter: n,
	}
}
