// internal/model/models.go
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ForkEvent is one "fork created" line of the event source.
type ForkEvent struct {
	ParentOwner string
	ParentName  string
	ChildOwner  string
	ChildName   string
	// ForkTime is the forkee's updated_at at capture time. It anchors the
	// commit history fetched during enrichment.
	ForkTime time.Time
	// ForkTimeRaw is the timestamp exactly as the source spelled it, when it
	// was a string.
	ForkTimeRaw string
	// CreatedAt is the forkee's created_at. It anchors the qualification window.
	CreatedAt time.Time
	Line      int
	Raw       []byte
}

// ForkTimeString renders ForkTime the way it appears in the source events.
func (e ForkEvent) ForkTimeString() string {
	if e.ForkTimeRaw != "" {
		return e.ForkTimeRaw
	}
	return e.ForkTime.UTC().Format(time.RFC3339)
}

// MonthlyTimeseries maps "YYYY-MM" to a commit count. A nil series encodes
// as null and means the repository could not be resolved.
type MonthlyTimeseries map[string]int

// Total returns the number of commits across all months.
func (m MonthlyTimeseries) Total() int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

// SeriesRecord is the output of a history-only pass.
type SeriesRecord struct {
	ParentName  string            `json:"parentName"`
	ParentOwner string            `json:"parentOwner"`
	ChildOwner  string            `json:"childOwner"`
	ChildName   string            `json:"childName"`
	ForkTime    string            `json:"forkTime"`
	CommitTimes MonthlyTimeseries `json:"commitTimes"`
}

// EnrichedForkRecord is the terminal output unit of the enrichment pass.
type EnrichedForkRecord struct {
	SeriesRecord
	Issues        IssuesOutcome `json:"issues"`
	CommitsPost2m int           `json:"commitsPost2m"`
	Stars         *int          `json:"stars"`
}

type IssuesSummary struct {
	IssuesEnabled     bool `json:"issues_enabled"`
	OpenIssuesCount   int  `json:"open_issues_count"`
	ClosedIssuesCount int  `json:"closed_issues_count"`
}

// IssuesOutcome holds exactly one of: a summary, a deleted-repository
// marker, or a failure marker. It encodes to the summary object,
// {"deleted_repo": true}, or the string "errors".
type IssuesOutcome struct {
	Summary *IssuesSummary
	Deleted bool
	Failed  bool
}

const issuesErrorMarker = "errors"

func (o IssuesOutcome) MarshalJSON() ([]byte, error) {
	switch {
	case o.Summary != nil:
		return json.Marshal(o.Summary)
	case o.Deleted:
		return []byte(`{"deleted_repo":true}`), nil
	default:
		return json.Marshal(issuesErrorMarker)
	}
}

func (o *IssuesOutcome) UnmarshalJSON(data []byte) error {
	*o = IssuesOutcome{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		o.Failed = true
		return nil
	}
	if data[0] == '"' {
		var marker string
		if err := json.Unmarshal(data, &marker); err != nil {
			return err
		}
		if marker != issuesErrorMarker {
			return fmt.Errorf("unknown issues marker %q", marker)
		}
		o.Failed = true
		return nil
	}

	var probe struct {
		DeletedRepo bool `json:"deleted_repo"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.DeletedRepo {
		o.Deleted = true
		return nil
	}
	var summary IssuesSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return err
	}
	o.Summary = &summary
	return nil
}

// RecordFailure takes the place of a record whose processing failed, so one
// bad fork never aborts a batch.
type RecordFailure struct {
	ParentOwner string `json:"parentOwner,omitempty"`
	ParentName  string `json:"parentName,omitempty"`
	ChildOwner  string `json:"childOwner,omitempty"`
	ChildName   string `json:"childName,omitempty"`
	Line        int    `json:"line"`
	Error       string `json:"error"`
}

// NewRecordFailure builds the placeholder for ev.
func NewRecordFailure(ev ForkEvent, err error) RecordFailure {
	return RecordFailure{
		ParentOwner: ev.ParentOwner,
		ParentName:  ev.ParentName,
		ChildOwner:  ev.ChildOwner,
		ChildName:   ev.ChildName,
		Line:        ev.Line,
		Error:       err.Error(),
	}
}
