// Package events reads and writes the line-delimited fork event stream.
package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"

	apperrors "fork-harvester/internal/errors"
	"fork-harvester/internal/model"
)

// maxLineSize bounds a single event line. Fork payloads embed the whole
// forkee repository object and can be large.
const maxLineSize = 16 << 20

// SplitRepo splits an "owner/name" identifier.
func SplitRepo(full string) (owner, name string, err error) {
	parts := strings.Split(full, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &apperrors.ErrInvalidRepoFormat{Repo: full}
	}
	return parts[0], parts[1], nil
}

type eventLine struct {
	Type string `json:"type,omitempty"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at,omitempty"`
}

// forkeeStamps keeps the forkee timestamps as written, since go-github
// normalises them on decode.
type forkeeStamps struct {
	Forkee struct {
		CreatedAt json.RawMessage `json:"created_at"`
		UpdatedAt json.RawMessage `json:"updated_at"`
	} `json:"forkee"`
}

func rawString(v json.RawMessage) string {
	var s string
	if json.Unmarshal(v, &s) != nil {
		return ""
	}
	return s
}

// Parse decodes one event line. n is the 1-based line number used in errors.
// The payload may be an embedded object or a JSON string holding one.
func Parse(line []byte, n int) (model.ForkEvent, error) {
	malformed := func(reason string, err error) (model.ForkEvent, error) {
		return model.ForkEvent{}, &apperrors.ErrMalformedEvent{Line: n, Reason: reason, Err: err}
	}

	var raw eventLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return malformed("invalid JSON", err)
	}

	payload := bytes.TrimSpace(raw.Payload)
	if len(payload) > 0 && payload[0] == '"' {
		var embedded string
		if err := json.Unmarshal(payload, &embedded); err != nil {
			return malformed("invalid payload string", err)
		}
		payload = []byte(embedded)
	}
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return malformed("missing payload", nil)
	}

	var fork github.ForkEvent
	if err := json.Unmarshal(payload, &fork); err != nil {
		return malformed("invalid payload", err)
	}
	forkee := fork.GetForkee()
	if forkee == nil {
		return malformed("payload has no forkee", nil)
	}

	parentOwner, parentName, err := SplitRepo(raw.Repo.Name)
	if err != nil {
		return malformed("bad parent repository", err)
	}

	childOwner, childName := forkee.GetOwner().GetLogin(), forkee.GetName()
	if full := forkee.GetFullName(); full != "" {
		if childOwner, childName, err = SplitRepo(full); err != nil {
			return malformed("bad forkee repository", err)
		}
	}
	if childOwner == "" || childName == "" {
		return malformed("forkee has no owner or name", nil)
	}

	var stamps forkeeStamps
	if err := json.Unmarshal(payload, &stamps); err != nil {
		return malformed("invalid payload", err)
	}

	created := forkee.GetCreatedAt().Time
	updated := forkee.GetUpdatedAt().Time
	updatedRaw := rawString(stamps.Forkee.UpdatedAt)
	switch {
	case created.IsZero() && updated.IsZero():
		return malformed("forkee has no timestamps", nil)
	case updated.IsZero():
		updated = created
		updatedRaw = rawString(stamps.Forkee.CreatedAt)
	case created.IsZero():
		created = updated
	}

	return model.ForkEvent{
		ParentOwner: parentOwner,
		ParentName:  parentName,
		ChildOwner:  childOwner,
		ChildName:   childName,
		ForkTime:    updated.UTC(),
		ForkTimeRaw: updatedRaw,
		CreatedAt:   created.UTC(),
		Line:        n,
		Raw:         append([]byte(nil), line...),
	}, nil
}

// Reader streams fork events from line-delimited JSON. Blank lines are
// skipped; every other line counts towards the range.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	index   int
	start   int
	end     int
}

// NewReader reads every event from r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner, end: -1}
}

// WithRange restricts the reader to the half-open range [start, end) of
// non-blank lines. A negative end means no upper bound.
func (r *Reader) WithRange(start, end int) *Reader {
	if start < 0 {
		start = 0
	}
	r.start, r.end = start, end
	return r
}

// Next returns the next event. It returns io.EOF at the end of the input or
// the range, *errors.ErrMalformedEvent for a line that should be skipped, and
// any other error for a failure of the underlying reader.
func (r *Reader) Next() (model.ForkEvent, error) {
	for {
		if r.end >= 0 && r.index >= r.end {
			return model.ForkEvent{}, io.EOF
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return model.ForkEvent{}, fmt.Errorf("read line %d: %w", r.line+1, err)
			}
			return model.ForkEvent{}, io.EOF
		}
		r.line++

		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		idx := r.index
		r.index++
		if idx < r.start {
			continue
		}
		return Parse(line, r.line)
	}
}

// Encode renders a forkee of parent as one event line, in the same shape
// Parse accepts. The payload is embedded as a string.
func Encode(parent string, forkee *github.Repository) ([]byte, error) {
	payload, err := json.Marshal(github.ForkEvent{Forkee: forkee})
	if err != nil {
		return nil, err
	}
	payloadString, err := json.Marshal(string(payload))
	if err != nil {
		return nil, err
	}

	ev := eventLine{Type: "ForkEvent", Payload: payloadString}
	ev.Repo.Name = parent
	if created := forkee.GetCreatedAt(); !created.IsZero() {
		ev.CreatedAt = created.UTC().Format(time.RFC3339)
	}
	return json.Marshal(ev)
}
