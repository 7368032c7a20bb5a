package acquire

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

type Status int

const (
	StatusSuccess Status = iota
	StatusRetriesExhausted
	StatusBlocked
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRetriesExhausted:
		return "retries_exhausted"
	case StatusBlocked:
		return "blocked"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of fetching one target. Exactly one is produced per
// target in a run.
type Result struct {
	TargetID     string        `json:"target_id"`
	Type         TargetType    `json:"type"`
	Status       Status        `json:"status"`
	Records      []Record      `json:"records"`
	AttemptsUsed int           `json:"attempts_used"`
	ErrorDetail  string        `json:"error_detail,omitempty"`
	Strategy     string        `json:"strategy,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Failed builds a terminal non-success result, which never carries records.
func Failed(target Target, status Status, attempts int, err error) Result {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return Result{
		TargetID:     target.ID,
		Type:         target.Type,
		Status:       status,
		AttemptsUsed: attempts,
		ErrorDetail:  detail,
	}
}

// Summary aggregates the results of one run.
type Summary struct {
	Total    int
	ByStatus map[Status]int
	Failed   []string
	Records  int
}

func Summarize(results []Result) Summary {
	s := Summary{
		Total:    len(results),
		ByStatus: map[Status]int{},
	}
	for _, r := range results {
		s.ByStatus[r.Status]++
		s.Records += len(r.Records)
		if r.Status != StatusSuccess {
			s.Failed = append(s.Failed, r.TargetID)
		}
	}
	sort.Strings(s.Failed)
	return s
}

// FailureLine renders the "N of M targets failed" message shown to users.
func (s Summary) FailureLine() string {
	return fmt.Sprintf("%d of %d targets failed", len(s.Failed), s.Total)
}

func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("total", s.Total),
		slog.Int("success", s.ByStatus[StatusSuccess]),
		slog.Int("blocked", s.ByStatus[StatusBlocked]),
		slog.Int("exhausted", s.ByStatus[StatusRetriesExhausted]),
		slog.Int("error", s.ByStatus[StatusError]),
		slog.Int("records", s.Records),
	)
}
