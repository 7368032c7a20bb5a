package coordinator

import (
	"log/slog"
	"petstay-backend/internal/acquire"
	"sync"
	"sync/atomic"
)

// Progress can be polled from any goroutine while a run is in flight.
type Progress struct {
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	// OnProgress is called after every completed target, calls are
	// serialized.
	OnProgress func(Snapshot)
	mutex      sync.Mutex
}

type Snapshot struct {
	Completed int
	Failed    int
	Total     int
}

func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("completed", s.Completed),
		slog.Int("failed", s.Failed),
		slog.Int("total", s.Total),
	)
}

func (p *Progress) start(total int) {
	p.total.Store(int64(total))
	p.completed.Store(0)
	p.failed.Store(0)
}

func (p *Progress) done(result acquire.Result) {
	p.completed.Add(1)
	if result.Status != acquire.StatusSuccess {
		p.failed.Add(1)
	}
	if p.OnProgress == nil {
		return
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.OnProgress(p.Snapshot())
}

func (p *Progress) Completed() int {
	return int(p.completed.Load())
}

func (p *Progress) Total() int {
	return int(p.total.Load())
}

func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		Completed: int(p.completed.Load()),
		Failed:    int(p.failed.Load()),
		Total:     int(p.total.Load()),
	}
}
