package chrono

import (
	"context"
	"time"
)

// TimeAPI provides the current time in the timezone the upstream services
// report dates in.
type TimeAPI interface {
	Now() time.Time
	Location() *time.Location
}

// Clock is the delay abstraction used by anything that waits between network
// calls, tests swap it for a FakeClock so no real time passes.
type Clock interface {
	TimeAPI
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

var seoul = mustLoad("Asia/Seoul")

func mustLoad(name string) *time.Location {
	location, err := time.LoadLocation(name)
	if err != nil {
		// tzdata can be missing in minimal containers, KST has no DST.
		return time.FixedZone("KST", 9*60*60)
	}
	return location
}

// Seoul is the location every date coming out of the booking and shelter
// APIs is expressed in.
func Seoul() *time.Location {
	return seoul
}

type StandardImpl struct {
	location *time.Location
}

func NewStandardImpl() StandardImpl {
	return StandardImpl{location: seoul}
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

func (s StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
