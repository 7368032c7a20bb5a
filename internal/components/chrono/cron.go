package chrono

import (
	"fmt"
	"petstay-backend/internal/components/telemetry"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const report_cron_job = "cron.job"

// CronAPI runs callbacks on standard five field cron specs.
type CronAPI interface {
	// Cron registers callback and returns when the first run is due.
	Cron(spec string, callback func()) (time.Time, error)
	Stop()
}

// StandardCron is CronAPI on top of robfig/cron.
type StandardCron struct {
	cron *cron.Cron
}

// NewStandardCron starts a scheduler. Specs are evaluated in Seoul time and
// a job that is still running when its next tick arrives skips that tick,
// so a slow review run never overlaps itself.
func NewStandardCron(tel telemetry.API) StandardCron {
	logger := cronLogger{tel: telemetry.NewScopedAPI("cron", tel)}
	c := cron.New(
		cron.WithLocation(seoul),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Start()
	return StandardCron{cron: c}
}

func (s StandardCron) Cron(spec string, callback func()) (time.Time, error) {
	id, err := s.cron.AddFunc(spec, callback)
	if err != nil {
		return time.Time{}, fmt.Errorf("cron spec %q: %w", spec, err)
	}
	return s.cron.Entry(id).Next, nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s StandardCron) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts cron.Logger to the telemetry API.
type cronLogger struct {
	tel telemetry.API
}

func pairs(keysAndValues []any) string {
	var b strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	return b.String()
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken(report_cron_job, fmt.Errorf("%s: %w", msg, err), pairs(keysAndValues))
}
