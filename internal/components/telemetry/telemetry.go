// Package telemetry carries the reporting interface every acquisition
// component logs through, plus the otel and http dump plumbing behind it.
package telemetry

// API is where components report what happened to them. The CLI wires
// SlogAPI, tests wire a Recorder and assert on it.
type API interface {
	// ReportBroken flags a component that failed in a way somebody has to
	// fix. The id names the component and the operation (`direct.fetch`,
	// `controller.normalize`), never a single line inside it, so the id
	// alone is enough to find the code. Extra detail goes in params.
	//
	// ids are lowercase, use underscores inside a component name and a dot
	// between component and operation. Packages keep them in `report_*`
	// constants.
	ReportBroken(id string, params ...any)
	// ReportWarning flags something worth a look that is not broken yet, a
	// blocked target or an escalated guard for example.
	ReportWarning(id string, params ...any)
	// ReportDebug is dropped unless verbose logging is on.
	ReportDebug(msg string, params ...any)
	// ReportCount records a point-in-time value. Consecutive counts for one
	// id are samples, not increments.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with the namespace of the component that owns
// it, "ratelimit: guard.escalate" for example.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return s.namespace + ": " + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
