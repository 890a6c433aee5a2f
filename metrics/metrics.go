// Package metrics provides abstract metrics interfaces so the scheduler can
// be instrumented without depending on a particular backend.
package metrics

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes:
//
//	defer m.SweepDuration().ObserveDuration()
type Timer interface {
	ObserveDuration()
}
