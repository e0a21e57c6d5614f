package harness

import (
	"github.com/joshholl/integrations-core/internal/aggregator"
)

// failureRecorder forwards assertion failures to the test while counting
// them, so the step log can show pass/fail per assertion.
type failureRecorder struct {
	t        aggregator.TestingT
	failures int
}

func (r *failureRecorder) Helper() {
	r.t.Helper()
}

func (r *failureRecorder) Errorf(format string, args ...any) {
	r.failures++
	r.t.Errorf(format, args...)
}

func (env *E2EEnvironment) record() *failureRecorder {
	env.T.Helper()
	if env.Agg == nil {
		env.T.Fatalf("no check has been run yet")
	}
	return &failureRecorder{t: env.T}
}

// AssertMetric verifies the metric was captured, honoring the given
// filters and thresholds.
func (env *E2EEnvironment) AssertMetric(name string, opts ...aggregator.AssertOption) {
	env.T.Helper()

	rec := env.record()
	env.Agg.AssertMetric(rec, name, opts...)
	ok := rec.failures == 0
	env.Logger.Assertion("metric", name, ok)
}

// AssertMetricHasTag verifies the metric carries the tag.
func (env *E2EEnvironment) AssertMetricHasTag(name, tag string, opts ...aggregator.AssertOption) {
	env.T.Helper()

	rec := env.record()
	env.Agg.AssertMetricHasTag(rec, name, tag, opts...)
	ok := rec.failures == 0
	env.Logger.Assertion("tag "+tag, name, ok)
}

// AssertServiceCheck verifies the service check was reported.
func (env *E2EEnvironment) AssertServiceCheck(name string, opts ...aggregator.AssertOption) {
	env.T.Helper()

	rec := env.record()
	env.Agg.AssertServiceCheck(rec, name, opts...)
	ok := rec.failures == 0
	env.Logger.Assertion("service check", name, ok)
}

// AssertAllMetricsCovered verifies every captured metric was asserted on.
func (env *E2EEnvironment) AssertAllMetricsCovered() {
	env.T.Helper()

	rec := env.record()
	env.Agg.AssertAllMetricsCovered(rec)
	ok := rec.failures == 0
	env.Logger.Assertion("coverage", "all metrics asserted", ok)
}

// AssertNoError fails if err is non-nil.
func (env *E2EEnvironment) AssertNoError(err error, msg string) {
	env.T.Helper()
	if err != nil {
		env.Logger.Error("%s: %v", msg, err)
		env.T.Fatalf("%s: %v", msg, err)
	}
}

// AssertError fails if err is nil.
func (env *E2EEnvironment) AssertError(err error, msg string) {
	env.T.Helper()
	if err == nil {
		env.Logger.Error("%s: expected error but got nil", msg)
		env.T.Fatalf("%s: expected error but got nil", msg)
	}
}
