// Package aggregator captures the metrics and service checks emitted by an
// agent check run and provides assertions over them for e2e tests.
package aggregator

import (
	"fmt"
	"sort"
)

// Metric types submitted by the agent aggregator.
const (
	TypeGauge          = "gauge"
	TypeRate           = "rate"
	TypeCount          = "count"
	TypeMonotonicCount = "monotonic_count"
	TypeHistogram      = "histogram"
	TypeHistorate      = "historate"
)

// Metric is a single submitted metric point.
type Metric struct {
	Name     string   `json:"metric"`
	Type     string   `json:"type"`
	Value    float64  `json:"value"`
	Hostname string   `json:"host"`
	Tags     []string `json:"tags"`
}

// ServiceCheck is a single submitted service check.
type ServiceCheck struct {
	Name     string   `json:"check"`
	Status   int      `json:"status"`
	Hostname string   `json:"host_name"`
	Message  string   `json:"message"`
	Tags     []string `json:"tags"`
}

// TestingT is the subset of testing.T the assertions need.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
}

// Aggregator indexes captured metrics for assertions. Asserted metric names
// are tracked so coverage can be checked at the end of a test.
type Aggregator struct {
	metrics       []Metric
	serviceChecks []ServiceCheck
	asserted      map[string]bool
}

// New builds an Aggregator over already-captured data.
func New(metrics []Metric, serviceChecks []ServiceCheck) *Aggregator {
	return &Aggregator{
		metrics:       metrics,
		serviceChecks: serviceChecks,
		asserted:      map[string]bool{},
	}
}

// Metrics returns all captured points with the given name.
func (a *Aggregator) Metrics(name string) []Metric {
	var out []Metric
	for _, m := range a.metrics {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// MetricNames returns the distinct captured metric names, sorted.
func (a *Aggregator) MetricNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range a.metrics {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

// TagsFor returns the distinct tags seen across all points of a metric,
// sorted. Useful in failure hints.
func (a *Aggregator) TagsFor(name string) []string {
	seen := map[string]bool{}
	var tags []string
	for _, m := range a.metrics {
		if m.Name != name {
			continue
		}
		for _, tag := range m.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// AssertOption narrows which captured points count as matches.
type AssertOption func(*assertSpec)

type assertSpec struct {
	value      *float64
	tags       []string
	hostname   *string
	metricType *string
	status     *int
	count      *int
	atLeast    int
}

func newAssertSpec(opts []AssertOption) assertSpec {
	spec := assertSpec{atLeast: 1}
	for _, opt := range opts {
		opt(&spec)
	}
	return spec
}

// WithValue requires an exact point value.
func WithValue(v float64) AssertOption {
	return func(s *assertSpec) { s.value = &v }
}

// WithTags requires the point's tag set to equal tags exactly, ignoring order.
func WithTags(tags ...string) AssertOption {
	return func(s *assertSpec) { s.tags = tags }
}

// WithHostname requires an exact hostname.
func WithHostname(hostname string) AssertOption {
	return func(s *assertSpec) { s.hostname = &hostname }
}

// WithType requires an exact metric type.
func WithType(metricType string) AssertOption {
	return func(s *assertSpec) { s.metricType = &metricType }
}

// WithStatus requires an exact service check status.
func WithStatus(status int) AssertOption {
	return func(s *assertSpec) { s.status = &status }
}

// WithCount requires exactly n matches instead of a minimum.
func WithCount(n int) AssertOption {
	return func(s *assertSpec) { s.count = &n }
}

// WithAtLeast lowers or raises the minimum match count. Zero still marks
// the metric as asserted, so flaky emitters can be covered without failing.
func WithAtLeast(n int) AssertOption {
	return func(s *assertSpec) { s.atLeast = n }
}

func (s assertSpec) matchesMetric(m Metric) bool {
	if s.value != nil && *s.value != m.Value {
		return false
	}
	if s.tags != nil && !sameTags(s.tags, m.Tags) {
		return false
	}
	if s.hostname != nil && *s.hostname != m.Hostname {
		return false
	}
	if s.metricType != nil && *s.metricType != m.Type {
		return false
	}
	return true
}

// AssertMetric verifies that enough points matching the options were
// captured for the named metric.
func (a *Aggregator) AssertMetric(t TestingT, name string, opts ...AssertOption) {
	t.Helper()
	spec := newAssertSpec(opts)

	matched, named := 0, 0
	for _, m := range a.metrics {
		if m.Name != name {
			continue
		}
		named++
		if spec.matchesMetric(m) {
			matched++
		}
	}
	a.asserted[name] = true

	if spec.count != nil {
		if matched != *spec.count {
			t.Errorf("metric %s: expected exactly %d matching point(s), got %d%s",
				name, *spec.count, matched, a.hint(name, named))
		}
		return
	}
	if matched < spec.atLeast {
		t.Errorf("metric %s: expected at least %d matching point(s), got %d%s",
			name, spec.atLeast, matched, a.hint(name, named))
	}
}

// AssertMetricHasTag verifies that enough points of the named metric carry
// the tag.
func (a *Aggregator) AssertMetricHasTag(t TestingT, name, tag string, opts ...AssertOption) {
	t.Helper()
	spec := newAssertSpec(opts)

	matched, named := 0, 0
	for _, m := range a.metrics {
		if m.Name != name {
			continue
		}
		named++
		if hasTag(m.Tags, tag) {
			matched++
		}
	}
	a.asserted[name] = true

	if spec.count != nil {
		if matched != *spec.count {
			t.Errorf("metric %s: expected tag %s on exactly %d point(s), got %d%s",
				name, tag, *spec.count, matched, a.hint(name, named))
		}
		return
	}
	if matched < spec.atLeast {
		t.Errorf("metric %s: expected tag %s on at least %d point(s), got %d%s",
			name, tag, spec.atLeast, matched, a.hint(name, named))
	}
}

// AssertServiceCheck verifies that enough matching service checks were
// captured.
func (a *Aggregator) AssertServiceCheck(t TestingT, name string, opts ...AssertOption) {
	t.Helper()
	spec := newAssertSpec(opts)

	matched := 0
	for _, sc := range a.serviceChecks {
		if sc.Name != name {
			continue
		}
		if spec.status != nil && *spec.status != sc.Status {
			continue
		}
		if spec.tags != nil && !sameTags(spec.tags, sc.Tags) {
			continue
		}
		matched++
	}

	if spec.count != nil {
		if matched != *spec.count {
			t.Errorf("service check %s: expected exactly %d matching submission(s), got %d",
				name, *spec.count, matched)
		}
		return
	}
	if matched < spec.atLeast {
		t.Errorf("service check %s: expected at least %d matching submission(s), got %d",
			name, spec.atLeast, matched)
	}
}

// AssertNoMetric verifies the named metric was never captured.
func (a *Aggregator) AssertNoMetric(t TestingT, name string) {
	t.Helper()

	if points := a.Metrics(name); len(points) > 0 {
		t.Errorf("metric %s: expected no points, got %d (tags seen: %v)",
			name, len(points), a.TagsFor(name))
	}
	a.asserted[name] = true
}

// AssertAllMetricsCovered verifies every captured metric name was asserted.
func (a *Aggregator) AssertAllMetricsCovered(t TestingT) {
	t.Helper()

	var missing []string
	for _, name := range a.MetricNames() {
		if !a.asserted[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		t.Errorf("%d metric(s) captured but never asserted: %v", len(missing), missing)
	}
}

// hint describes what was captured for a metric, for failure messages.
func (a *Aggregator) hint(name string, named int) string {
	if named == 0 {
		return " (metric never captured)"
	}
	return fmt.Sprintf(" (%d point(s) captured, tags seen: %v)", named, a.TagsFor(name))
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func sameTags(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	w := append([]string(nil), want...)
	g := append([]string(nil), got...)
	sort.Strings(w)
	sort.Strings(g)
	for i := range w {
		if w[i] != g[i] {
			return false
		}
	}
	return true
}
