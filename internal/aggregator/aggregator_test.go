package aggregator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures assertion failures instead of failing the real test.
type recorder struct {
	failures []string
}

func (r *recorder) Helper() {}

func (r *recorder) Errorf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func sampleAggregator() *Aggregator {
	return New([]Metric{
		{Name: "clickhouse.query.active", Type: TypeGauge, Value: 2, Hostname: "ch1", Tags: []string{"server:localhost", "port:9000", "db:default"}},
		{Name: "clickhouse.query.active", Type: TypeGauge, Value: 3, Hostname: "ch1", Tags: []string{"server:localhost", "port:9000", "db:system"}},
		{Name: "clickhouse.connection.tcp.total", Type: TypeRate, Value: 7, Hostname: "ch1", Tags: []string{"server:localhost", "port:9000"}},
	}, []ServiceCheck{
		{Name: "clickhouse.can_connect", Status: 0, Tags: []string{"server:localhost", "port:9000"}},
		{Name: "clickhouse.can_connect", Status: 2, Tags: []string{"server:localhost", "port:9000"}},
	})
}

const sampleCheckOutput = `2026-03-01 10:00:00 UTC | CORE | INFO | (run/check.go:120 in Run) | check:clickhouse | Running check...
[
  {
    "aggregator": {
      "metrics": [
        {
          "metric": "clickhouse.query.active",
          "type": "gauge",
          "host": "ch1",
          "points": [[1788300000, 2], [1788300015, 3]],
          "tags": ["server:localhost", "port:9000"]
        },
        {
          "metric": "clickhouse.table.replicated.total",
          "type": "gauge",
          "host": "ch1",
          "points": [[1788300000, 1]],
          "tags": ["server:localhost", "port:9000", "db:default"]
        }
      ],
      "service_checks": [
        {
          "check": "clickhouse.can_connect",
          "host_name": "ch1",
          "status": 0,
          "message": "",
          "tags": ["server:localhost", "port:9000"]
        }
      ]
    }
  }
]
`

func TestFromCheckJSON(t *testing.T) {
	agg, err := FromCheckJSON([]byte(sampleCheckOutput))
	require.NoError(t, err)

	// Two points of the first series flatten to two metrics.
	points := agg.Metrics("clickhouse.query.active")
	require.Len(t, points, 2)
	assert.Equal(t, 2.0, points[0].Value)
	assert.Equal(t, 3.0, points[1].Value)
	assert.Equal(t, "gauge", points[0].Type)
	assert.Equal(t, "ch1", points[0].Hostname)

	assert.Equal(t,
		[]string{"clickhouse.query.active", "clickhouse.table.replicated.total"},
		agg.MetricNames())

	rec := &recorder{}
	agg.AssertServiceCheck(rec, "clickhouse.can_connect", WithStatus(0))
	assert.Empty(t, rec.failures)
}

func TestFromCheckJSONErrors(t *testing.T) {
	_, err := FromCheckJSON([]byte("no json here"))
	assert.Error(t, err)

	_, err = FromCheckJSON([]byte("log with [brackets] but no document"))
	assert.Error(t, err)
}

func TestAssertMetric(t *testing.T) {
	agg := sampleAggregator()

	t.Run("present passes", func(t *testing.T) {
		rec := &recorder{}
		agg.AssertMetric(rec, "clickhouse.query.active")
		assert.Empty(t, rec.failures)
	})

	t.Run("absent fails", func(t *testing.T) {
		rec := &recorder{}
		agg.AssertMetric(rec, "clickhouse.dictionary.item.current")
		require.Len(t, rec.failures, 1)
		assert.Contains(t, rec.failures[0], "never captured")
	})

	t.Run("absent passes with at least zero", func(t *testing.T) {
		rec := &recorder{}
		agg.AssertMetric(rec, "clickhouse.dictionary.item.current", WithAtLeast(0))
		assert.Empty(t, rec.failures)
	})

	t.Run("exact tags match one point", func(t *testing.T) {
		rec := &recorder{}
		agg.AssertMetric(rec, "clickhouse.query.active",
			WithTags("db:default", "port:9000", "server:localhost"), WithCount(1))
		assert.Empty(t, rec.failures)
	})

	t.Run("tag subset does not match", func(t *testing.T) {
		rec := &recorder{}
		agg.AssertMetric(rec, "clickhouse.query.active", WithTags("server:localhost"))
		require.Len(t, rec.failures, 1)
		assert.Contains(t, rec.failures[0], "tags seen")
	})

	t.Run("value and type and hostname filters", func(t *testing.T) {
		rec := &recorder{}
		agg.AssertMetric(rec, "clickhouse.query.active", WithValue(3), WithCount(1))
		agg.AssertMetric(rec, "clickhouse.connection.tcp.total", WithType("rate"))
		agg.AssertMetric(rec, "clickhouse.query.active", WithHostname("ch1"), WithCount(2))
		assert.Empty(t, rec.failures)

		agg.AssertMetric(rec, "clickhouse.query.active", WithValue(99))
		assert.Len(t, rec.failures, 1)
	})

	t.Run("count mismatch fails", func(t *testing.T) {
		rec := &recorder{}
		agg.AssertMetric(rec, "clickhouse.query.active", WithCount(1))
		require.Len(t, rec.failures, 1)
		assert.Contains(t, rec.failures[0], "exactly 1")
	})
}

func TestAssertMetricHasTag(t *testing.T) {
	agg := sampleAggregator()

	rec := &recorder{}
	agg.AssertMetricHasTag(rec, "clickhouse.query.active", "server:localhost", WithCount(2))
	agg.AssertMetricHasTag(rec, "clickhouse.query.active", "db:default")
	assert.Empty(t, rec.failures)

	agg.AssertMetricHasTag(rec, "clickhouse.query.active", "dc:eu-west")
	require.Len(t, rec.failures, 1)

	// at_least zero tolerates flaky emitters while still marking coverage.
	rec = &recorder{}
	agg.AssertMetricHasTag(rec, "clickhouse.missing", "server:localhost", WithAtLeast(0))
	assert.Empty(t, rec.failures)
}

func TestAssertServiceCheck(t *testing.T) {
	agg := sampleAggregator()

	rec := &recorder{}
	agg.AssertServiceCheck(rec, "clickhouse.can_connect", WithCount(2))
	agg.AssertServiceCheck(rec, "clickhouse.can_connect", WithStatus(2), WithCount(1))
	agg.AssertServiceCheck(rec, "clickhouse.can_connect",
		WithTags("port:9000", "server:localhost"), WithCount(2))
	assert.Empty(t, rec.failures)

	agg.AssertServiceCheck(rec, "clickhouse.backup.status")
	assert.Len(t, rec.failures, 1)
}

func TestAssertNoMetric(t *testing.T) {
	agg := sampleAggregator()

	rec := &recorder{}
	agg.AssertNoMetric(rec, "clickhouse.query.failed")
	assert.Empty(t, rec.failures)

	agg.AssertNoMetric(rec, "clickhouse.query.active")
	require.Len(t, rec.failures, 1)
	assert.Contains(t, rec.failures[0], "expected no points")
}

func TestAssertAllMetricsCovered(t *testing.T) {
	agg := sampleAggregator()

	rec := &recorder{}
	agg.AssertAllMetricsCovered(rec)
	require.Len(t, rec.failures, 1)
	assert.Contains(t, rec.failures[0], "clickhouse.connection.tcp.total")

	agg.AssertMetric(rec, "clickhouse.query.active")
	agg.AssertMetric(rec, "clickhouse.connection.tcp.total")

	rec = &recorder{}
	agg.AssertAllMetricsCovered(rec)
	assert.Empty(t, rec.failures)
}

func TestTagsFor(t *testing.T) {
	agg := sampleAggregator()
	assert.Equal(t,
		[]string{"db:default", "db:system", "port:9000", "server:localhost"},
		agg.TagsFor("clickhouse.query.active"))
	assert.Empty(t, agg.TagsFor("clickhouse.missing"))
}
