// Package e2e holds the end-to-end tests that run a check through a real
// agent and assert on the emitted metrics.
//
// The tests validate what an agent deployment actually reports, covering:
//   - Metric presence with per-version thresholds
//   - Tagging from instance config (server, port, db, custom tags)
//   - Service check submission
//
// # Test Structure
//
// Tests are organized as:
//
//	tests/e2e/
//	├── harness/             # Test infrastructure
//	│   ├── harness.go       # Agent environment setup
//	│   ├── logging.go       # Step logging
//	│   └── assertions.go    # Metric assertions
//	├── metrics.go           # Per-version expected metric lists
//	└── clickhouse_test.go   # ClickHouse scenario
//
// # Usage
//
// The suite needs a provisioned agent with the check's target service
// reachable. Point IDEV_E2E_AGENT at the agent command, for example:
//
//	IDEV_E2E_AGENT="docker exec dd_clickhouse_agent agent" go test ./tests/e2e/...
//
// Each test creates its own environment:
//
//	func TestCheckClickhouse(t *testing.T) {
//	    env := harness.NewE2EEnvironment(t)
//
//	    env.Step("Running the clickhouse check")
//	    env.RunCheck("clickhouse", false)
//
//	    env.AssertMetric("clickhouse.table.replicated.total")
//	}
//
// # Design Principles
//
//   - Isolation: each test gets its own temp conf.d tree and aggregator
//   - Skipping: tests skip rather than fail when no agent is configured
//   - Logging: every step is logged with timestamps for debugging
//   - Timeouts: agent invocations are bounded to catch hangs
//   - Tolerance: thresholds of zero cover metrics the server emits lazily
package e2e
