package e2e

// baseMetrics are reported by every supported ClickHouse version.
var baseMetrics = []string{
	"clickhouse.background_pool.processing.task.active",
	"clickhouse.background_pool.schedule.task.active",
	"clickhouse.cache.mark.bytes",
	"clickhouse.cache.mark.file.count",
	"clickhouse.connection.http.count",
	"clickhouse.connection.interserver.count",
	"clickhouse.connection.tcp.count",
	"clickhouse.ddl.max_processed",
	"clickhouse.dictionary.item.current",
	"clickhouse.dictionary.load.count",
	"clickhouse.dictionary.memory.used",
	"clickhouse.dictionary.request.cache",
	"clickhouse.file.open.total",
	"clickhouse.fs.read.size.total",
	"clickhouse.fs.write.size.total",
	"clickhouse.lock.context.acquisition.total",
	"clickhouse.memory.tracking",
	"clickhouse.merge.active",
	"clickhouse.merge.memory",
	"clickhouse.part.current",
	"clickhouse.query.active",
	"clickhouse.query.insert.delayed",
	"clickhouse.query.memory",
	"clickhouse.query.total",
	"clickhouse.replica.leader.election",
	"clickhouse.replica.queue.size",
	"clickhouse.table.buffer.row",
	"clickhouse.table.buffer.size",
	"clickhouse.table.distributed.connection.inserted",
	"clickhouse.table.replicated.active_part.count",
	"clickhouse.table.replicated.readonly",
	"clickhouse.table.replicated.total",
	"clickhouse.thread.query.active",
	"clickhouse.uptime",
	"clickhouse.zk.connection",
	"clickhouse.zk.node.ephemeral",
	"clickhouse.zk.request",
	"clickhouse.zk.watch",
}

// v21Metrics appeared with ClickHouse 21.
var v21Metrics = []string{
	"clickhouse.background_pool.fetches.task.active",
	"clickhouse.background_pool.message_broker.task.active",
	"clickhouse.query.insert.total",
	"clickhouse.table.mergetree.insert.block.total",
}

// getMetrics returns the metrics expected from the given server version.
func getMetrics(version string) []string {
	metrics := append([]string(nil), baseMetrics...)
	switch version {
	case "18", "19", "20":
		return metrics
	default:
		return append(metrics, v21Metrics...)
	}
}
