// Package metric provides the Prometheus metrics of a wsmesh node.
//
// Registry owns a private prometheus.Registry with the event counters
// incremented by the connection registry, room broker, session aggregator
// and peer links. Live values (connection counts, rooms, link states) are
// sampled at scrape time through GaugeFunc and the Collector.
package metric
