package metric

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a labelled gauge whose values are sampled at scrape
// time, such as the state of each peer link.
type Collector struct {
	desc   *prometheus.Desc
	sample func() map[string]float64
}

// NewCollector creates a collector for a gauge with one label.
func NewCollector(subsystem, name, help, label string, sample func() map[string]float64) *Collector {
	return &Collector{
		desc:   prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, []string{label}, nil),
		sample: sample,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for lv, v := range c.sample() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, v, lv)
	}
}
