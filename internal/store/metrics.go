package store

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters are labelled with the ProviderConfig.Group of the store.
var (
	HitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of store lookups that found an entry.",
	}, []string{"cache"})

	MissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of store lookups that found nothing.",
	}, []string{"cache"})

	// EvictionsTotal only counts capacity evictions of the memory provider.
	EvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_evictions_total",
		Help: "Total number of entries evicted to make room for new ones.",
	}, []string{"cache"})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_store_errors_total",
		Help: "Total number of failed store operations.",
	}, []string{"cache", "operation"})
)

var liveKeys = newEntriesCollector()

func init() {
	prometheus.MustRegister(liveKeys)
}

// entriesCollector reports cache_entries for every instrumented store by
// listing its keys at scrape time, so entries expired by the backend are
// never counted.
type entriesCollector struct {
	desc *prometheus.Desc

	mu     sync.Mutex
	stores map[string]Store
}

func newEntriesCollector() *entriesCollector {
	return &entriesCollector{
		desc: prometheus.NewDesc(
			"cache_entries",
			"Current number of live keys in the store.",
			[]string{"cache"},
			nil,
		),
		stores: make(map[string]Store),
	}
}

func (c *entriesCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *entriesCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	stores := make(map[string]Store, len(c.stores))
	for group, s := range c.stores {
		stores[group] = s
	}
	c.mu.Unlock()

	for group, s := range stores {
		ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
		keys, err := s.Keys(ctx)
		cancel()
		if err != nil {
			ch <- prometheus.NewInvalidMetric(c.desc, err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(len(keys)), group)
	}
}

// add starts reporting s under group, replacing any store already reported
// under it.
func (c *entriesCollector) add(group string, s Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores[group] = s
}

func (c *entriesCollector) remove(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stores, group)
}

func (c *entriesCollector) has(group string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.stores[group]
	return ok
}
