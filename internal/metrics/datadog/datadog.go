// Package datadog sends metrics to a DogStatsD agent. It adapts the
// metrics.Backend contract to the official statsd client so the rest of the
// pipeline never imports Datadog types directly.
package datadog

import (
	"fmt"
	"sort"

	"github.com/DataDog/datadog-go/v5/statsd"

	"dex/internal/metrics"
)

// Config holds the DogStatsD connection settings.
type Config struct {
	// Addr is the agent address, e.g. "127.0.0.1:8125" or a unix socket URL.
	Addr string

	// Namespace prefixes every metric name, e.g. "dex.".
	Namespace string

	// GlobalTags are appended to every metric, e.g. "env:prod".
	GlobalTags []string
}

// Backend forwards counters and histograms to DogStatsD. Install it with
// metrics.SetBackend.
type Backend struct {
	client *statsd.Client
}

// NewBackend connects to the agent at cfg.Addr.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}
	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter emits a Count metric. Fractional deltas are truncated; the
// pipeline only increments by whole amounts.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Count(name, int64(delta), tagList(labels), 1)
}

// ObserveHistogram emits a Histogram metric.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Histogram(name, value, tagList(labels), 1)
}

// Flush closes the client, draining anything buffered. Called once at
// process shutdown.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// tagList renders labels as sorted "key:value" tags so repeated observations
// of the same series carry an identical tag set.
func tagList(labels metrics.Labels) []string {
	if len(labels) == 0 {
		return nil
	}
	tags := make([]string, 0, len(labels))
	for k, v := range labels {
		tags = append(tags, k+":"+v)
	}
	sort.Strings(tags)
	return tags
}
