// Package metric provides Prometheus metrics for SimVault.
//
// Metrics wraps the engine's notification sink so save and load outcomes
// land in a prometheus registry, and StatsCollector exposes the engine's
// cumulative counters and disk footprint on scrape.
package metric
