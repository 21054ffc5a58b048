// Package metrics exposes Prometheus collectors for poll ticks, stored
// readings and alert transitions.
package metrics
