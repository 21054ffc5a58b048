// Package query serves the read side of the monitor: the latest reading,
// a bounded history window and threshold flags for display.
package query
