// Package poller drives the monitor: on every tick it reads the sensor,
// stores the reading, feeds it to the alert engine and notifies on a
// transition. Ticks never overlap; a failure at any step ends only the
// current tick, and the next scheduled tick is the retry.
package poller
