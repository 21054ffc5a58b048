// Package monitor wires the temperature monitor together: it loads the
// configuration, opens the repository and the sensor, configures the
// notification transports and metrics, and runs the poller next to the HTTP
// query API and the gRPC health service.
package monitor
