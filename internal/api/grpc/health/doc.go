// Package health implements the gRPC transport of the monitor: the standard
// grpc.health.v1 service, reporting whether the last poll stored a reading.
package health
