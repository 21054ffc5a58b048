// Package rest exposes stored readings over HTTP with gin: liveness, the
// latest reading with threshold flags, a history window, the last hour and
// the Prometheus exposition.
package rest
