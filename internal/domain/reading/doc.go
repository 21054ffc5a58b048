// Package reading holds the Reading value object and the fixed temperature
// domain every persisted sample must fall into.
package reading
