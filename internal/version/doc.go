// Package version holds the build identity of the temperature monitor.
package version
