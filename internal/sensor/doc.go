// Package sensor provides the temperature sources the poller reads from.
//
// FileSensor reads kernel sysfs files (hwmon or 1-Wire). MQTTSensor listens
// on an MQTT topic and serves the newest value it has seen. Both report
// failures through the sentinel errors of this package.
package sensor
