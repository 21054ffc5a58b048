// Package config loads the monitor settings from defaults, a YAML file, a
// dotenv file and the process environment, and validates them.
//
// Environment names follow the deployment convention of the monitor
// (DATA_RETENTION_DAYS, TEMPERATURE_THRESHOLD and so on); a value that does
// not parse leaves the previous setting in place.
package config
