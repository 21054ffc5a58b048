package sensor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Default sysfs locations for the two probes.
const (
	DefaultInternalPath = "/sys/class/hwmon/hwmon0/temp1_input"
	DefaultExternalPath = "/sys/bus/w1/devices/28-000000000000/w1_slave"
)

// millidegrees is the scale kernel temperature interfaces report in.
const millidegrees = 1000.0

// FileSensor reads temperatures exposed by the kernel as text files:
// hwmon "temp*_input" files holding millidegrees, or 1-Wire "w1_slave" files.
type FileSensor struct {
	// paths maps every configured source to its file.
	paths map[Source]string
	// source is the probe to read.
	source Source
}

// NewFileSensor creates a sensor reading source from the matching path.
// An empty path leaves that source unconfigured.
func NewFileSensor(source Source, internalPath, externalPath string) *FileSensor {
	paths := make(map[Source]string, 2)

	if internalPath != "" {
		paths[SourceInternal] = filepath.Clean(internalPath)
	}

	if externalPath != "" {
		paths[SourceExternal] = filepath.Clean(externalPath)
	}

	return &FileSensor{
		paths:  paths,
		source: source,
	}
}

// Read returns the current temperature of the configured source.
func (f *FileSensor) Read(_ context.Context) (float64, error) {
	path, ok := f.paths[f.source]
	if !ok {
		return 0, fmt.Errorf("%w: no %s", ErrNoChannel, f.source.channelKey())
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNoSensor, path)
		}

		return 0, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	return parseKernelTemperature(string(contents))
}

// parseKernelTemperature decodes hwmon and w1_slave contents.
//
// A w1_slave file looks like:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseKernelTemperature(contents string) (float64, error) {
	text := strings.TrimSpace(contents)
	if text == "" {
		return 0, fmt.Errorf("%w: empty reading", ErrReadFailed)
	}

	if idx := strings.LastIndex(text, "t="); idx >= 0 {
		lines := strings.Split(text, "\n")
		if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
			return 0, fmt.Errorf("%w: 1-wire CRC check failed", ErrReadFailed)
		}

		text = strings.TrimSpace(text[idx+len("t="):])
	}

	raw, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	return float64(raw) / millidegrees, nil
}
