package sensor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFile creates a file with contents inside a temporary directory.
func writeFile(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// TestFileSensor_Hwmon reads millidegrees from an hwmon input file.
func TestFileSensor_Hwmon(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "temp1_input", "23500\n")
	s := NewFileSensor(SourceInternal, path, "")

	value, err := s.Read(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 23.5, value, 1e-9)
}

// TestFileSensor_OneWire decodes a w1_slave file and honours the CRC flag.
func TestFileSensor_OneWire(t *testing.T) {
	t.Parallel()

	good := writeFile(t, "w1_slave",
		"72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=-1250\n")

	value, err := NewFileSensor(SourceExternal, "", good).Read(context.Background())
	require.NoError(t, err)
	require.InDelta(t, -1.25, value, 1e-9)

	bad := writeFile(t, "w1_slave",
		"72 01 4b 46 7f ff 0e 10 57 : crc=00 NO\n72 01 4b 46 7f ff 0e 10 57 t=23125\n")

	_, err = NewFileSensor(SourceExternal, "", bad).Read(context.Background())
	require.ErrorIs(t, err, ErrReadFailed)
}

// TestFileSensor_Failures maps missing devices, channels, and garbage to sentinel errors.
func TestFileSensor_Failures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := NewFileSensor(SourceExternal, "", filepath.Join(t.TempDir(), "missing")).Read(ctx)
	require.ErrorIs(t, err, ErrNoSensor)

	_, err = NewFileSensor(SourceExternal, writeFile(t, "temp1_input", "1000"), "").Read(ctx)
	require.ErrorIs(t, err, ErrNoChannel)

	_, err = NewFileSensor(SourceInternal, writeFile(t, "temp1_input", "warm"), "").Read(ctx)
	require.ErrorIs(t, err, ErrReadFailed)

	_, err = NewFileSensor(SourceInternal, writeFile(t, "temp1_input", "  \n"), "").Read(ctx)
	require.ErrorIs(t, err, ErrReadFailed)
}

// TestParseSource accepts both probes case-insensitively.
func TestParseSource(t *testing.T) {
	t.Parallel()

	s, err := ParseSource(" Internal ")
	require.NoError(t, err)
	require.Equal(t, SourceInternal, s)

	s, err = ParseSource("external")
	require.NoError(t, err)
	require.Equal(t, SourceExternal, s)

	_, err = ParseSource("ambient")
	require.Error(t, err)
}
